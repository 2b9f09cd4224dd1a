package output

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/marmos91/dirmigrate/pkg/reconcile"
	"github.com/marmos91/dirmigrate/pkg/roles"
)

// SummaryTable renders a migration run summary as counter/value rows.
type SummaryTable struct {
	reconcile.Summary `yaml:",inline"`
}

func (SummaryTable) Headers() []string {
	return []string{"Counter", "Value"}
}

func (s SummaryTable) Rows() [][]string {
	mode := "commit"
	if s.DryRun {
		mode = "dry-run"
	}
	return [][]string{
		{"run id", s.RunID},
		{"mode", mode},
		{"pages", strconv.Itoa(s.Pages)},
		{"seen", strconv.Itoa(s.Seen)},
		{"parsed", strconv.Itoa(s.Parsed)},
		{"malformed", strconv.Itoa(s.Malformed)},
		{"duplicates", strconv.Itoa(s.Duplicates)},
		{"privacy failures", strconv.Itoa(s.PrivacyFailures)},
		{"departments created", strconv.Itoa(s.DepartmentsCreated)},
		{"roles created", strconv.Itoa(s.RolesCreated)},
		{"users created", strconv.Itoa(s.UsersCreated)},
		{"users existing", strconv.Itoa(s.UsersExisting)},
		{"users rejected", strconv.Itoa(s.UsersRejected)},
		{"role associations", strconv.Itoa(s.Associations)},
		{"unmatched", strconv.Itoa(s.Unmatched)},
		{"lookup misses", strconv.Itoa(s.LookupMisses)},
		{"duration", s.Duration.Round(time.Millisecond).String()},
	}
}

// RolesTable renders the effective directory token to role mapping.
type RolesTable []roles.Mapping

func (RolesTable) Headers() []string {
	return []string{"Token", "Roles"}
}

func (r RolesTable) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, m := range r {
		token := m.Token
		if strings.ContainsFunc(token, unicode.IsControl) {
			token = strconv.Quote(token)
		}
		rows = append(rows, []string{token, strings.Join(m.Roles, ", ")})
	}
	return rows
}
