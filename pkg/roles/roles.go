// Package roles maps directory role tokens onto the user service role vocabulary.
package roles

import (
	"sort"
)

// Target vocabulary.
const (
	Applicant        = "APPLICANT"
	Find             = "FIND"
	Admin            = "ADMIN"
	SuperAdmin       = "SUPER_ADMIN"
	TechnicalSupport = "TECHNICAL_SUPPORT"
)

// defaultTable is the built-in mapping. The "ordinary_user\r" key matches
// legacy exports whose role tokens carry a trailing carriage return; it is
// a distinct key and tokens are never trimmed before lookup.
var defaultTable = map[string][]string{
	"ordinary_user":       {Applicant, Find},
	"ordinary_user\r":     {Applicant, Find},
	"administrator":       {Applicant, Find, Admin},
	"super_administrator": {Applicant, Find, Admin, SuperAdmin},
	"technical_support":   {Applicant, Find, TechnicalSupport},
}

// Mapping overrides or extends one entry of the table.
type Mapping struct {
	Token string   `mapstructure:"token" yaml:"token" json:"token" validate:"required"`
	Roles []string `mapstructure:"roles" yaml:"roles" json:"roles" validate:"required,min=1,dive,required"`
}

// Mapper expands directory role tokens. It is immutable and safe for
// concurrent use.
type Mapper struct {
	table map[string][]string
}

// NewMapper creates a mapper over a copy of table.
func NewMapper(table map[string][]string) *Mapper {
	m := &Mapper{table: make(map[string][]string, len(table))}
	for k, v := range table {
		m.table[k] = append([]string(nil), v...)
	}
	return m
}

// Default returns a mapper over the built-in table.
func Default() *Mapper {
	return NewMapper(defaultTable)
}

// With returns a new mapper with the given entries replacing or adding to
// the receiver's. Entries without roles are ignored.
func (m *Mapper) With(overrides ...Mapping) *Mapper {
	next := NewMapper(m.table)
	for _, o := range overrides {
		if len(o.Roles) == 0 {
			continue
		}
		next.table[o.Token] = append([]string(nil), o.Roles...)
	}
	return next
}

// Expand returns the target roles for token. Tokens absent from the table
// pass through unchanged, so the result is never empty.
func (m *Mapper) Expand(token string) []string {
	mapped, ok := m.table[token]
	if !ok {
		return []string{token}
	}
	return append([]string(nil), mapped...)
}

// ExpandAll expands every token and flattens the result, dropping
// duplicates while keeping first-seen order.
func (m *Mapper) ExpandAll(tokens []string) []string {
	out := make([]string, 0, len(tokens)*2)
	seen := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		for _, r := range m.Expand(t) {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// Entries returns the table sorted by token.
func (m *Mapper) Entries() []Mapping {
	out := make([]Mapping, 0, len(m.table))
	for k, v := range m.table {
		out = append(out, Mapping{Token: k, Roles: append([]string(nil), v...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// Vocabulary returns the sorted set of non-empty names across all role lists.
func Vocabulary(lists ...[]string) []string {
	set := make(map[string]struct{})
	for _, l := range lists {
		for _, r := range l {
			if r != "" {
				set[r] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
