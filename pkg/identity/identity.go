// Package identity turns raw directory records into typed identity facts.
//
// The directory encodes department and role membership in a single
// free-form attribute ("custom:features") holding comma separated
// key=value tokens:
//
//	dept=Treasury,user=ordinary_user,user=administrator
//
// Parsing is pure and fails soft: a record without a stable id, a contact,
// or a non-empty features attribute yields no identity rather than an error.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/dirmigrate/pkg/directory"
	"github.com/marmos91/dirmigrate/pkg/privacy"
)

// DefaultFeaturesAttribute is the directory attribute carrying the encoded features.
const DefaultFeaturesAttribute = "custom:features"

// Feature token keys.
const (
	KeyDepartment = "dept"
	KeyRole       = "user"
)

// ErrMalformedRecord marks a directory record that cannot be migrated.
var ErrMalformedRecord = errors.New("malformed directory record")

// Parsed is the typed fact set extracted from one directory record.
type Parsed struct {
	StableID string
	Contact  string

	// Department is "" when the features carry no dept token.
	Department string

	// Roles in directory vocabulary, in order of appearance, duplicates kept.
	Roles []string

	// Extras holds the picked named attributes that were present.
	Extras map[string]string

	// MappedRoles is Roles expanded into target vocabulary (see roles.Mapper).
	MappedRoles []string

	// Protected is set when the contact has been through the privacy transform.
	Protected *privacy.Protected
}

// Parser extracts identities from directory records.
type Parser struct {
	// FeaturesAttribute names the attribute carrying the encoded features.
	FeaturesAttribute string

	// Pick lists additional attribute names copied into Parsed.Extras.
	Pick []string
}

// NewParser creates a parser. An empty featuresAttribute selects the default.
func NewParser(featuresAttribute string, pick ...string) *Parser {
	if featuresAttribute == "" {
		featuresAttribute = DefaultFeaturesAttribute
	}
	return &Parser{FeaturesAttribute: featuresAttribute, Pick: pick}
}

// Parse parses rec with the default features attribute.
func Parse(rec directory.Record) (*Parsed, bool) {
	return NewParser("").Parse(rec)
}

// Parse extracts the identity from rec, reporting false when the record is
// not migratable. Use Reason to find out why.
func (p *Parser) Parse(rec directory.Record) (*Parsed, bool) {
	if p.Reason(rec) != nil {
		return nil, false
	}

	features, _ := rec.Attribute(p.FeaturesAttribute)
	dept, roles := ParseFeatures(features)

	return &Parsed{
		StableID:   rec.ID,
		Contact:    rec.Contact,
		Department: dept,
		Roles:      roles,
		Extras:     PickAttributes(rec.Attributes, p.Pick...),
	}, true
}

// Reason returns nil when rec is migratable, or an error wrapping
// ErrMalformedRecord that names what is missing.
func (p *Parser) Reason(rec directory.Record) error {
	switch {
	case rec.ID == "":
		return fmt.Errorf("%w: missing stable id", ErrMalformedRecord)
	case rec.Contact == "":
		return fmt.Errorf("%w: missing contact", ErrMalformedRecord)
	}
	features, ok := rec.Attribute(p.FeaturesAttribute)
	if !ok {
		return fmt.Errorf("%w: missing %s attribute", ErrMalformedRecord, p.FeaturesAttribute)
	}
	if features == "" {
		return fmt.Errorf("%w: empty %s attribute", ErrMalformedRecord, p.FeaturesAttribute)
	}
	return nil
}

// ParseFeatures reduces an encoded features value to its department and
// role tokens. Each token is split on its first '='; tokens without one are
// ignored. The last dept wins; user tokens accumulate in order.
func ParseFeatures(features string) (dept string, roles []string) {
	roles = []string{}
	for _, token := range strings.Split(features, ",") {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		switch key {
		case KeyDepartment:
			dept = value
		case KeyRole:
			roles = append(roles, value)
		}
	}
	return dept, roles
}

// PickAttributes returns name -> value for each requested name present in
// attrs. Absent names are omitted. The first occurrence of a name wins.
func PickAttributes(attrs []directory.Attribute, names ...string) map[string]string {
	out := make(map[string]string, len(names))
	if len(names) == 0 {
		return out
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	for _, a := range attrs {
		if _, ok := want[a.Name]; !ok {
			continue
		}
		if _, seen := out[a.Name]; !seen {
			out[a.Name] = a.Value
		}
	}
	return out
}
