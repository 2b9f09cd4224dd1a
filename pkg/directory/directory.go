// Package directory defines the identity directory the migration reads from.
//
// A directory is listed page by page: each call returns a batch of records
// and an optional continuation token, and listing ends when no token is
// returned. Implementations live in sub-packages (cognito) or are in-memory
// (StaticSource).
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned when a page cannot be fetched.
var ErrUnavailable = errors.New("directory unavailable")

// Attribute is a single name/value attribute of a directory record.
type Attribute struct {
	Name  string
	Value string
}

// Record is one raw user as listed by the directory.
type Record struct {
	// ID is the directory-assigned immutable identifier (Cognito "sub").
	ID string

	// Contact is the contact field (email), falling back to the username.
	Contact string

	// Username is the directory login name.
	Username string

	// Attributes in the order the directory returned them.
	Attributes []Attribute

	// Enabled and Status mirror the account state reported by the directory.
	Enabled bool
	Status  string
}

// Attribute returns the value of the first attribute named name.
func (r *Record) Attribute(name string) (string, bool) {
	for _, a := range r.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Page is one listing response.
type Page struct {
	Records []Record

	// NextToken continues the listing; empty on the last page.
	NextToken string
}

// Source lists users of a directory pool.
type Source interface {
	// ListUsers returns the page starting at token ("" for the first page).
	ListUsers(ctx context.Context, poolID, token string) (*Page, error)
}

// PageFunc is invoked once per fetched page, in order. Page numbers start at 1.
type PageFunc func(ctx context.Context, number int, page *Page) error

// Walk lists every page of poolID, calling fn for each one before fetching
// the next. Each fetch is bounded by timeout when positive. A fetch failure
// is wrapped with ErrUnavailable; an error from fn stops the walk and is
// returned as is. Walk returns the number of pages fetched.
func Walk(ctx context.Context, src Source, poolID string, timeout time.Duration, fn PageFunc) (int, error) {
	token := ""
	for n := 1; ; n++ {
		page, err := fetch(ctx, src, poolID, token, timeout)
		if err != nil {
			return n - 1, fmt.Errorf("%w: page %d: %w", ErrUnavailable, n, err)
		}
		if err := fn(ctx, n, page); err != nil {
			return n, err
		}
		if page.NextToken == "" {
			return n, nil
		}
		if page.NextToken == token {
			return n, fmt.Errorf("%w: page %d repeated continuation token", ErrUnavailable, n)
		}
		token = page.NextToken
	}
}

func fetch(ctx context.Context, src Source, poolID, token string, timeout time.Duration) (*Page, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	page, err := src.ListUsers(ctx, poolID, token)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return &Page{}, nil
	}
	return page, nil
}
