package directory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// StaticSource serves fixed pages from memory. Page i is addressed by the
// token strconv.Itoa(i); the first page by "".
type StaticSource struct {
	mu    sync.Mutex
	pages []Page
	calls int

	// Err, when set, is returned by every ListUsers call.
	Err error
}

// NewStaticSource creates a source that returns the given record batches as
// consecutive pages.
func NewStaticSource(batches ...[]Record) *StaticSource {
	s := &StaticSource{}
	for _, b := range batches {
		s.pages = append(s.pages, Page{Records: b})
	}
	return s
}

// ListUsers implements Source.
func (s *StaticSource) ListUsers(ctx context.Context, _ string, token string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.pages) == 0 {
		return &Page{}, nil
	}

	idx := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n <= 0 || n >= len(s.pages) {
			return nil, fmt.Errorf("invalid pagination token %q", token)
		}
		idx = n
	}

	page := Page{Records: append([]Record(nil), s.pages[idx].Records...)}
	if idx+1 < len(s.pages) {
		page.NextToken = strconv.Itoa(idx + 1)
	}
	return &page, nil
}

// Calls returns how many times ListUsers was invoked.
func (s *StaticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var _ Source = (*StaticSource)(nil)
