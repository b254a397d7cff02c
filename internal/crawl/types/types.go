package types

import (
	"context"
	"errors"
	"fmt"

	"leadscout-engine/internal/domain"
)

// SearchQuery is the per-run search the UI asked for.
type SearchQuery struct {
	Keyword  string
	Location string
}

// ErrEnd signals normal exhaustion of a strategy's record sequence.
var ErrEnd = errors.New("no more records")

// ErrKind classifies extraction failures so the orchestrator can decide
// between logging, aborting the source, or backing off.
type ErrKind string

const (
	KindNavigation ErrKind = "navigation"
	KindTimeout    ErrKind = "timeout"
	KindParse      ErrKind = "parse"
	KindBlocked    ErrKind = "blocked"
)

type ExtractionError struct {
	Kind   ErrKind
	Source domain.Source
	Page   int
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s: %s extraction failed on page %d: %v", e.Source, e.Kind, e.Page, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func Extractionf(kind ErrKind, source domain.Source, page int, format string, args ...any) *ExtractionError {
	return &ExtractionError{Kind: kind, Source: source, Page: page, Err: fmt.Errorf(format, args...)}
}

// Gate is the politeness gate seen from a strategy: call Acquire before every
// page fetch, Release when the response is consumed.
type Gate interface {
	Acquire(ctx context.Context, s domain.Source) error
	Release(s domain.Source)
}

// Iterator pulls records one at a time. After any non-ErrEnd error the
// iterator is dead; records returned before the failure stand.
type Iterator interface {
	Next(ctx context.Context) (domain.RawLead, error)
}

// Strategy is one site's extraction logic. Concrete strategies differ only in
// selectors and field parsing; lifecycle and error contract are shared.
type Strategy interface {
	Source() domain.Source
	Extract(ctx context.Context, q SearchQuery) Iterator
}

// PageFunc fetches one result page (1-based) and reports whether another page
// follows.
type PageFunc func(ctx context.Context, page int) (records []domain.RawLead, more bool, err error)

// PagedIterator turns page-at-a-time fetching into a lazy record sequence.
// The next page is requested only once the previous page's records have all
// been consumed, so smart-stop cancels pending pages for free.
type PagedIterator struct {
	fetch PageFunc
	page  int
	buf   []domain.RawLead
	done  bool
	err   error
}

func NewPaged(fetch PageFunc) *PagedIterator {
	return &PagedIterator{fetch: fetch}
}

func (it *PagedIterator) Next(ctx context.Context) (domain.RawLead, error) {
	if it.err != nil {
		return domain.RawLead{}, it.err
	}
	for len(it.buf) == 0 && !it.done {
		if err := ctx.Err(); err != nil {
			return domain.RawLead{}, err
		}
		it.page++
		records, more, err := it.fetch(ctx, it.page)
		if err != nil {
			it.err = err
			return domain.RawLead{}, err
		}
		it.buf = records
		it.done = !more
	}
	if len(it.buf) == 0 {
		return domain.RawLead{}, ErrEnd
	}
	rec := it.buf[0]
	it.buf = it.buf[1:]
	return rec, nil
}
