// Package search keeps the state of one search view: criteria, the last applied
// result page, loading and error flags.
//
// Searches may overlap. Each one takes a sequence number and its result is only
// applied if no newer search was issued in the meantime.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/model"
)

// PageSizes are the selectable page sizes; the first is the default.
var PageSizes = []int{10, 20, 50}

// DefaultPageSize is used until the user picks another size.
const DefaultPageSize = 10

// Finder runs catalog searches.
type Finder interface {
	Find(ctx context.Context, f model.Filter, p model.PageRequest) (model.Page, error)
}

// Criteria is the user-entered search input.
type Criteria struct {
	Filter model.Filter
	Page   int
	Size   int
}

// DefaultCriteria is the state of a fresh view: every filter unset, first page, default size.
func DefaultCriteria() Criteria {
	return Criteria{Page: 0, Size: DefaultPageSize}
}

// Snapshot is a copy of the view state. Derived values are methods.
type Snapshot struct {
	Criteria      Criteria
	Applied       model.PageRequest // page and size Books was fetched with
	Books         []model.Book
	TotalElements uint64
	IsLoading     bool
	Error         string
	HasSearched   bool
}

// TotalPages derives the number of pages at the size of the applied result,
// which differs from Criteria.Size until the next search completes.
func (s Snapshot) TotalPages() int { return model.TotalPages(s.TotalElements, s.Applied.Size) }

// IsEmpty reports a finished search without matches.
func (s Snapshot) IsEmpty() bool { return s.HasSearched && !s.IsLoading && len(s.Books) == 0 }

// HasResults reports whether there is anything to show.
func (s Snapshot) HasResults() bool { return len(s.Books) > 0 }

// State is owned by one search view. Safe for concurrent use.
type State struct {
	finder Finder
	log    *zap.Logger

	mu          sync.Mutex
	criteria    Criteria
	applied     model.PageRequest
	books       []model.Book
	total       uint64
	loading     bool
	errMsg      string
	hasSearched bool
	seq         uint64
	cancel      context.CancelFunc
}

// New returns a state with default criteria.
func New(finder Finder, log *zap.Logger) *State {
	if log == nil {
		log = zap.NewNop()
	}
	return &State{
		finder:   finder,
		log:      log.Named("search"),
		criteria: DefaultCriteria(),
		applied:  model.PageRequest{Size: DefaultPageSize},
		books:    []model.Book{},
	}
}

// Option edits one criteria field.
type Option func(*Criteria)

// WithTitle sets the title filter; empty clears it.
func WithTitle(s string) Option { return func(c *Criteria) { c.Filter.Title = s } }

// WithISBN sets the ISBN filter; empty clears it.
func WithISBN(s string) Option { return func(c *Criteria) { c.Filter.ISBN = s } }

// WithCategory restricts to one format.
func WithCategory(cat model.Category) Option {
	return func(c *Criteria) { c.Filter.Category = &cat }
}

// AnyCategory clears the format filter.
func AnyCategory() Option { return func(c *Criteria) { c.Filter.Category = nil } }

// WithMinRating sets the minimum rating.
func WithMinRating(r int) Option { return func(c *Criteria) { c.Filter.MinRating = &r } }

// AnyRating clears the rating filter.
func AnyRating() Option { return func(c *Criteria) { c.Filter.MinRating = nil } }

// WithAvailable filters by availability.
func WithAvailable(v bool) Option { return func(c *Criteria) { c.Filter.Available = &v } }

// AnyAvailability clears the availability filter.
func AnyAvailability() Option { return func(c *Criteria) { c.Filter.Available = nil } }

// WithPage sets the zero-based page.
func WithPage(n int) Option { return func(c *Criteria) { c.Page = n } }

// WithSize sets the page size.
func WithSize(n int) Option { return func(c *Criteria) { c.Size = n } }

// UpdateCriteria merges opts into the criteria. It does not search.
func (s *State) UpdateCriteria(opts ...Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range opts {
		o(&s.criteria)
	}
}

// Criteria returns a copy of the current criteria.
func (s *State) Criteria() Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCriteria(s.criteria)
}

// Search fetches the page described by the current criteria.
// It returns errs.ErrSuperseded when a newer search replaced it before completion;
// the result is then discarded. A failed search clears the books and records the error.
func (s *State) Search(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.seq++
	mySeq := s.seq
	s.cancel = cancel
	s.loading = true
	s.errMsg = ""
	s.hasSearched = true
	crit := copyCriteria(s.criteria)
	s.mu.Unlock()
	defer cancel()

	req := model.PageRequest{Number: crit.Page, Size: crit.Size}
	page, err := s.finder.Find(ctx, crit.Filter, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if mySeq != s.seq {
		s.log.Debug("discarding stale result", zap.Uint64("seq", mySeq), zap.Uint64("latest", s.seq))
		return errs.ErrSuperseded
	}
	s.cancel = nil
	s.loading = false
	s.applied = req
	if err != nil {
		s.books = []model.Book{}
		s.total = 0
		s.errMsg = errs.Message(err)
		s.log.Info("search failed", zap.Error(err))
		return err
	}
	s.books = append([]model.Book{}, page.Content...)
	s.total = page.Page.TotalElements
	return nil
}

// SetPage updates page and size and searches. Invalid values are rejected without fetching.
func (s *State) SetPage(ctx context.Context, index, size int) error {
	if index < 0 {
		return errs.New(errs.KindValidation, "invalid page", fmt.Sprintf("page index %d is negative", index))
	}
	if !ValidPageSize(size) {
		return errs.New(errs.KindValidation, "invalid page", fmt.Sprintf("page size %d not in %v", size, PageSizes))
	}
	s.UpdateCriteria(WithPage(index), WithSize(size))
	return s.Search(ctx)
}

// Reset restores default criteria, clears the error and searches again.
func (s *State) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.criteria = DefaultCriteria()
	s.errMsg = ""
	s.mu.Unlock()
	return s.Search(ctx)
}

// Snapshot returns a copy of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Criteria:      copyCriteria(s.criteria),
		Applied:       s.applied,
		Books:         append([]model.Book{}, s.books...),
		TotalElements: s.total,
		IsLoading:     s.loading,
		Error:         s.errMsg,
		HasSearched:   s.hasSearched,
	}
}

// ValidPageSize reports whether n is a selectable page size.
func ValidPageSize(n int) bool {
	for _, v := range PageSizes {
		if v == n {
			return true
		}
	}
	return false
}

func copyCriteria(c Criteria) Criteria {
	out := c
	if c.Filter.Category != nil {
		v := *c.Filter.Category
		out.Filter.Category = &v
	}
	if c.Filter.MinRating != nil {
		v := *c.Filter.MinRating
		out.Filter.MinRating = &v
	}
	if c.Filter.Available != nil {
		v := *c.Filter.Available
		out.Filter.Available = &v
	}
	return out
}

// IsSuperseded reports whether err only means a newer search took over.
func IsSuperseded(err error) bool { return errors.Is(err, errs.ErrSuperseded) }
