package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/model"
)

type call struct {
	filter model.Filter
	page   model.PageRequest
	reply  chan reply
}

type reply struct {
	page model.Page
	err  error
}

// gatedFinder blocks every Find until the test replies on the call's channel.
type gatedFinder struct {
	calls chan call
}

func newGatedFinder() *gatedFinder { return &gatedFinder{calls: make(chan call, 8)} }

func (g *gatedFinder) Find(_ context.Context, f model.Filter, p model.PageRequest) (model.Page, error) {
	c := call{filter: f, page: p, reply: make(chan reply, 1)}
	g.calls <- c
	r := <-c.reply
	return r.page, r.err
}

func (g *gatedFinder) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no Find call")
		return call{}
	}
}

// staticFinder answers immediately.
type staticFinder struct {
	mu    sync.Mutex
	page  model.Page
	err   error
	calls []model.PageRequest
}

func (f *staticFinder) Find(_ context.Context, _ model.Filter, p model.PageRequest) (model.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	return f.page, f.err
}

func books(ids ...uint64) []model.Book {
	out := make([]model.Book, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Book{ID: id})
	}
	return out
}

func TestState_Defaults(t *testing.T) {
	t.Parallel()

	s := New(&staticFinder{}, zaptest.NewLogger(t))
	snap := s.Snapshot()
	require.Equal(t, DefaultCriteria(), snap.Criteria)
	require.Equal(t, 10, snap.Criteria.Size)
	require.False(t, snap.HasSearched)
	require.False(t, snap.IsEmpty())
	require.False(t, snap.HasResults())
	require.Zero(t, snap.TotalPages())
}

func TestState_UpdateCriteriaDoesNotFetch(t *testing.T) {
	t.Parallel()

	f := &staticFinder{}
	s := New(f, zaptest.NewLogger(t))
	s.UpdateCriteria(WithTitle("go"), WithCategory(model.CategoryEpub), WithMinRating(3), WithAvailable(true))
	s.UpdateCriteria(WithISBN("978"))

	c := s.Criteria()
	require.Equal(t, "go", c.Filter.Title)
	require.Equal(t, "978", c.Filter.ISBN)
	require.Equal(t, model.CategoryEpub, *c.Filter.Category)
	require.Equal(t, 3, *c.Filter.MinRating)
	require.True(t, *c.Filter.Available)
	require.Empty(t, f.calls)

	s.UpdateCriteria(AnyCategory(), AnyRating(), AnyAvailability(), WithTitle(""))
	c = s.Criteria()
	require.Nil(t, c.Filter.Category)
	require.Nil(t, c.Filter.MinRating)
	require.Nil(t, c.Filter.Available)
	require.Empty(t, c.Filter.Title)
}

func TestState_SearchSuccessAndFailure(t *testing.T) {
	t.Parallel()

	f := &staticFinder{page: model.Page{Content: books(1, 2, 3), Page: model.PageMeta{TotalElements: 23}}}
	s := New(f, zaptest.NewLogger(t))

	require.NoError(t, s.Search(context.Background()))
	snap := s.Snapshot()
	require.Len(t, snap.Books, 3)
	require.Equal(t, uint64(23), snap.TotalElements)
	require.Equal(t, 3, snap.TotalPages())
	require.True(t, snap.HasSearched)
	require.False(t, snap.IsLoading)
	require.True(t, snap.HasResults())

	f.err = errs.New(errs.KindUnreachable, "server unreachable")
	err := s.Search(context.Background())
	require.ErrorIs(t, err, errs.ErrUnreachable)
	snap = s.Snapshot()
	require.Empty(t, snap.Books)
	require.Zero(t, snap.TotalElements)
	require.Equal(t, "server unreachable", snap.Error)
	require.False(t, snap.IsLoading)
	require.True(t, snap.IsEmpty())
}

func TestState_TotalPagesFollowsAppliedSize(t *testing.T) {
	t.Parallel()

	f := &staticFinder{page: model.Page{Content: books(1, 2), Page: model.PageMeta{TotalElements: 45}}}
	s := New(f, zaptest.NewLogger(t))
	require.NoError(t, s.SetPage(context.Background(), 1, 20))

	s.UpdateCriteria(WithSize(50), WithPage(0))
	snap := s.Snapshot()
	require.Equal(t, 50, snap.Criteria.Size)
	require.Equal(t, model.PageRequest{Number: 1, Size: 20}, snap.Applied)
	require.Equal(t, 3, snap.TotalPages())

	require.NoError(t, s.Search(context.Background()))
	require.Equal(t, 1, s.Snapshot().TotalPages())
}

func TestState_EmptyResultKeepsTotal(t *testing.T) {
	t.Parallel()

	f := &staticFinder{page: model.Page{Content: []model.Book{}, Page: model.PageMeta{TotalElements: 30}}}
	s := New(f, zaptest.NewLogger(t))
	require.NoError(t, s.SetPage(context.Background(), 9, 10))
	snap := s.Snapshot()
	require.Empty(t, snap.Books)
	require.Equal(t, uint64(30), snap.TotalElements)
}

func TestState_LateOlderResultIsDiscarded(t *testing.T) {
	t.Parallel()

	g := newGatedFinder()
	s := New(g, zaptest.NewLogger(t))

	s.UpdateCriteria(WithTitle("first"))
	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Search(context.Background()) }()
	first := g.next(t)
	require.Equal(t, "first", first.filter.Title)
	require.True(t, s.Snapshot().IsLoading)

	s.UpdateCriteria(WithTitle("second"))
	secondDone := make(chan error, 1)
	go func() { secondDone <- s.Search(context.Background()) }()
	second := g.next(t)
	require.Equal(t, "second", second.filter.Title)

	second.reply <- reply{page: model.Page{Content: books(2), Page: model.PageMeta{TotalElements: 1}}}
	require.NoError(t, <-secondDone)

	first.reply <- reply{page: model.Page{Content: books(1, 11), Page: model.PageMeta{TotalElements: 2}}}
	require.ErrorIs(t, <-firstDone, errs.ErrSuperseded)

	snap := s.Snapshot()
	require.Equal(t, books(2), snap.Books)
	require.Equal(t, uint64(1), snap.TotalElements)
	require.False(t, snap.IsLoading)
}

func TestState_LateOlderFailureIsDiscarded(t *testing.T) {
	t.Parallel()

	g := newGatedFinder()
	s := New(g, zaptest.NewLogger(t))

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Search(context.Background()) }()
	first := g.next(t)

	secondDone := make(chan error, 1)
	go func() { secondDone <- s.Search(context.Background()) }()
	second := g.next(t)

	first.reply <- reply{err: errors.New("boom")}
	require.True(t, IsSuperseded(<-firstDone))
	require.True(t, s.Snapshot().IsLoading, "newer search still in flight")
	require.Empty(t, s.Snapshot().Error)

	second.reply <- reply{page: model.Page{Content: books(5)}}
	require.NoError(t, <-secondDone)
	require.Equal(t, books(5), s.Snapshot().Books)
}

func TestState_SetPage(t *testing.T) {
	t.Parallel()

	f := &staticFinder{page: model.Page{Content: books(1)}}
	s := New(f, zaptest.NewLogger(t))

	require.NoError(t, s.SetPage(context.Background(), 2, 20))
	require.Equal(t, []model.PageRequest{{Number: 2, Size: 20}}, f.calls)
	c := s.Criteria()
	require.Equal(t, 2, c.Page)
	require.Equal(t, 20, c.Size)

	require.ErrorIs(t, s.SetPage(context.Background(), -1, 10), errs.ErrValidation)
	require.ErrorIs(t, s.SetPage(context.Background(), 0, 15), errs.ErrValidation)
	require.Len(t, f.calls, 1, "invalid paging must not fetch")
}

func TestState_Reset(t *testing.T) {
	t.Parallel()

	f := &staticFinder{err: errors.New("down")}
	s := New(f, zaptest.NewLogger(t))
	s.UpdateCriteria(WithTitle("x"), WithPage(3), WithSize(50))
	require.Error(t, s.Search(context.Background()))
	require.NotEmpty(t, s.Snapshot().Error)

	f.err = nil
	f.page = model.Page{Content: books(1)}
	require.NoError(t, s.Reset(context.Background()))

	snap := s.Snapshot()
	require.Equal(t, DefaultCriteria(), snap.Criteria)
	require.Empty(t, snap.Error)
	require.Equal(t, model.PageRequest{Number: 0, Size: 10}, f.calls[len(f.calls)-1])
}

func TestState_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	s := New(&staticFinder{page: model.Page{Content: books(1)}}, zaptest.NewLogger(t))
	s.UpdateCriteria(WithMinRating(2))
	require.NoError(t, s.Search(context.Background()))

	snap := s.Snapshot()
	snap.Books[0].ID = 99
	*snap.Criteria.Filter.MinRating = 5

	again := s.Snapshot()
	require.Equal(t, uint64(1), again.Books[0].ID)
	require.Equal(t, 2, *again.Criteria.Filter.MinRating)
}
