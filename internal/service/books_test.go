package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/model"
	"github.com/and161185/bookshelf/internal/repository/memory"
)

func validInput() model.BookInput {
	return model.BookInput{
		BookUpdate: model.BookUpdate{
			ISBN:     "978-0-00-700644-1",
			Rating:   4,
			Category: model.CategoryPaperback,
			Price:    12.5,
			Keywords: []string{" go ", "", "concurrency"},
		},
		Title: model.Title{Title: "  Alpha  "},
	}
}

func TestBooks_CreateNormalizesAndValidates(t *testing.T) {
	ctx := context.Background()
	s := NewBookService(memory.NewBookRepo())

	id, err := s.Create(ctx, validInput())
	require.NoError(t, err)

	b, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "9780007006441", b.ISBN)
	require.Equal(t, "Alpha", b.Title.Title)
	require.Equal(t, []string{"GO", "CONCURRENCY"}, b.Keywords)
	require.Equal(t, uint32(0), b.Version)

	bad := validInput()
	bad.Rating = 9
	bad.Title.Title = "x"
	_, err = s.Create(ctx, bad)
	require.ErrorIs(t, err, errs.ErrValidation)
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	require.Len(t, e.Details, 2)
}

func TestBooks_UpdateOptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	s := NewBookService(memory.NewBookRepo())
	id, err := s.Create(ctx, validInput())
	require.NoError(t, err)
	b, _ := s.Get(ctx, id)

	upd := model.UpdateOf(*b)
	upd.Rating = 5
	v, err := s.Update(ctx, id, upd, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(1), v)

	_, err = s.Update(ctx, id, upd, 0)
	require.ErrorIs(t, err, errs.ErrVersionConflict)

	upd.Price = 0
	v, err = s.Update(ctx, id, upd, 1)
	require.NoError(t, err, "a book may be marked free")
	require.Equal(t, uint32(2), v)

	upd.Price = -1
	_, err = s.Update(ctx, id, upd, 2)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestBooks_FindAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewBookService(memory.NewBookRepo())

	_, err := s.Find(ctx, model.Filter{}, model.PageRequest{})
	require.ErrorIs(t, err, errs.ErrNotFound)

	id, err := s.Create(ctx, validInput())
	require.NoError(t, err)

	p, err := s.Find(ctx, model.Filter{Title: "alp"}, model.PageRequest{Number: -1, Size: 1000})
	require.NoError(t, err)
	require.Len(t, p.Content, 1)
	require.Equal(t, model.PageMeta{Size: MaxPageSize, Number: 0, TotalElements: 1, TotalPages: 1}, p.Page)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n)

	require.NoError(t, s.Delete(ctx, id))
	require.NoError(t, s.Delete(ctx, id), "delete is idempotent")
	_, err = s.Get(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
