package service

import (
	"context"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/model"
	"github.com/and161185/bookshelf/internal/repository"
)

// Page size bounds accepted by Find.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// BookService defines catalog operations with optimistic concurrency.
type BookService interface {
	// Create validates input and stores a new book at version 0.
	Create(ctx context.Context, in model.BookInput) (uint64, error)
	// Get returns a single book.
	Get(ctx context.Context, id uint64) (*model.Book, error)
	// Find returns one page of matches.
	Find(ctx context.Context, f model.Filter, p model.PageRequest) (model.Page, error)
	// Count returns the number of books.
	Count(ctx context.Context) (uint64, error)
	// Update applies upd when expected is the current version; returns the new version.
	Update(ctx context.Context, id uint64, upd model.BookUpdate, expected uint32) (uint32, error)
	// Delete removes a book; deleting a missing book succeeds.
	Delete(ctx context.Context, id uint64) error
}

type BookServiceImpl struct {
	repo repository.BookRepository
}

// NewBookService constructs BookService.
func NewBookService(repo repository.BookRepository) *BookServiceImpl {
	return &BookServiceImpl{repo: repo}
}

// Create normalizes and validates the payload before storing it.
func (s *BookServiceImpl) Create(ctx context.Context, in model.BookInput) (uint64, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return 0, err
	}
	return s.repo.Create(ctx, in)
}

// Get returns the book or ErrNotFound.
func (s *BookServiceImpl) Get(ctx context.Context, id uint64) (*model.Book, error) {
	return s.repo.Get(ctx, id)
}

// Find clamps paging and returns ErrNotFound when nothing matches.
func (s *BookServiceImpl) Find(ctx context.Context, f model.Filter, p model.PageRequest) (model.Page, error) {
	if p.Number < 0 {
		p.Number = 0
	}
	switch {
	case p.Size <= 0:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	list, total, err := s.repo.Find(ctx, f, p)
	if err != nil {
		return model.Page{}, err
	}
	if total == 0 {
		return model.Page{}, errs.ErrNotFound
	}
	return model.Page{
		Content: list,
		Page: model.PageMeta{
			Size:          p.Size,
			Number:        p.Number,
			TotalElements: total,
			TotalPages:    model.TotalPages(total, p.Size),
		},
	}, nil
}

// Count returns the number of books.
func (s *BookServiceImpl) Count(ctx context.Context) (uint64, error) {
	return s.repo.Count(ctx)
}

// Update validates the writable fields and delegates the version check to the repository.
func (s *BookServiceImpl) Update(ctx context.Context, id uint64, upd model.BookUpdate, expected uint32) (uint32, error) {
	upd.Normalize()
	if err := upd.Validate(); err != nil {
		return 0, err
	}
	return s.repo.Update(ctx, id, upd, expected)
}

// Delete is idempotent.
func (s *BookServiceImpl) Delete(ctx context.Context, id uint64) error {
	err := s.repo.Delete(ctx, id)
	if err != nil && errs.KindOf(err) == errs.KindNotFound {
		return nil
	}
	return err
}
