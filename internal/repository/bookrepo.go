package repository

import (
	"context"

	"github.com/and161185/bookshelf/internal/model"
)

// BookRepository provides versioned access to catalog records.
type BookRepository interface {
	// Create inserts a book with version 0 and returns its id.
	Create(ctx context.Context, in model.BookInput) (uint64, error)

	// Get returns a single book including its images.
	Get(ctx context.Context, id uint64) (*model.Book, error)

	// Find returns one page of books matching f and the total number of matches.
	Find(ctx context.Context, f model.Filter, p model.PageRequest) ([]model.Book, uint64, error)

	// Count returns the number of books.
	Count(ctx context.Context) (uint64, error)

	// Update applies upd if the stored version equals expected and returns the new version.
	Update(ctx context.Context, id uint64, upd model.BookUpdate, expected uint32) (uint32, error)

	// Delete removes a book; ErrNotFound when it does not exist.
	Delete(ctx context.Context, id uint64) error
}
