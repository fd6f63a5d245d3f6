// Package memory contains in-process implementations of repository interfaces.
// They back the server when no database is configured and in tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/model"
)

// BookRepo keeps books in a map guarded by a mutex.
type BookRepo struct {
	mu     sync.RWMutex
	nextID uint64
	books  map[uint64]model.Book
	now    func() time.Time
}

// NewBookRepo returns an empty repository; ids start at 1000.
func NewBookRepo() *BookRepo {
	return &BookRepo{nextID: 1000, books: make(map[uint64]model.Book), now: time.Now}
}

func clone(b model.Book) model.Book {
	if b.Title != nil {
		t := *b.Title
		b.Title = &t
	}
	b.Keywords = slices.Clone(b.Keywords)
	b.Images = slices.Clone(b.Images)
	return b
}

func (r *BookRepo) isbnTaken(isbn string, except uint64) bool {
	for id, b := range r.books {
		if id != except && b.ISBN == isbn {
			return true
		}
	}
	return false
}

// Create stores a book with version 0.
func (r *BookRepo) Create(_ context.Context, in model.BookInput) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isbnTaken(in.ISBN, 0) {
		return 0, errs.ErrAlreadyExists
	}
	r.nextID++
	now := r.now()
	title := in.Title
	b := model.Book{
		ID:        r.nextID,
		ISBN:      in.ISBN,
		Rating:    in.Rating,
		Category:  in.Category,
		Price:     in.Price,
		Discount:  in.Discount,
		Available: in.Available,
		Released:  in.Released,
		Homepage:  in.Homepage,
		Keywords:  in.Keywords,
		Title:     &title,
		Images:    in.Images,
		CreatedAt: &now,
		UpdatedAt: &now,
	}
	r.books[b.ID] = clone(b)
	return b.ID, nil
}

// Get returns a copy of the stored book.
func (r *BookRepo) Get(_ context.Context, id uint64) (*model.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := clone(b)
	return &c, nil
}

func matches(b model.Book, f model.Filter) bool {
	if f.Title != "" && (b.Title == nil || !strings.Contains(strings.ToLower(b.Title.Title), strings.ToLower(f.Title))) {
		return false
	}
	if f.ISBN != "" && b.ISBN != model.NormalizeISBN(f.ISBN) {
		return false
	}
	if f.Category != nil && b.Category != *f.Category {
		return false
	}
	if f.MinRating != nil && b.Rating < *f.MinRating {
		return false
	}
	if f.Available != nil && b.Available != *f.Available {
		return false
	}
	return true
}

// Find returns one page ordered by id.
func (r *BookRepo) Find(_ context.Context, f model.Filter, p model.PageRequest) ([]model.Book, uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []model.Book
	for _, b := range r.books {
		if matches(b, f) {
			all = append(all, b)
		}
	}
	slices.SortFunc(all, func(a, b model.Book) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	out := []model.Book{}
	from := p.Number * p.Size
	if p.Size > 0 && from < len(all) {
		to := min(from+p.Size, len(all))
		for _, b := range all[from:to] {
			out = append(out, clone(b))
		}
	}
	return out, uint64(len(all)), nil
}

// Count returns the number of books.
func (r *BookRepo) Count(context.Context) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.books)), nil
}

// Update replaces the writable fields when expected matches the stored version.
func (r *BookRepo) Update(_ context.Context, id uint64, upd model.BookUpdate, expected uint32) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return 0, errs.ErrNotFound
	}
	if b.Version != expected {
		return 0, errs.ErrVersionConflict
	}
	if r.isbnTaken(upd.ISBN, id) {
		return 0, errs.ErrAlreadyExists
	}
	b.ISBN, b.Rating, b.Category = upd.ISBN, upd.Rating, upd.Category
	b.Price, b.Discount, b.Available = upd.Price, upd.Discount, upd.Available
	b.Released, b.Homepage, b.Keywords = upd.Released, upd.Homepage, slices.Clone(upd.Keywords)
	b.Version++
	now := r.now()
	b.UpdatedAt = &now
	r.books[id] = b
	return b.Version, nil
}

// Delete removes a book.
func (r *BookRepo) Delete(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.books, id)
	return nil
}

// UserRepo keeps accounts keyed by username.
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]model.User
}

// NewUserRepo returns an empty repository.
func NewUserRepo() *UserRepo { return &UserRepo{users: make(map[string]model.User)} }

// Create stores u; ErrAlreadyExists when the username is taken.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Username]; ok {
		return errs.ErrAlreadyExists
	}
	c := *u
	c.Roles = slices.Clone(u.Roles)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	r.users[u.Username] = c
	return nil
}

// GetByUsername returns a copy of the account.
func (r *UserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return nil, errs.ErrNotFound
	}
	u.Roles = slices.Clone(u.Roles)
	return &u, nil
}
