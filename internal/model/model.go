// Package model defines domain entities shared by the catalog client and the reference server.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Category is the book format.
type Category string

const (
	CategoryEpub      Category = "EPUB"
	CategoryHardcover Category = "HARDCOVER"
	CategoryPaperback Category = "PAPERBACK"
)

// Valid reports whether c is one of the known formats.
func (c Category) Valid() bool {
	switch c {
	case CategoryEpub, CategoryHardcover, CategoryPaperback:
		return true
	}
	return false
}

// Title holds the title and optional subtitle of a book.
type Title struct {
	Title    string `json:"titel"`
	Subtitle string `json:"untertitel,omitempty"`
}

// Image describes an illustration attached to a book (metadata only).
type Image struct {
	Caption     string `json:"beschriftung"`
	ContentType string `json:"contentType"`
}

// Book is a catalog record as served by the backend.
type Book struct {
	ID        uint64     `json:"id"`
	Version   uint32     `json:"version"` // 0 at creation, +1 per accepted update
	ISBN      string     `json:"isbn"`
	Rating    int        `json:"rating"`
	Category  Category   `json:"art,omitempty"`
	Price     float64    `json:"preis"`
	Discount  float64    `json:"rabatt"`
	Available bool       `json:"lieferbar"`
	Released  string     `json:"datum,omitempty"` // YYYY-MM-DD
	Homepage  string     `json:"homepage,omitempty"`
	Keywords  []string   `json:"schlagwoerter,omitempty"`
	Title     *Title     `json:"titel,omitempty"`
	Images    []Image    `json:"abbildungen,omitempty"`
	CreatedAt *time.Time `json:"erzeugt,omitempty"`
	UpdatedAt *time.Time `json:"aktualisiert,omitempty"`
}

// BookUpdate is the writable part of a book (relations excluded).
type BookUpdate struct {
	ISBN      string   `json:"isbn"`
	Rating    int      `json:"rating"`
	Category  Category `json:"art,omitempty"`
	Price     float64  `json:"preis"`
	Discount  float64  `json:"rabatt"`
	Available bool     `json:"lieferbar"`
	Released  string   `json:"datum,omitempty"`
	Homepage  string   `json:"homepage,omitempty"`
	Keywords  []string `json:"schlagwoerter,omitempty"`
}

// BookInput is the payload for creating a book.
type BookInput struct {
	BookUpdate
	Title  Title   `json:"titel"`
	Images []Image `json:"abbildungen,omitempty"`
}

// UpdateOf extracts the writable fields of b.
func UpdateOf(b Book) BookUpdate {
	return BookUpdate{
		ISBN:      b.ISBN,
		Rating:    b.Rating,
		Category:  b.Category,
		Price:     b.Price,
		Discount:  b.Discount,
		Available: b.Available,
		Released:  b.Released,
		Homepage:  b.Homepage,
		Keywords:  append([]string(nil), b.Keywords...),
	}
}

// Filter narrows a catalog search. Nil fields mean "any".
type Filter struct {
	Title     string
	ISBN      string
	Category  *Category
	MinRating *int
	Available *bool
}

// PageRequest addresses one page of results (zero-based).
type PageRequest struct {
	Number int
	Size   int
}

// PageMeta is the pagination block of a search response.
type PageMeta struct {
	Size          int    `json:"size"`
	Number        int    `json:"number"`
	TotalElements uint64 `json:"totalElements"`
	TotalPages    int    `json:"totalPages"`
}

// Page is one page of books.
type Page struct {
	Content []Book   `json:"content"`
	Page    PageMeta `json:"page"`
}

// TotalPages derives the page count for total elements at the given size.
func TotalPages(total uint64, size int) int {
	if size <= 0 {
		return 0
	}
	return int((total + uint64(size) - 1) / uint64(size))
}

// Tokens is an issued access token (no refresh support).
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// RoleAdmin may create, edit and delete books.
const RoleAdmin = "admin"

// User represents an account of the development identity provider.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique
	PwdHash   []byte    // Argon2id(password, Salt)
	Salt      []byte
	Roles     []string
	CreatedAt time.Time
}

// HasRole reports whether the user carries role.
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
