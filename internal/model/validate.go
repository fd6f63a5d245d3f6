package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/and161185/bookshelf/internal/errs"
)

// Limits applied to writable book fields.
const (
	TitleMinLen    = 2
	TitleMaxLen    = 100
	SubtitleMaxLen = 100
	RatingMin      = 0
	RatingMax      = 5
	PriceMin       = 0.01 // for new books; stored books may be priced 0
	PriceMax       = 9999.99
	DateLayout     = "2006-01-02"
)

var homepageRe = regexp.MustCompile(`^https?://.+`)

// NormalizeISBN strips hyphens and whitespace.
func NormalizeISBN(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
}

// CheckISBN13 validates a normalized ISBN-13 including its check digit.
func CheckISBN13(isbn string) error {
	if len(isbn) != 13 {
		return fmt.Errorf("isbn must have 13 digits")
	}
	sum := 0
	for i := 0; i < 13; i++ {
		c := isbn[i]
		if c < '0' || c > '9' {
			return fmt.Errorf("isbn must have 13 digits")
		}
		if i == 12 {
			break
		}
		d := int(c - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	if int(isbn[12]-'0') != check {
		return fmt.Errorf("isbn checksum mismatch")
	}
	return nil
}

// ParseKeywords splits a comma separated list into trimmed upper-case keywords.
func ParseKeywords(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeKeywords(strings.Split(s, ","))
}

// NormalizeKeywords trims, upper-cases and drops empty keywords.
func NormalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Normalize canonicalizes ISBN and keywords in place.
func (u *BookUpdate) Normalize() {
	u.ISBN = NormalizeISBN(u.ISBN)
	u.Keywords = NormalizeKeywords(u.Keywords)
	u.Homepage = strings.TrimSpace(u.Homepage)
}

// Validate checks the writable fields and reports every violation at once.
func (u BookUpdate) Validate() error {
	var details []string
	if u.ISBN == "" {
		details = append(details, "isbn: required")
	} else if err := CheckISBN13(NormalizeISBN(u.ISBN)); err != nil {
		details = append(details, "isbn: "+err.Error())
	}
	if u.Rating < RatingMin || u.Rating > RatingMax {
		details = append(details, fmt.Sprintf("rating: must be between %d and %d", RatingMin, RatingMax))
	}
	if u.Category != "" && !u.Category.Valid() {
		details = append(details, fmt.Sprintf("art: unknown value %q", u.Category))
	}
	if u.Price < 0 || u.Price > PriceMax {
		details = append(details, fmt.Sprintf("preis: must be between 0 and %.2f", PriceMax))
	}
	if u.Discount < 0 || u.Discount > 1 {
		details = append(details, "rabatt: must be between 0 and 1")
	}
	if u.Released != "" {
		if _, err := time.Parse(DateLayout, u.Released); err != nil {
			details = append(details, "datum: expected YYYY-MM-DD")
		}
	}
	if u.Homepage != "" && !homepageRe.MatchString(u.Homepage) {
		details = append(details, "homepage: must start with http:// or https://")
	}
	if len(details) > 0 {
		return errs.New(errs.KindValidation, "invalid book", details...)
	}
	return nil
}

// Normalize canonicalizes the input in place.
func (in *BookInput) Normalize() {
	in.BookUpdate.Normalize()
	in.Title.Title = strings.TrimSpace(in.Title.Title)
	in.Title.Subtitle = strings.TrimSpace(in.Title.Subtitle)
}

// Validate checks a create payload.
func (in BookInput) Validate() error {
	var details []string
	if err := in.BookUpdate.Validate(); err != nil {
		if e, ok := err.(*errs.Error); ok {
			details = append(details, e.Details...)
		}
	}
	if in.Price >= 0 && in.Price < PriceMin {
		details = append(details, fmt.Sprintf("preis: must be at least %.2f", PriceMin))
	}
	n := utf8.RuneCountInString(in.Title.Title)
	if n < TitleMinLen || n > TitleMaxLen {
		details = append(details, fmt.Sprintf("titel: length must be between %d and %d", TitleMinLen, TitleMaxLen))
	}
	if utf8.RuneCountInString(in.Title.Subtitle) > SubtitleMaxLen {
		details = append(details, fmt.Sprintf("untertitel: at most %d characters", SubtitleMaxLen))
	}
	for i, img := range in.Images {
		if img.Caption == "" || img.ContentType == "" {
			details = append(details, fmt.Sprintf("abbildungen[%d]: caption and content type required", i))
		}
	}
	if len(details) > 0 {
		return errs.New(errs.KindValidation, "invalid book", details...)
	}
	return nil
}
