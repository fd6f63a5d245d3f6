package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/model"
	"github.com/and161185/bookshelf/internal/search"
	"github.com/and161185/bookshelf/internal/session"
)

// Output formats accepted by -o.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case formatText, formatJSON, formatYAML:
		return &printer{w: w, format: format}, nil
	case "":
		return &printer{w: w, format: formatText}, nil
	}
	return nil, fmt.Errorf("output %q: want text, json or yaml", format)
}

// structured writes v as JSON or YAML; it reports false for text output.
func (p *printer) structured(v any) (bool, error) {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	}
	return false, nil
}

func (p *printer) success(format string, args ...any) {
	if p.format != formatText {
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", color.GreenString("✔"), fmt.Sprintf(format, args...))
}

func title(b model.Book) string {
	if b.Title == nil {
		return ""
	}
	if b.Title.Subtitle != "" {
		return b.Title.Title + " - " + b.Title.Subtitle
	}
	return b.Title.Title
}

func stars(r int) string {
	r = min(max(r, model.RatingMin), model.RatingMax)
	return strings.Repeat("★", r) + strings.Repeat("☆", model.RatingMax-r)
}

func (p *printer) book(b model.Book) error {
	if ok, err := p.structured(b); ok {
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	row := func(k string, v any) { fmt.Fprintf(tw, "%s\t%v\n", color.HiBlackString(k), v) }
	row("id", b.ID)
	row("version", b.Version)
	row("title", title(b))
	row("isbn", b.ISBN)
	row("rating", stars(b.Rating))
	row("format", b.Category)
	row("price", fmt.Sprintf("%.2f (discount %.0f%%)", b.Price, b.Discount*100))
	row("available", b.Available)
	if b.Released != "" {
		row("released", b.Released)
	}
	if b.Homepage != "" {
		row("homepage", b.Homepage)
	}
	if len(b.Keywords) > 0 {
		row("keywords", strings.Join(b.Keywords, ", "))
	}
	for _, img := range b.Images {
		row("image", img.Caption+" ("+img.ContentType+")")
	}
	return tw.Flush()
}

// searchView is the structured form of a search result.
type searchView struct {
	Books         []model.Book `json:"content" yaml:"content"`
	Page          int          `json:"page" yaml:"page"`
	Size          int          `json:"size" yaml:"size"`
	TotalElements uint64       `json:"totalElements" yaml:"totalElements"`
	TotalPages    int          `json:"totalPages" yaml:"totalPages"`
}

func (p *printer) results(s search.Snapshot) error {
	v := searchView{
		Books:         s.Books,
		Page:          s.Applied.Number,
		Size:          s.Applied.Size,
		TotalElements: s.TotalElements,
		TotalPages:    s.TotalPages(),
	}
	if ok, err := p.structured(v); ok {
		return err
	}
	if s.IsEmpty() {
		fmt.Fprintln(p.w, color.YellowString("no books found"))
		return nil
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, color.HiBlackString("ID\tISBN\tTITLE\tFORMAT\tRATING\tPRICE\tAVAILABLE"))
	for _, b := range s.Books {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%.2f\t%t\n", b.ID, b.ISBN, title(b), b.Category, b.Rating, b.Price, b.Available)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(p.w, "page %d of %d, %d books\n", s.Applied.Number+1, max(s.TotalPages(), 1), s.TotalElements)
	return nil
}

// whoamiView is the structured form of the session.
type whoamiView struct {
	LoggedIn  bool     `json:"loggedIn" yaml:"loggedIn"`
	Username  string   `json:"username,omitempty" yaml:"username,omitempty"`
	Roles     []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	ExpiresAt string   `json:"expiresAt,omitempty" yaml:"expiresAt,omitempty"`
}

func viewOf(s session.Snapshot) whoamiView {
	v := whoamiView{LoggedIn: s.LoggedIn, Username: s.Principal, Roles: s.Roles}
	if s.ExpiresAt != nil {
		v.ExpiresAt = s.ExpiresAt.Format("2006-01-02 15:04:05 MST")
	}
	return v
}

func (p *printer) session(s session.Snapshot) error {
	v := viewOf(s)
	if ok, err := p.structured(v); ok {
		return err
	}
	if !s.LoggedIn {
		fmt.Fprintln(p.w, "not logged in")
		return nil
	}
	fmt.Fprintf(p.w, "%s as %s, roles [%s], expires %s\n",
		color.GreenString("logged in"), color.CyanString(v.Username), strings.Join(v.Roles, ", "), v.ExpiresAt)
	return nil
}

// errorLine renders err for the terminal, one detail per line.
func errorLine(err error) string {
	var b strings.Builder
	var e *errs.Error
	b.WriteString(color.RedString("✘ "))
	if errors.As(err, &e) && len(e.Details) > 0 {
		b.WriteString(e.Message)
		for _, d := range e.Details {
			b.WriteString("\n    - " + d)
		}
		return b.String()
	}
	b.WriteString(errs.Message(err))
	return b.String()
}
