package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/etag"
	"github.com/and161185/bookshelf/internal/model"
	"github.com/and161185/bookshelf/internal/route"
	"github.com/and161185/bookshelf/internal/search"
)

func prompt(cmd *cobra.Command, r *bufio.Reader, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd(o *rootOptions) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with the identity provider and keep the token",
		Example: `  shelf login -u admin
  echo "$PASSWORD" | shelf login -u admin`,
		Args: cobra.NoArgs,
		RunE: run(o, func(a *app, cmd *cobra.Command, _ []string) error {
			if _, err := a.enter("login"); err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if username == "" {
				if username, err = prompt(cmd, in, "username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(cmd, in, "password: "); err != nil {
					return err
				}
			}
			if err := a.session.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			if ok, err := a.out.structured(viewOf(a.session.Snapshot())); ok {
				return err
			}
			a.out.success("logged in as %s", username)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "user name (prompted when empty)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	return cmd
}

func newLogoutCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: run(o, func(a *app, _ *cobra.Command, _ []string) error {
			a.nav.muted = true
			a.session.Logout()
			a.out.success("logged out")
			return nil
		}),
	}
}

func newWhoamiCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: run(o, func(a *app, _ *cobra.Command, _ []string) error {
			return a.out.session(a.session.Snapshot())
		}),
	}
}

func newSearchCmd(o *rootOptions) *cobra.Command {
	var (
		title, isbn, art string
		rating           int
		available        bool
		page, size       int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the catalog",
		Example: `  shelf search --title go --art EPUB --rating 4
  shelf search --available --page 2 --size 20 -o json`,
		Args: cobra.NoArgs,
		RunE: run(o, func(a *app, cmd *cobra.Command, _ []string) error {
			if _, err := a.enter("search"); err != nil {
				return err
			}
			opts := []search.Option{search.WithTitle(title), search.WithISBN(isbn)}
			if art != "" {
				c, err := parseCategory(art)
				if err != nil {
					return err
				}
				opts = append(opts, search.WithCategory(c))
			}
			if cmd.Flags().Changed("rating") {
				opts = append(opts, search.WithMinRating(rating))
			}
			if cmd.Flags().Changed("available") {
				opts = append(opts, search.WithAvailable(available))
			}
			a.search.UpdateCriteria(opts...)
			if err := a.search.SetPage(cmd.Context(), page-1, size); err != nil {
				return err
			}
			return a.out.results(a.search.Snapshot())
		}),
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "title contains (case-insensitive)")
	f.StringVar(&isbn, "isbn", "", "exact ISBN")
	f.StringVar(&art, "art", "", "format: EPUB, HARDCOVER or PAPERBACK")
	f.IntVar(&rating, "rating", 0, "minimum rating")
	f.BoolVar(&available, "available", false, "only available (--available=false for unavailable)")
	f.IntVar(&page, "page", 1, "page number, starting at 1")
	f.IntVar(&size, "size", search.DefaultPageSize, fmt.Sprintf("page size, one of %v", search.PageSizes))
	return cmd
}

func newCountCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of books",
		Args:  cobra.NoArgs,
		RunE: run(o, func(a *app, cmd *cobra.Command, _ []string) error {
			if _, err := a.enter("search"); err != nil {
				return err
			}
			n, err := a.books.Count(cmd.Context())
			if err != nil {
				return err
			}
			if ok, err := a.out.structured(map[string]uint64{"count": n}); ok {
				return err
			}
			fmt.Fprintf(a.out.w, "%d books\n", n)
			return nil
		}),
	}
}

func matchID(m route.Match) (uint64, error) {
	return strconv.ParseUint(m.Params["id"], 10, 64)
}

func newGetCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one book",
		Args:  cobra.ExactArgs(1),
		RunE: run(o, func(a *app, cmd *cobra.Command, args []string) error {
			m, err := a.enter("book/" + args[0])
			if err != nil {
				return err
			}
			id, err := matchID(m)
			if err != nil {
				return err
			}
			b, v, err := a.books.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			b.Version = uint32(v)
			return a.out.book(b)
		}),
	}
}

// bookFlags are the editable fields as command line flags.
type bookFlags struct {
	file      string
	isbn      string
	title     string
	subtitle  string
	rating    int
	art       string
	price     float64
	discount  float64
	available bool
	date      string
	homepage  string
	keywords  string
	images    []string
}

func (bf *bookFlags) register(f *pflag.FlagSet, create bool) {
	if create {
		f.StringVarP(&bf.file, "file", "f", "", "read the book as JSON from a file (- for stdin)")
		f.StringVar(&bf.title, "title", "", "title")
		f.StringVar(&bf.subtitle, "subtitle", "", "subtitle")
		f.StringArrayVar(&bf.images, "image", nil, `image as "caption:content/type", repeatable`)
	}
	f.StringVar(&bf.isbn, "isbn", "", "ISBN-13, hyphens allowed")
	f.IntVar(&bf.rating, "rating", 0, "rating 0..5")
	f.StringVar(&bf.art, "art", "", "format: EPUB, HARDCOVER or PAPERBACK")
	f.Float64Var(&bf.price, "price", 0, "price")
	f.Float64Var(&bf.discount, "discount", 0, "discount 0..1")
	f.BoolVar(&bf.available, "available", false, "available for delivery")
	f.StringVar(&bf.date, "date", "", "release date YYYY-MM-DD")
	f.StringVar(&bf.homepage, "homepage", "", "homepage URL")
	f.StringVar(&bf.keywords, "keywords", "", "comma separated keywords")
}

// apply copies the flags the user set onto u.
func (bf *bookFlags) apply(f *pflag.FlagSet, u *model.BookUpdate) error {
	if f.Changed("isbn") {
		u.ISBN = bf.isbn
	}
	if f.Changed("rating") {
		u.Rating = bf.rating
	}
	if f.Changed("art") {
		c, err := parseCategory(bf.art)
		if err != nil {
			return err
		}
		u.Category = c
	}
	if f.Changed("price") {
		u.Price = bf.price
	}
	if f.Changed("discount") {
		u.Discount = bf.discount
	}
	if f.Changed("available") {
		u.Available = bf.available
	}
	if f.Changed("date") {
		u.Released = bf.date
	}
	if f.Changed("homepage") {
		u.Homepage = bf.homepage
	}
	if f.Changed("keywords") {
		u.Keywords = model.ParseKeywords(bf.keywords)
	}
	return nil
}

func (bf *bookFlags) input(cmd *cobra.Command) (model.BookInput, error) {
	var in model.BookInput
	if bf.file != "" {
		var r io.Reader = cmd.InOrStdin()
		if bf.file != "-" {
			fh, err := os.Open(bf.file)
			if err != nil {
				return in, err
			}
			defer fh.Close()
			r = fh
		}
		if err := json.NewDecoder(r).Decode(&in); err != nil {
			return in, fmt.Errorf("decode %s: %w", bf.file, err)
		}
	}
	f := cmd.Flags()
	if err := bf.apply(f, &in.BookUpdate); err != nil {
		return in, err
	}
	if f.Changed("title") {
		in.Title.Title = bf.title
	}
	if f.Changed("subtitle") {
		in.Title.Subtitle = bf.subtitle
	}
	for _, s := range bf.images {
		caption, ct, ok := strings.Cut(s, ":")
		if !ok {
			return in, errs.New(errs.KindValidation, "invalid image", fmt.Sprintf("%q: want caption:content/type", s))
		}
		in.Images = append(in.Images, model.Image{Caption: caption, ContentType: ct})
	}
	return in, nil
}

func parseCategory(s string) (model.Category, error) {
	c := model.Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", errs.New(errs.KindValidation, "invalid format", fmt.Sprintf("art: unknown value %q", s))
	}
	return c, nil
}

func newCreateCmd(o *rootOptions) *cobra.Command {
	bf := &bookFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a book (admin)",
		Example: `  shelf create --isbn 978-0-00-700644-1 --title Alpha --rating 4 --art EPUB --price 19.99
  shelf create -f book.json`,
		Args: cobra.NoArgs,
		RunE: run(o, func(a *app, cmd *cobra.Command, _ []string) error {
			if _, err := a.enter("book/new"); err != nil {
				return err
			}
			in, err := bf.input(cmd)
			if err != nil {
				return err
			}
			id, err := a.books.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			if ok, err := a.out.structured(map[string]uint64{"id": id}); ok {
				return err
			}
			a.out.success("created book %d", id)
			return nil
		}),
	}
	bf.register(cmd.Flags(), true)
	return cmd
}

func newUpdateCmd(o *rootOptions) *cobra.Command {
	bf := &bookFlags{}
	var version uint32
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a book (admin); fails if someone else changed it first",
		Example: `  shelf update 1001 --rating 5
  shelf update 1001 --price 9.99 --version 3`,
		Args: cobra.ExactArgs(1),
		RunE: run(o, func(a *app, cmd *cobra.Command, args []string) error {
			m, err := a.enter("book/" + args[0] + "/edit")
			if err != nil {
				return err
			}
			id, err := matchID(m)
			if err != nil {
				return err
			}
			b, v, err := a.books.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("version") {
				v = etag.Version(version)
			}
			upd := model.UpdateOf(b)
			if err := bf.apply(cmd.Flags(), &upd); err != nil {
				return err
			}
			nv, err := a.books.Update(cmd.Context(), id, upd, v)
			if err != nil {
				return err
			}
			if ok, err := a.out.structured(map[string]uint64{"id": id, "version": uint64(nv)}); ok {
				return err
			}
			a.out.success("updated book %d, now version %d", id, nv)
			return nil
		}),
	}
	bf.register(cmd.Flags(), false)
	cmd.Flags().Uint32Var(&version, "version", 0, "expected version (defaults to the version just read)")
	return cmd
}

func newDeleteCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a book (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: run(o, func(a *app, cmd *cobra.Command, args []string) error {
			m, err := a.enter("book/" + args[0] + "/delete")
			if err != nil {
				return err
			}
			id, err := matchID(m)
			if err != nil {
				return err
			}
			if err := a.books.Delete(cmd.Context(), id); err != nil {
				return err
			}
			a.out.success("deleted book %d", id)
			return nil
		}),
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shelf %s (%s)\n", version, buildDate)
		},
	}
}
