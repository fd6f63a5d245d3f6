package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/model"
)

// BookRepo implements BookRepository using PostgreSQL.
type BookRepo struct{ db *DB }

// NewBookRepo constructs a book repository.
func NewBookRepo(db *DB) *BookRepo { return &BookRepo{db: db} }

var bookColumns = []string{
	"id", "version", "isbn", "rating", "COALESCE(art,'')", "preis", "rabatt", "lieferbar",
	"COALESCE(datum::text,'')", "COALESCE(homepage,'')", "schlagwoerter",
	"titel", "COALESCE(untertitel,'')", "erzeugt", "aktualisiert",
}

func scanBook(row pgx.Row) (model.Book, error) {
	var (
		b            model.Book
		art          string
		title, sub   string
		created, upd time.Time
	)
	err := row.Scan(&b.ID, &b.Version, &b.ISBN, &b.Rating, &art, &b.Price, &b.Discount, &b.Available,
		&b.Released, &b.Homepage, &b.Keywords, &title, &sub, &created, &upd)
	if err != nil {
		return model.Book{}, err
	}
	b.Category = model.Category(art)
	b.Title = &model.Title{Title: title, Subtitle: sub}
	b.CreatedAt, b.UpdatedAt = &created, &upd
	return b, nil
}

// Create inserts the book and its images in one transaction.
func (r *BookRepo) Create(ctx context.Context, in model.BookInput) (id uint64, err error) {
	const ins = `
INSERT INTO books (isbn, rating, art, preis, rabatt, lieferbar, datum, homepage, schlagwoerter, titel, untertitel)
VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, NULLIF($7,'')::date, NULLIF($8,''), $9, $10, NULLIF($11,''))
RETURNING id`
	const insImg = `INSERT INTO abbildungen (buch_id, beschriftung, content_type) VALUES ($1, $2, $3)`

	keywords := in.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, ins,
			in.ISBN, in.Rating, string(in.Category), in.Price, in.Discount, in.Available,
			in.Released, in.Homepage, keywords, in.Title.Title, in.Title.Subtitle,
		).Scan(&id); err != nil {
			if isUniqueViolation(err) {
				return errs.ErrAlreadyExists
			}
			return err
		}
		for _, img := range in.Images {
			if _, err := tx.Exec(ctx, insImg, id, img.Caption, img.ContentType); err != nil {
				return fmt.Errorf("image %q: %w", img.Caption, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Get loads a book and its images.
func (r *BookRepo) Get(ctx context.Context, id uint64) (*model.Book, error) {
	q, args, err := psql.Select(bookColumns...).From("books").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	b, err := scanBook(r.db.Pool.QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	const imgs = `SELECT beschriftung, content_type FROM abbildungen WHERE buch_id=$1 ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, imgs, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.Caption, &img.ContentType); err != nil {
			return nil, err
		}
		b.Images = append(b.Images, img)
	}
	return &b, rows.Err()
}

// filterExpr turns a filter into a WHERE clause; nil when nothing is filtered.
func filterExpr(f model.Filter) sq.Sqlizer {
	var and sq.And
	if f.Title != "" {
		and = append(and, sq.ILike{"titel": "%" + f.Title + "%"})
	}
	if f.ISBN != "" {
		and = append(and, sq.Eq{"isbn": model.NormalizeISBN(f.ISBN)})
	}
	if f.Category != nil {
		and = append(and, sq.Eq{"art": string(*f.Category)})
	}
	if f.MinRating != nil {
		and = append(and, sq.GtOrEq{"rating": *f.MinRating})
	}
	if f.Available != nil {
		and = append(and, sq.Eq{"lieferbar": *f.Available})
	}
	if len(and) == 0 {
		return nil
	}
	return and
}

// Find returns one page ordered by id together with the total match count.
func (r *BookRepo) Find(ctx context.Context, f model.Filter, p model.PageRequest) ([]model.Book, uint64, error) {
	countQ := psql.Select("count(*)").From("books")
	listQ := psql.Select(bookColumns...).From("books").
		OrderBy("id").
		Limit(uint64(p.Size)).
		Offset(uint64(p.Number) * uint64(p.Size))
	if where := filterExpr(f); where != nil {
		countQ = countQ.Where(where)
		listQ = listQ.Where(where)
	}

	q, args, err := countQ.ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.Pool.QueryRow(ctx, q, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q, args, err = listQ.ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, uint64(total), rows.Err()
}

// Count returns the number of books.
func (r *BookRepo) Count(ctx context.Context) (uint64, error) {
	const q = `SELECT count(*) FROM books`
	var n int64
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// Update applies upd under a row lock when the stored version equals expected.
func (r *BookRepo) Update(ctx context.Context, id uint64, upd model.BookUpdate, expected uint32) (newVer uint32, err error) {
	const sel = `SELECT version FROM books WHERE id=$1 FOR UPDATE`
	const up = `
UPDATE books SET isbn=$2, rating=$3, art=NULLIF($4,''), preis=$5, rabatt=$6, lieferbar=$7,
  datum=NULLIF($8,'')::date, homepage=NULLIF($9,''), schlagwoerter=$10, version=$11, aktualisiert=now()
WHERE id=$1`

	keywords := upd.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		var cur uint32
		if err := tx.QueryRow(ctx, sel, id).Scan(&cur); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if cur != expected {
			return errs.ErrVersionConflict
		}
		newVer = cur + 1
		_, err := tx.Exec(ctx, up, id, upd.ISBN, upd.Rating, string(upd.Category), upd.Price, upd.Discount,
			upd.Available, upd.Released, upd.Homepage, keywords, newVer)
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return newVer, nil
}

// Delete removes a book and, by cascade, its images.
func (r *BookRepo) Delete(ctx context.Context, id uint64) error {
	const q = `DELETE FROM books WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
