// Package client is the catalog REST client. All requests go through the
// gateway transport of the supplied http.Client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/etag"
	"github.com/and161185/bookshelf/internal/gateway"
	"github.com/and161185/bookshelf/internal/model"
)

// Query parameter names understood by the backend.
const (
	ParamISBN      = "isbn"
	ParamRating    = "rating"
	ParamCategory  = "art"
	ParamAvailable = "lieferbar"
	ParamTitle     = "titel"
	ParamPage      = "page"
	ParamSize      = "size"
	ParamOnly      = "only"
)

// Client talks to {api}/rest.
type Client struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

// New returns a client for the API rooted at apiURL.
func New(apiURL string, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: strings.TrimRight(apiURL, "/") + "/rest",
		hc:   hc,
		log:  log.Named("client"),
	}
}

// Get loads one book and the version from its ETag (falling back to the body).
func (c *Client) Get(ctx context.Context, id uint64) (model.Book, etag.Version, error) {
	resp, err := c.do(ctx, http.MethodGet, c.bookURL(id), nil, nil)
	if err != nil {
		return model.Book{}, 0, err
	}
	defer resp.Body.Close()

	var b model.Book
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return model.Book{}, 0, fmt.Errorf("decode book: %w", err)
	}
	v := etag.Version(b.Version)
	if tag, ok := etag.Parse(resp.Header.Get(etag.HeaderETag)); ok {
		v = tag
	}
	return b, v, nil
}

// FindQuery renders filter and page as query parameters. Unset filters are omitted.
func FindQuery(f model.Filter, p model.PageRequest) url.Values {
	q := url.Values{}
	if f.ISBN != "" {
		q.Set(ParamISBN, f.ISBN)
	}
	if f.MinRating != nil {
		q.Set(ParamRating, strconv.Itoa(*f.MinRating))
	}
	if f.Category != nil {
		q.Set(ParamCategory, string(*f.Category))
	}
	if f.Available != nil {
		q.Set(ParamAvailable, strconv.FormatBool(*f.Available))
	}
	if f.Title != "" {
		q.Set(ParamTitle, f.Title)
	}
	q.Set(ParamPage, strconv.Itoa(p.Number))
	q.Set(ParamSize, strconv.Itoa(p.Size))
	return q
}

// Find runs a search. A 404 from the backend means no matches and yields an empty page.
func (c *Client) Find(ctx context.Context, f model.Filter, p model.PageRequest) (model.Page, error) {
	u := c.base + "?" + FindQuery(f, p).Encode()
	resp, err := c.do(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		if errs.KindOf(err) == errs.KindNotFound {
			return emptyPage(p), nil
		}
		return model.Page{}, err
	}
	defer resp.Body.Close()

	var page model.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return model.Page{}, fmt.Errorf("decode page: %w", err)
	}
	if page.Content == nil {
		page.Content = []model.Book{}
	}
	return page, nil
}

func emptyPage(p model.PageRequest) model.Page {
	return model.Page{Content: []model.Book{}, Page: model.PageMeta{Size: p.Size, Number: p.Number}}
}

// Count returns the number of books in the catalog.
func (c *Client) Count(ctx context.Context) (uint64, error) {
	resp, err := c.do(ctx, http.MethodGet, c.base+"?"+ParamOnly+"=count", nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var body struct {
		Count uint64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	return body.Count, nil
}

// Create validates and posts a new book, returning the id from the Location header.
func (c *Client) Create(ctx context.Context, in model.BookInput) (uint64, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return 0, err
	}
	resp, err := c.do(ctx, http.MethodPost, c.base, in, nil)
	if err != nil {
		return 0, err
	}
	defer drain(resp)

	loc := resp.Header.Get("Location")
	id, perr := strconv.ParseUint(path.Base(strings.TrimRight(loc, "/")), 10, 64)
	if loc == "" || perr != nil {
		return 0, fmt.Errorf("create: unexpected Location %q", loc)
	}
	return id, nil
}

// Update sends a conditional write for expected and returns the new version.
func (c *Client) Update(ctx context.Context, id uint64, upd model.BookUpdate, expected etag.Version) (etag.Version, error) {
	upd.Normalize()
	if err := upd.Validate(); err != nil {
		return 0, err
	}
	hdr := http.Header{}
	hdr.Set(etag.HeaderIfMatch, expected.String())
	resp, err := c.do(ctx, http.MethodPut, c.bookURL(id), upd, hdr)
	if err != nil {
		return 0, err
	}
	defer drain(resp)

	if v, ok := etag.Parse(resp.Header.Get(etag.HeaderETag)); ok {
		return v, nil
	}
	return expected.Next(), nil
}

// Delete removes a book. Deleting a missing book succeeds.
func (c *Client) Delete(ctx context.Context, id uint64) error {
	resp, err := c.do(ctx, http.MethodDelete, c.bookURL(id), nil, nil)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

func (c *Client) bookURL(id uint64) string {
	return c.base + "/" + strconv.FormatUint(id, 10)
}

// do executes the request and converts transport failures and non-2xx statuses to errs.
func (c *Client) do(ctx context.Context, method, u string, body any, hdr http.Header) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range hdr {
		req.Header[k] = vs
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, gateway.FromTransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		cerr := gateway.FromResponse(resp)
		c.log.Debug("request rejected", zap.String("method", method), zap.Int("status", resp.StatusCode), zap.Error(cerr))
		return nil, cerr
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
