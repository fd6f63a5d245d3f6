package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/and161185/bookshelf/internal/errs"
	"github.com/and161185/bookshelf/internal/etag"
	"github.com/and161185/bookshelf/internal/model"
)

func bookID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, errs.New(errs.KindValidation, "invalid id", "id: must be a positive integer")
	}
	return id, nil
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	b, err := s.books.Get(r.Context(), id)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	w.Header().Set(etag.HeaderETag, etag.Version(b.Version).String())
	writeJSON(w, http.StatusOK, b)
}

// parseFilter reads the search query parameters; malformed values are reported together.
func parseFilter(r *http.Request) (model.Filter, model.PageRequest, error) {
	q := r.URL.Query()
	var (
		f       model.Filter
		p       model.PageRequest
		details []string
	)
	f.Title = q.Get("titel")
	f.ISBN = q.Get("isbn")
	if v := q.Get("rating"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			details = append(details, "rating: must be an integer")
		} else {
			f.MinRating = &n
		}
	}
	if v := q.Get("art"); v != "" {
		c := model.Category(v)
		if !c.Valid() {
			details = append(details, fmt.Sprintf("art: unknown value %q", v))
		} else {
			f.Category = &c
		}
	}
	if v := q.Get("lieferbar"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			details = append(details, "lieferbar: must be true or false")
		} else {
			f.Available = &b
		}
	}
	for _, pp := range []struct {
		name string
		dst  *int
	}{{"page", &p.Number}, {"size", &p.Size}} {
		if v := q.Get(pp.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				details = append(details, pp.name+": must be a non-negative integer")
				continue
			}
			*pp.dst = n
		}
	}
	if len(details) > 0 {
		return f, p, errs.New(errs.KindValidation, "invalid query", details...)
	}
	return f, p, nil
}

func (s *Server) findBooks(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("only") == "count" {
		n, err := s.books.Count(r.Context())
		if err != nil {
			fail(w, s.log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]uint64{"count": n})
		return
	}
	f, p, err := parseFilter(r)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	page, err := s.books.Find(r.Context(), f, p)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	var in model.BookInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	id, err := s.books.Create(r.Context(), in)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	w.Header().Set("Location", fmt.Sprintf("%s://%s/rest/%d", scheme, r.Host, id))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) updateBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	raw := r.Header.Get(etag.HeaderIfMatch)
	if raw == "" {
		fail(w, s.log, errs.ErrPreconditionRequired)
		return
	}
	expected, ok := etag.Parse(raw)
	if !ok {
		writeError(w, http.StatusPreconditionFailed, "If-Match is not a version")
		return
	}
	var upd model.BookUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	ver, err := s.books.Update(r.Context(), id, upd, uint32(expected))
	if err != nil {
		if errs.KindOf(err) == errs.KindVersionConflict && s.metrics != nil {
			s.metrics.VersionConflictsTotal.Inc()
		}
		fail(w, s.log, err)
		return
	}
	w.Header().Set(etag.HeaderETag, etag.Version(ver).String())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookID(r)
	if err != nil {
		fail(w, s.log, err)
		return
	}
	if err := s.books.Delete(r.Context(), id); err != nil {
		fail(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
