package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/bookshelf/internal/gateway"
	"github.com/and161185/bookshelf/internal/limiter"
	"github.com/and161185/bookshelf/internal/metrics"
	"github.com/and161185/bookshelf/internal/model"
	"github.com/and161185/bookshelf/internal/repository/memory"
	"github.com/and161185/bookshelf/internal/service"
)

const validBook = `{"isbn":"978-0-00-700644-1","rating":4,"art":"EPUB","preis":19.99,"rabatt":0.1,"lieferbar":true,"titel":{"titel":"Alpha"}}`

type fixture struct {
	srv   *httptest.Server
	admin string
	user  string
	m     *metrics.Metrics
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	auth := service.NewAuthService(memory.NewUserRepo(), []byte("test-key"), time.Minute, "catalog",
		limiter.NewMemory(limiter.Policy{Window: time.Minute, MaxFails: 3, BlockFor: time.Minute}))
	ctx := context.Background()
	require.NoError(t, auth.SeedAdmin(ctx, "admin:p", model.RoleAdmin))
	_, err := auth.Register(ctx, "reader", "p")
	require.NoError(t, err)

	m := metrics.New()
	s := New(Config{Realm: "catalog", ClientID: "shelf-cli"},
		service.NewBookService(memory.NewBookRepo()), auth, zaptest.NewLogger(t),
		append([]Option{WithMetrics(m)}, opts...)...)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	f := &fixture{srv: srv, m: m}
	f.admin = f.login(t, "admin", "p")
	f.user = f.login(t, "reader", "p")
	return f
}

func (f *fixture) tokenForm(user, pass string) url.Values {
	return url.Values{
		"grant_type": {"password"},
		"client_id":  {"shelf-cli"},
		"username":   {user},
		"password":   {pass},
	}
}

func (f *fixture) login(t *testing.T, user, pass string) string {
	t.Helper()
	resp, err := http.PostForm(f.srv.URL+"/realms/catalog/protocol/openid-connect/token", f.tokenForm(user, pass))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tr tokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	require.Equal(t, "Bearer", tr.TokenType)
	require.Positive(t, tr.ExpiresIn)
	return tr.AccessToken
}

func (f *fixture) do(t *testing.T, method, path, token, body string, hdr map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func apiError(t *testing.T, resp *http.Response) gateway.APIError {
	t.Helper()
	var e gateway.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

func TestToken_Errors(t *testing.T) {
	f := newFixture(t)

	resp, err := http.PostForm(f.srv.URL+"/realms/catalog/protocol/openid-connect/token", f.tokenForm("admin", "wrong"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var oe oauthError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&oe))
	require.Equal(t, "invalid_grant", oe.Error)
	require.Equal(t, "Invalid user credentials", oe.Description)

	form := f.tokenForm("admin", "p")
	form.Set("grant_type", "client_credentials")
	resp2, err := http.PostForm(f.srv.URL+"/realms/catalog/protocol/openid-connect/token", form)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	resp3, err := http.PostForm(f.srv.URL+"/realms/other/protocol/openid-connect/token", f.tokenForm("admin", "p"))
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.Equal(t, http.StatusNotFound, resp3.StatusCode)
}

func TestToken_LockoutAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	var last int
	for i := 0; i < 3; i++ {
		resp, err := http.PostForm(f.srv.URL+"/realms/catalog/protocol/openid-connect/token", f.tokenForm("reader", "bad"))
		require.NoError(t, err)
		resp.Body.Close()
		last = resp.StatusCode
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

func TestBooks_CRUDWithVersions(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/rest", f.admin, validBook, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	loc := resp.Header.Get("Location")
	require.True(t, strings.HasSuffix(loc, "/rest/1001"), loc)

	resp = f.do(t, http.MethodGet, "/rest/1001", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, `"0"`, resp.Header.Get("ETag"))
	var b model.Book
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
	require.Equal(t, "9780007006441", b.ISBN)

	upd := `{"isbn":"9780007006441","rating":5,"art":"EPUB","preis":19.99,"rabatt":0.1,"lieferbar":true}`
	resp = f.do(t, http.MethodPut, "/rest/1001", f.admin, upd, map[string]string{"If-Match": `"0"`})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, `"1"`, resp.Header.Get("ETag"))

	resp = f.do(t, http.MethodPut, "/rest/1001", f.admin, upd, map[string]string{"If-Match": `"0"`})
	require.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/rest/1001", f.admin, upd, nil)
	require.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/rest/1001", f.admin, "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodDelete, "/rest/1001", f.admin, "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/rest/1001", "", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, http.StatusNotFound, apiError(t, resp).StatusCode)
}

func TestBooks_WritesRequireAdmin(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/rest", "", validBook, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/rest", f.user, validBook, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/rest", "garbage", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBooks_ValidationReportsEveryField(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/rest", f.admin, `{"isbn":"123","rating":7,"preis":1,"titel":{"titel":"A"}}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := apiError(t, resp)
	require.Len(t, e.Message, 3)

	resp = f.do(t, http.MethodPost, "/rest", f.admin, `{`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/rest", f.admin, validBook, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/rest", f.admin, validBook, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBooks_SearchAndCount(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/rest?titel=alp", "", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/rest", f.admin, validBook, nil).StatusCode)

	resp = f.do(t, http.MethodGet, "/rest?titel=alp&art=EPUB&rating=3&lieferbar=true&page=0&size=5", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p model.Page
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	require.Len(t, p.Content, 1)
	require.Equal(t, model.PageMeta{Size: 5, Number: 0, TotalElements: 1, TotalPages: 1}, p.Page)

	resp = f.do(t, http.MethodGet, "/rest?rating=x&art=VINYL", "", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Len(t, apiError(t, resp).Message, 2)

	resp = f.do(t, http.MethodGet, "/rest?only=count", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var c struct{ Count uint64 }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&c))
	require.Equal(t, uint64(1), c.Count)
}

func TestHealthAndMetrics(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	f := newFixture(t, WithHealthCheck(func(context.Context) error {
		if down.Load() {
			return errors.New("db down")
		}
		return nil
	}))

	require.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/healthz", "", "", nil).StatusCode)
	down.Store(false)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", "", nil).StatusCode)

	resp := f.do(t, http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sb bytes.Buffer
	_, _ = sb.ReadFrom(resp.Body)
	require.Contains(t, sb.String(), `bookshelf_logins_total{outcome="ok"} 2`)
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	h := Recover(zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
