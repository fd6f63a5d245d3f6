// Package gateway is the single place outbound catalog requests pass through.
// It attaches the session's bearer token, tags requests with an id, throttles
// the client and invalidates the session on 401.
package gateway

import (
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HeaderRequestID carries the per-request correlation id.
const HeaderRequestID = "X-Request-ID"

const (
	// defaultRatePerSecond is the max requests per second the client will make
	defaultRatePerSecond = 20
	defaultBurst         = 40
)

// Session is the slice of the auth session the gateway needs.
type Session interface {
	CurrentToken() (string, bool)
	Logout()
}

// Transport is an http.RoundTripper wrapping Base.
type Transport struct {
	Base    http.RoundTripper
	Session Session
	Limiter *rate.Limiter
	Log     *zap.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
// ratePerSecond <= 0 selects the default rate.
func NewTransport(base http.RoundTripper, sess Session, ratePerSecond float64, log *zap.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if log == nil {
		log = zap.NewNop()
	}
	burst := defaultBurst
	if ratePerSecond <= 0 {
		ratePerSecond = defaultRatePerSecond
	} else {
		burst = int(2 * ratePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Transport{
		Base:    base,
		Session: sess,
		Limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		Log:     log.Named("gateway"),
	}
}

// NewHTTPClient returns a client using t with the given timeout.
func NewHTTPClient(t *Transport, timeout time.Duration) *http.Client {
	return &http.Client{Transport: t, Timeout: timeout}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	// RoundTrippers must not modify the caller's request
	out := req.Clone(req.Context())
	if t.Session != nil {
		if tok, ok := t.Session.CurrentToken(); ok {
			out.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	if out.Header.Get(HeaderRequestID) == "" {
		if id, err := uuid.NewV4(); err == nil {
			out.Header.Set(HeaderRequestID, id.String())
		}
	}

	start := time.Now()
	resp, err := t.Base.RoundTrip(out)
	if err != nil {
		t.Log.Debug("request failed",
			zap.String("method", out.Method),
			zap.String("path", out.URL.Path),
			zap.Error(err),
		)
		return nil, err
	}
	t.Log.Debug("request",
		zap.String("method", out.Method),
		zap.String("path", out.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
		zap.String("request_id", out.Header.Get(HeaderRequestID)),
	)

	if resp.StatusCode == http.StatusUnauthorized && t.Session != nil {
		t.Log.Info("backend rejected credentials, ending session", zap.String("path", out.URL.Path))
		t.Session.Logout()
	}
	return resp, nil
}
