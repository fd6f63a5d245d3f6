package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("/rest/{id}", "GET", 200, 15*time.Millisecond)
	m.ObserveRequest("/rest/{id}", "GET", 200, 5*time.Millisecond)
	m.ObserveRequest("/rest/{id}", "PUT", 412, time.Millisecond)

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/rest/{id}", "GET", "200")); got != 2 {
		t.Errorf("GET 200 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/rest/{id}", "PUT", "412")); got != 1 {
		t.Errorf("PUT 412 = %v, want 1", got)
	}
}

func TestLoginAndConflicts(t *testing.T) {
	m := New()
	m.Login("ok")
	m.Login("denied")
	m.Login("denied")
	m.VersionConflictsTotal.Inc()

	if got := testutil.ToFloat64(m.LoginsTotal.WithLabelValues("denied")); got != 2 {
		t.Errorf("denied = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.VersionConflictsTotal); got != 1 {
		t.Errorf("conflicts = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Login("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `bookshelf_logins_total{outcome="ok"} 1`) {
		t.Errorf("metrics output missing login counter:\n%s", body)
	}
}
