package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zzy10151020/MBTI-System-sub000/internal/models"
)

func newTokens(t *testing.T) *Tokens {
	t.Helper()
	tk, err := NewTokens("test-secret")
	if err != nil {
		t.Fatalf("new tokens: %v", err)
	}
	return tk
}

func TestTokensRoundTrip(t *testing.T) {
	tk := newTokens(t)
	tok, err := tk.Sign("u1", "alice", models.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	c, err := tk.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.UID != "u1" || c.Username != "alice" || c.Role != models.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", c)
	}
}

func TestTokensRejectExpiredAndForeign(t *testing.T) {
	tk := newTokens(t)
	tk.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := tk.Sign("u1", "alice", models.RoleUser, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tk.now = time.Now
	if _, err := tk.Parse(expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	other, _ := NewTokens("other-secret")
	foreign, _ := other.Sign("u1", "alice", models.RoleUser, time.Hour)
	if _, err := tk.Parse(foreign); err == nil {
		t.Fatalf("expected token signed with another secret to fail")
	}
	if _, err := NewTokens("  "); err == nil {
		t.Fatalf("expected empty secret to be rejected")
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestRequireRole(t *testing.T) {
	tk := newTokens(t)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := LocaleMiddleware(tk.WithAuth(RequireRole(models.RoleAdmin)(ok)))

	userTok, _ := tk.Sign("u1", "bob", models.RoleUser, time.Hour)
	adminTok, _ := tk.Sign("u2", "root", models.RoleAdmin, time.Hour)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"user", "Bearer " + userTok, http.StatusForbidden},
		{"admin", "Bearer " + adminTok, http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
		if tc.status >= 400 {
			env := decodeEnvelope(t, rec)
			if env.Success || env.Message == "" || env.Timestamp == 0 {
				t.Fatalf("%s: unexpected envelope %+v", tc.name, env)
			}
		}
	}
}

func TestErrorEnvelopeLocalized(t *testing.T) {
	h := LocaleMiddleware(RequireAuth(http.NotFoundHandler()))
	req := httptest.NewRequest(http.MethodGet, "/x?lang=zh", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Language"); got != "zh" {
		t.Fatalf("expected zh content language, got %q", got)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "未登录或登录已过期" {
		t.Fatalf("expected zh message, got %q", env.Message)
	}
}

func TestHeaders(t *testing.T) {
	h := SecureHeaders(NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff")
	}
	if !strings.HasPrefix(rec.Header().Get("Cache-Control"), "no-store") {
		t.Fatalf("missing no-store")
	}
}

func TestMetricsInstrument(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/api/answers/{id}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/answers/"+id, nil))
	}
	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/answers/{id}", "418"))
	if got != 3 {
		t.Fatalf("expected 3 requests on the route pattern, got %v", got)
	}

	m.ObserveSubmission("accepted")
	m.ObserveSubmission("duplicate")
	m.ObserveSubmission("accepted")
	if v := testutil.ToFloat64(m.submissions.WithLabelValues("accepted")); v != 2 {
		t.Fatalf("expected 2 accepted, got %v", v)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "mbti_answer_submissions_total") {
		t.Fatalf("metrics output missing submissions counter")
	}
}
