package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(Config{Requests: 2, Period: time.Minute})
	defer l.Stop()
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("u1") || !l.Allow("u1") {
		t.Fatal("first two requests rejected")
	}
	if l.Allow("u1") {
		t.Error("third request allowed")
	}
	if !l.Allow("u2") {
		t.Error("other key limited")
	}

	now = now.Add(time.Minute)
	if !l.Allow("u1") {
		t.Error("request after window rejected")
	}
	if m := l.Metrics(); m.Rejected != 1 || m.ActiveKeys != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter(Config{Requests: 1, Period: time.Second})
	defer l.Stop()
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(time.Minute)
	l.cleanup()
	if m := l.Metrics(); m.ActiveKeys != 0 {
		t.Errorf("ActiveKeys = %d, want 0", m.ActiveKeys)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	l := NewLimiter(PerMinute(1))
	defer l.Stop()

	h := l.Middleware(func(r *http.Request) string { return r.RemoteAddr }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != want {
			t.Errorf("request %d status = %d, want %d", i, rec.Code, want)
		}
	}
}
