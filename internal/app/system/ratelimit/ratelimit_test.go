package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/groupdeal/internal/app/system/ratelimit"
)

func TestAllow(t *testing.T) {
	l := ratelimit.New(2, time.Minute)

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should be allowed")
	}
	if l.Allow("a") {
		t.Error("third request in the window should be blocked")
	}
	// Other keys have their own windows.
	if !l.Allow("b") {
		t.Error("different key should not be affected")
	}
}

func TestAllow_WindowRollover(t *testing.T) {
	l := ratelimit.New(1, 20*time.Millisecond)

	if !l.Allow("a") {
		t.Fatal("first request should be allowed")
	}
	if l.Allow("a") {
		t.Fatal("second request should be blocked")
	}
	time.Sleep(30 * time.Millisecond)
	if !l.Allow("a") {
		t.Error("request after the window expires should be allowed")
	}
}

func TestReset(t *testing.T) {
	l := ratelimit.New(1, time.Minute)

	l.Allow("a")
	if l.Allow("a") {
		t.Fatal("limit should be hit")
	}
	l.Reset("a")
	if !l.Allow("a") {
		t.Error("Reset should clear the window")
	}
}

func TestMiddleware(t *testing.T) {
	l := ratelimit.New(1, time.Minute)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		want       string
	}{
		{"remote addr only", "192.0.2.1:8080", "", "", "192.0.2.1"},
		{"x-forwarded-for wins", "192.0.2.1:8080", "203.0.113.7, 10.0.0.1", "", "203.0.113.7"},
		{"x-real-ip fallback", "192.0.2.1:8080", "", "203.0.113.9", "203.0.113.9"},
		{"no port", "192.0.2.5", "", "", "192.0.2.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ratelimit.ClientIP(req); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
