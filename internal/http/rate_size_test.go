package handlers_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carmarket/internal/http/handlers"
)

func TestRateLimits(t *testing.T) {
	env := newTestEnv(t, handlers.Options{RateMax: 3, RateWindow: time.Minute})

	for i := 0; i < 4; i++ {
		resp, err := env.app.Test(httptest.NewRequest("GET", "/api/v1/cars", nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		if i < 3 && resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("hit rate limit too early at %d", i)
		}
		if i == 3 && resp.StatusCode != http.StatusTooManyRequests {
			t.Fatalf("expected 429 after limit, got %d", resp.StatusCode)
		}
	}

	// Health checks are never throttled.
	resp, err := env.app.Test(httptest.NewRequest("GET", "/healthz", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz throttled: %d", resp.StatusCode)
	}
}

func TestBodySizeLimit(t *testing.T) {
	env := newTestEnv(t, handlers.Options{BodyLimit: 4 << 10})
	c := env.as(t, "u-asha")

	oversize := bytes.Repeat([]byte("A"), (4<<10)+10)
	req := httptest.NewRequest("POST", "/api/v1/bookings", bytes.NewReader(oversize))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Csrf-Token", c.csrf)
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: c.csrf})
	req.AddCookie(&http.Cookie{Name: "sid", Value: c.sid})
	resp, err := env.app.Test(req, -1)
	// fasthttp may refuse the body before fiber sees it; that counts too.
	if err != nil {
		if strings.Contains(err.Error(), "body size exceeds") || strings.Contains(err.Error(), "too large") {
			return
		}
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 413 for oversize, got %d body=%s", resp.StatusCode, string(body))
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, handlers.Options{})
	resp, err := env.app.Test(httptest.NewRequest("GET", "/api/v1/cars", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("helmet headers missing: %v", resp.Header)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("request id header missing")
	}
}
