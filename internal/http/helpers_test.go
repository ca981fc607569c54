package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	"carmarket/internal/clock"
	"carmarket/internal/config"
	"carmarket/internal/http/handlers"
	applog "carmarket/internal/log"
	"carmarket/internal/repos"
)

type testEnv struct {
	app   *fiber.App
	users *repos.UserRepo
}

// newTestEnv builds the real app over an in-memory SQLite db with the
// seeded users and cars. Limits are raised unless o sets them.
func newTestEnv(t *testing.T, o handlers.Options) *testEnv {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	deps, err := handlers.NewDeps(context.Background(), db, config.Config{Store: config.StoreSQLite}, clock.NewSystem())
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	if o.RateMax == 0 {
		o.RateMax = 10000
	}
	if o.LoginMax == 0 {
		o.LoginMax = 1000
	}
	return &testEnv{app: handlers.NewApp(deps, o), users: deps.Auth.Users}
}

// client carries the csrf and session cookies between requests.
type client struct {
	t    *testing.T
	app  *fiber.App
	csrf string
	sid  string
}

func cookieValue(resp *http.Response, name string) (string, bool) {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func (e *testEnv) client(t *testing.T) *client {
	t.Helper()
	resp, err := e.app.Test(httptest.NewRequest("GET", "/api/v1/auth/csrf", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	tok, _ := cookieValue(resp, "csrf_")
	if tok == "" {
		t.Fatal("csrf token missing")
	}
	return &client{t: t, app: e.app, csrf: tok}
}

// as binds a session straight to userID, skipping the login round trip.
func (e *testEnv) as(t *testing.T, userID string) *client {
	t.Helper()
	c := e.client(t)
	c.sid = "sid-" + userID
	if err := e.users.BindSession(context.Background(), c.sid, userID); err != nil {
		t.Fatalf("bind session: %v", err)
	}
	return c
}

func (c *client) send(method, path, contentType string, body io.Reader) (int, map[string]any) {
	c.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Csrf-Token", c.csrf)
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: c.csrf})
	if c.sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: c.sid})
	}
	resp, err := c.app.Test(req, -1)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	if sid, ok := cookieValue(resp, "sid"); ok {
		c.sid = sid
	}
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (c *client) do(method, path string, body any) (int, map[string]any) {
	c.t.Helper()
	if body == nil {
		return c.send(method, path, "", nil)
	}
	b, err := json.Marshal(body)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	return c.send(method, path, fiber.MIMEApplicationJSON, bytes.NewReader(b))
}

func (c *client) expect(method, path string, body any, want int) map[string]any {
	c.t.Helper()
	got, out := c.do(method, path, body)
	if got != want {
		c.t.Fatalf("%s %s: expected %d, got %d body=%v", method, path, want, got, out)
	}
	return out
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Kind   string         `json:"kind"`
	ReqID  string         `json:"req_id"`
	Fields map[string]any `json:"fields"`
}

type lockedWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// captureLogs points the process logger at a buffer while fn runs.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	w := &lockedWriter{}
	applog.Init("production", w)
	defer applog.Init("production", io.Discard)

	fn()

	w.mu.Lock()
	defer w.mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(w.buf.String()), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
