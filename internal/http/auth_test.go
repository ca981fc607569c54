package handlers_test

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"carmarket/internal/http/handlers"
	"carmarket/internal/repos"
)

func TestPasswordsSeededAreHashed(t *testing.T) {
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	var hashes []string
	if err := db.Select(&hashes, `SELECT password_hash FROM users`); err != nil {
		t.Fatalf("select hashes: %v", err)
	}
	if len(hashes) == 0 {
		t.Fatal("no users seeded")
	}
	for _, h := range hashes {
		if strings.Contains(h, "Passw0rd!") {
			t.Fatalf("hash contains plaintext password")
		}
		if !strings.HasPrefix(h, "$2") {
			t.Fatalf("unexpected hash format: %s", h)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(h), []byte("Passw0rd!")); err != nil {
			t.Fatalf("seed hash does not validate known password: %v", err)
		}
	}
}

func TestLoginSuccessFailAndThrottle(t *testing.T) {
	env := newTestEnv(t, handlers.Options{LoginMax: 2, LoginWindow: time.Minute})
	c := env.client(t)

	// bad password -> 401
	out := c.expect("POST", "/api/v1/auth/login", map[string]string{"email": "asha@carmarket.test", "password": "wrongpass!"}, 401)
	if out["code"] != "unauthenticated" {
		t.Fatalf("unexpected error body: %v", out)
	}
	if c.sid != "" {
		t.Fatalf("failed login must not set a session")
	}

	// good password -> 200 with the actor
	out = c.expect("POST", "/api/v1/auth/login", map[string]string{"email": "asha@carmarket.test", "password": "Passw0rd!"}, 200)
	user, _ := out["user"].(map[string]any)
	if user["id"] != "u-asha" || user["role"] != "customer" {
		t.Fatalf("unexpected login body: %v", out)
	}
	if c.sid == "" {
		t.Fatal("login did not set sid")
	}

	// third attempt inside the window -> 429
	c.expect("POST", "/api/v1/auth/login", map[string]string{"email": "asha@carmarket.test", "password": "Passw0rd!"}, 429)
}

func TestLoginRejectsMalformedCredentials(t *testing.T) {
	env := newTestEnv(t, handlers.Options{})
	c := env.client(t)

	c.expect("POST", "/api/v1/auth/login", map[string]string{"email": "not-an-email", "password": "Passw0rd!"}, 401)
	c.expect("POST", "/api/v1/auth/login", map[string]string{"email": "asha@carmarket.test", "password": "short"}, 401)
	c.expect("POST", "/api/v1/auth/login", map[string]string{"email": "nobody@carmarket.test", "password": "Passw0rd!"}, 401)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, handlers.Options{})
	c := env.client(t)

	c.expect("GET", "/api/v1/auth/me", nil, 401)

	c.expect("POST", "/api/v1/auth/login", map[string]string{"email": "admin@carmarket.test", "password": "Passw0rd!"}, 200)
	out := c.expect("GET", "/api/v1/auth/me", nil, 200)
	if user, _ := out["user"].(map[string]any); user["role"] != "admin" {
		t.Fatalf("me: unexpected body %v", out)
	}

	old := c.sid
	c.expect("POST", "/api/v1/auth/logout", nil, 200)
	if c.sid != "" {
		t.Fatalf("logout should clear the sid cookie, got %q", c.sid)
	}

	// The old session id is dead server-side too.
	c.sid = old
	c.expect("GET", "/api/v1/auth/me", nil, 401)
}

func TestLoginRotatesSessionID(t *testing.T) {
	env := newTestEnv(t, handlers.Options{})
	c := env.client(t)
	c.sid = "attacker-chosen"

	c.expect("POST", "/api/v1/auth/login", map[string]string{"email": "ravi@carmarket.test", "password": "Passw0rd!"}, 200)
	if c.sid == "attacker-chosen" || c.sid == "" {
		t.Fatalf("expected a fresh sid, got %q", c.sid)
	}

	c.sid = "attacker-chosen"
	c.expect("GET", "/api/v1/auth/me", nil, 401)
}

func TestCSRFRequiredOnWrites(t *testing.T) {
	env := newTestEnv(t, handlers.Options{})
	c := env.as(t, "u-asha")

	c.csrf = ""
	out := c.expect("POST", "/api/v1/bookings", map[string]string{"car_id": "car-swift-2021"}, 403)
	if out["code"] != "csrf" {
		t.Fatalf("expected csrf failure, got %v", out)
	}

	// Reads are not checked.
	c.expect("GET", "/api/v1/cars", nil, 200)
}
