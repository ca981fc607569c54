package handlers_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"carmarket/internal/http/handlers"
	applog "carmarket/internal/log"
)

// Internal errors reach the client as a generic message only.
func TestErrorHandlerFriendlyMessage(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler})
	app.Use(requestid.New())
	app.Use(applog.Middleware())
	app.Get("/err", func(c *fiber.Ctx) error {
		return errors.New("db timeout: secret trace")
	})
	app.Get("/bad", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadRequest, "bad query")
	})

	var body string
	entries := captureLogs(t, func() {
		resp, err := app.Test(httptest.NewRequest("GET", "/err", nil))
		if err != nil {
			t.Fatalf("test request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", resp.StatusCode)
		}
		raw, _ := io.ReadAll(resp.Body)
		body = string(raw)
	})
	if !strings.Contains(body, "Something went wrong") {
		t.Fatalf("friendly message missing; body=%s", body)
	}
	if strings.Contains(body, "db timeout") || strings.Contains(body, "secret") {
		t.Fatalf("internal details leaked to user; body=%s", body)
	}
	e, ok := findLog(entries, "server.error")
	if !ok {
		t.Fatal("server.error not logged")
	}
	if e.ReqID == "" {
		t.Fatalf("server.error missing req_id: %+v", e)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/bad", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 to pass through, got %d", resp.StatusCode)
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	env := newTestEnv(t, handlers.Options{})
	asha := env.as(t, "u-asha")

	out := asha.expect("GET", "/api/v1/cars/no-such-car", nil, 404)
	if out["code"] != "not_found" || out["error"] != "not found" {
		t.Fatalf("unexpected 404 body: %v", out)
	}
	// Wrapped context (ids, statuses) stays server-side.
	asha.expect("POST", "/api/v1/bookings", map[string]string{"car_id": "car-city-2019"}, 201)
	out = asha.expect("POST", "/api/v1/bookings", map[string]string{"car_id": "car-city-2019"}, 409)
	if msg, _ := out["error"].(string); strings.Contains(msg, "car-city-2019") {
		t.Fatalf("error message leaks record ids: %q", msg)
	}

	if out := asha.expect("GET", "/api/v1/nope", nil, 404); out["code"] != "not_found" {
		t.Fatalf("unexpected fallback body: %v", out)
	}
}

func TestValidationBadInputs(t *testing.T) {
	env := newTestEnv(t, handlers.Options{})
	asha := env.as(t, "u-asha")
	admin := env.as(t, "u-admin")

	asha.expect("GET", "/api/v1/cars/bad$id", nil, 400)
	asha.expect("POST", "/api/v1/bookings", map[string]string{"car_id": ""}, 400)
	asha.expect("POST", "/api/v1/bookings", map[string]string{"car_id": "'; DROP TABLE cars; --"}, 400)

	status, out := asha.send("POST", "/api/v1/bookings", fiber.MIMEApplicationJSON, strings.NewReader(`{"car_id":`))
	if status != 400 || out["error"] != "malformed request body" {
		t.Fatalf("malformed body: expected 400, got %d %v", status, out)
	}

	b := asha.expect("POST", "/api/v1/bookings", map[string]string{"car_id": "car-swift-2021"}, 201)
	id, _ := b["id"].(string)
	out = admin.expect("POST", "/api/v1/admin/bookings/"+id+"/decision", map[string]string{"decision": "maybe"}, 400)
	if out["error"] != "invalid decision: must be accept or reject" {
		t.Fatalf("unexpected decision error: %v", out)
	}
	admin.expect("POST", "/api/v1/admin/bookings/no-such-booking/decision", map[string]string{"decision": "accept"}, 404)
}
