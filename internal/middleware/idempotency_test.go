package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/kingsinvest/kings_invest/internal/logging"
)

func setupIdempotencyApp(t *testing.T, status int) (*fiber.App, *int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls int32
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(localUserID, c.Get("X-Test-User"))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/transactions/withdraw", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&calls, 1)
		return c.Status(status).JSON(fiber.Map{"call": n})
	})
	return app, &calls
}

func postWithKey(t *testing.T, app *fiber.App, user, key string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/transactions/withdraw", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Test-User", user)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), resp.Header.Get("Idempotent-Replayed")
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _ := setupIdempotencyApp(t, fiber.StatusCreated)
	if status, _, _ := postWithKey(t, app, "u1", ""); status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	app, calls := setupIdempotencyApp(t, fiber.StatusCreated)

	status, body, _ := postWithKey(t, app, "u1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected %d got %d", fiber.StatusCreated, status)
	}

	status2, body2, replayed := postWithKey(t, app, "u1", "abc123")
	if status2 != fiber.StatusCreated || body2 != body {
		t.Fatalf("expected replay of %d %s, got %d %s", status, body, status2, body2)
	}
	if replayed != "true" {
		t.Fatal("expected replay header")
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("handler should run once, ran %d times", got)
	}
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	app, calls := setupIdempotencyApp(t, fiber.StatusCreated)

	postWithKey(t, app, "u1", "same")
	postWithKey(t, app, "u2", "same")
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Fatalf("expected both users to reach the handler, got %d calls", got)
	}
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	app, calls := setupIdempotencyApp(t, fiber.StatusInternalServerError)

	postWithKey(t, app, "u1", "retry-me")
	postWithKey(t, app, "u1", "retry-me")
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Fatalf("server errors must be retryable, got %d calls", got)
	}
}
