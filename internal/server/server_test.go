package server

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/kingsinvest/kings_invest/internal/config"
	"github.com/kingsinvest/kings_invest/internal/logging"
)

func TestErrorsRenderAsJSON(t *testing.T) {
	srv, err := New(config.Config{
		AppName:           "test",
		AppEnv:            "test",
		JWTSecret:         "secret",
		CanonicalCurrency: "USD",
		InvestSettlement:  config.InvestSettlementRequested,
	}, nil, nil, nil, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	resp, err := srv.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/v1/wallet", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusUnauthorized || string(body) != `{"error":"missing bearer token"}` {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}
}
