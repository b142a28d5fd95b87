package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kingsinvest/kings_invest/internal/config"
	"github.com/kingsinvest/kings_invest/internal/logging"
)

func TestRunRejectsBadUsageBeforeConnecting(t *testing.T) {
	cfg := config.Config{DatabaseURL: "postgres://unused"}
	for _, args := range [][]string{nil, {"rebalance"}} {
		err := run(context.Background(), cfg, logging.Discard(), args, &bytes.Buffer{})
		if !errors.Is(err, errUsage) {
			t.Fatalf("args %v: expected usage error, got %v", args, err)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "configs/plans.yaml"); got != "configs/plans.yaml" {
		t.Fatalf("unexpected %q", got)
	}
}
