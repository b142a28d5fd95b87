package plan

import (
	"context"
	"fmt"
	"log/slog"
)

// Service exposes the plan catalog to the ledger and HTTP layers.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds a plan service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Active returns the plans users can invest in.
func (s *Service) Active(ctx context.Context) ([]Plan, error) {
	return s.repo.ListActive(ctx)
}

// Lookup returns an active plan or ErrNotFound.
func (s *Service) Lookup(ctx context.Context, id string) (Plan, error) {
	if id == "" {
		return Plan{}, ErrNotFound
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Plan{}, err
	}
	if !p.IsActive {
		return Plan{}, ErrNotFound
	}
	return p, nil
}

// Seed upserts every plan in the catalog and returns how many were written.
func (s *Service) Seed(ctx context.Context, plans []Plan) (int, error) {
	for i, p := range plans {
		if err := s.repo.Upsert(ctx, p); err != nil {
			return i, fmt.Errorf("upsert plan %s: %w", p.ID, err)
		}
	}
	if s.logger != nil {
		s.logger.Info("plan catalog seeded", slog.Int("plans", len(plans)))
	}
	return len(plans), nil
}

// SeedFile loads a YAML catalog from path and seeds it.
func (s *Service) SeedFile(ctx context.Context, path string) (int, error) {
	plans, err := LoadCatalog(path)
	if err != nil {
		return 0, err
	}
	return s.Seed(ctx, plans)
}
