// Package leveling awards points on behalf of the experience subsystem. The
// sync layer only ever calls AwardPoints; eligibility rules live upstream.
package leveling

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/profile-sync/internal/bus"
	"github.com/profile-sync/internal/postgres"
	"github.com/profile-sync/internal/redis"
)

// Service is the default awarder: it bumps the authoritative point total,
// journals the event, drops the cached stats hash so the next fetch
// recomputes, and announces the change on the bus.
type Service struct {
	repo   *postgres.Repository
	stats  *redis.StatsStore
	bus    *bus.Bus
	logger *slog.Logger
}

// NewService creates a leveling service.
func NewService(repo *postgres.Repository, stats *redis.StatsStore, b *bus.Bus, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		stats:  stats,
		bus:    b,
		logger: logger,
	}
}

// AwardPoints credits the user and returns the accepted amount. A zero or
// negative amount is rejected.
func (s *Service) AwardPoints(ctx context.Context, userID, reason string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("award amount must be positive, got %d", amount)
	}

	newTotal, err := s.repo.IncrementXP(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("crediting points: %w", err)
	}

	if err := s.repo.RecordPointEvent(ctx, userID, reason, amount); err != nil {
		s.logger.Warn("failed to journal point event", "user_id", userID, "reason", reason, "error", err)
		// The credit already landed; journaling is best effort.
	}

	if err := s.stats.InvalidateStats(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate stats hash", "user_id", userID, "error", err)
	}

	s.logger.Info("points awarded",
		"user_id", userID,
		"reason", reason,
		"amount", amount,
		"new_total", newTotal,
	)

	s.bus.Publish(bus.Event{Name: bus.PointsUpdated, UserID: userID})
	return amount, nil
}
