// Package redis implements the dedicated aggregate-stats store, the first
// and cheapest source in the stats fallback chain.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/profile-sync/internal/config"
	"github.com/profile-sync/internal/domain"
)

// StatsStore provides Redis-based access to per-user aggregate stats.
type StatsStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStatsStore creates a new stats store and verifies the connection.
func NewStatsStore(cfg *config.RedisConfig, logger *slog.Logger) (*StatsStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &StatsStore{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection.
func (s *StatsStore) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client.
func (s *StatsStore) Client() *redis.Client {
	return s.client
}

// statsKey returns the Redis key for a user's stats hash.
func (s *StatsStore) statsKey(userID string) string {
	return fmt.Sprintf("profile:%s:stats", userID)
}

// GetStats retrieves a user's aggregate stats. An absent hash maps to
// domain.ErrStatsNotFound so callers can fall through to the next strategy.
func (s *StatsStore) GetStats(ctx context.Context, userID string) (*domain.Stats, error) {
	key := s.statsKey(userID)
	result, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("getting stats hash: %w", err)
	}
	if len(result) == 0 {
		return nil, domain.ErrStatsNotFound
	}

	totalXP, _ := strconv.ParseInt(result["total_xp"], 10, 64)
	currentLevel, _ := strconv.Atoi(result["current_level"])
	rank, _ := strconv.ParseInt(result["rank"], 10, 64)
	weeklyXP, _ := strconv.ParseInt(result["weekly_xp"], 10, 64)
	monthlyXP, _ := strconv.ParseInt(result["monthly_xp"], 10, 64)
	activityCount, _ := strconv.ParseInt(result["activity_count"], 10, 64)
	streakDays, _ := strconv.Atoi(result["streak_days"])

	var badges []string
	if raw := result["badges_list"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &badges); err != nil {
			s.logger.Warn("malformed badges list in stats hash", "user_id", userID, "error", err)
			badges = nil
		}
	}

	return &domain.Stats{
		UserID:        userID,
		TotalXP:       totalXP,
		CurrentLevel:  currentLevel,
		BadgesList:    badges,
		Rank:          rank,
		WeeklyXP:      weeklyXP,
		MonthlyXP:     monthlyXP,
		ActivityCount: activityCount,
		StreakDays:    streakDays,
	}, nil
}

// SetStats stores a user's aggregate stats, overwriting prior values.
func (s *StatsStore) SetStats(ctx context.Context, userID string, stats *domain.Stats) error {
	badges, err := json.Marshal(stats.BadgesList)
	if err != nil {
		return fmt.Errorf("encoding badges list: %w", err)
	}

	key := s.statsKey(userID)
	err = s.client.HSet(ctx, key,
		"total_xp", stats.TotalXP,
		"current_level", stats.CurrentLevel,
		"badges_list", string(badges),
		"rank", stats.Rank,
		"weekly_xp", stats.WeeklyXP,
		"monthly_xp", stats.MonthlyXP,
		"activity_count", stats.ActivityCount,
		"streak_days", stats.StreakDays,
	).Err()
	if err != nil {
		return fmt.Errorf("setting stats hash: %w", err)
	}
	return nil
}

// InvalidateStats removes a user's stats hash so the next fetch recomputes
// from the relational service.
func (s *StatsStore) InvalidateStats(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.statsKey(userID)).Err(); err != nil {
		return fmt.Errorf("deleting stats hash: %w", err)
	}
	return nil
}
