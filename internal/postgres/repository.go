// Package postgres is the client of the remote relational data service. It
// holds the authoritative profile records, the badge catalogue, the earn
// relation, and the point-event journal the stats procedure aggregates over.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/profile-sync/internal/config"
	"github.com/profile-sync/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id VARCHAR(64) PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			attributes JSONB,
			total_xp BIGINT NOT NULL DEFAULT 0,
			current_level INT NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS badges (
			name VARCHAR(128) PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			icon VARCHAR(128) NOT NULL DEFAULT '',
			category VARCHAR(64) NOT NULL DEFAULT '',
			rarity VARCHAR(20) NOT NULL DEFAULT 'common',
			xp_reward INT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS user_badges (
			user_id VARCHAR(64) NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			badge_name VARCHAR(128) NOT NULL REFERENCES badges(name) ON DELETE CASCADE,
			earned_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, badge_name)
		)`,
		`CREATE TABLE IF NOT EXISTS point_events (
			id BIGSERIAL PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			amount BIGINT NOT NULL,
			reason VARCHAR(128) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_badges_earned ON user_badges(user_id, earned_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_point_events_user ON point_events(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_total_xp ON profiles(total_xp DESC)`,
		`CREATE OR REPLACE FUNCTION compute_user_stats(uid VARCHAR)
		RETURNS TABLE(
			total_xp BIGINT,
			weekly_xp BIGINT,
			monthly_xp BIGINT,
			badges_list TEXT[],
			rank BIGINT,
			activity_count BIGINT
		) AS $$
			SELECT
				p.total_xp,
				COALESCE((SELECT SUM(e.amount) FROM point_events e
					WHERE e.user_id = p.id AND e.created_at >= NOW() - INTERVAL '7 days'), 0),
				COALESCE((SELECT SUM(e.amount) FROM point_events e
					WHERE e.user_id = p.id AND e.created_at >= NOW() - INTERVAL '30 days'), 0),
				COALESCE((SELECT ARRAY_AGG(ub.badge_name ORDER BY ub.earned_at DESC)
					FROM user_badges ub WHERE ub.user_id = p.id), '{}'),
				(SELECT COUNT(*) + 1 FROM profiles o WHERE o.total_xp > p.total_xp),
				(SELECT COUNT(*) FROM point_events e WHERE e.user_id = p.id)
			FROM profiles p
			WHERE p.id = uid
		$$ LANGUAGE sql STABLE`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// GetProfile retrieves the authoritative profile record for a user
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT id, display_name, avatar_url, attributes, total_xp, current_level, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	var p domain.Profile
	var attrs []byte
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.ID,
		&p.DisplayName,
		&p.AvatarURL,
		&attrs,
		&p.TotalXP,
		&p.CurrentLevel,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			r.logger.Warn("malformed profile attributes", "user_id", userID, "error", err)
		}
	}
	return &p, nil
}

// UpdateProfile applies a partial update and returns the resulting record
func (r *Repository) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) (*domain.Profile, error) {
	var attrs []byte
	var err error
	if len(update.Attributes) > 0 {
		attrs, err = json.Marshal(update.Attributes)
		if err != nil {
			return nil, fmt.Errorf("marshaling attributes: %w", err)
		}
	}

	query := `
		UPDATE profiles
		SET display_name = COALESCE($2, display_name),
		    avatar_url = COALESCE($3, avatar_url),
		    attributes = COALESCE(attributes, '{}'::jsonb) || COALESCE($4::jsonb, '{}'::jsonb),
		    updated_at = $5
		WHERE id = $1
		RETURNING id, display_name, avatar_url, attributes, total_xp, current_level, created_at, updated_at
	`
	var p domain.Profile
	var outAttrs []byte
	err = r.pool.QueryRow(ctx, query, userID, update.DisplayName, update.AvatarURL, attrs, time.Now()).Scan(
		&p.ID,
		&p.DisplayName,
		&p.AvatarURL,
		&outAttrs,
		&p.TotalXP,
		&p.CurrentLevel,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	if len(outAttrs) > 0 {
		if err := json.Unmarshal(outAttrs, &p.Attributes); err != nil {
			r.logger.Warn("malformed profile attributes", "user_id", userID, "error", err)
		}
	}
	return &p, nil
}

// ComputeStats derives a full stats record on the fly via the stored
// procedure. This is the second stats strategy: as authoritative as the
// dedicated store but slower.
func (r *Repository) ComputeStats(ctx context.Context, userID string) (*domain.Stats, error) {
	query := `SELECT total_xp, weekly_xp, monthly_xp, badges_list, rank, activity_count FROM compute_user_stats($1)`
	var s domain.Stats
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.TotalXP,
		&s.WeeklyXP,
		&s.MonthlyXP,
		&s.BadgesList,
		&s.Rank,
		&s.ActivityCount,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrStatsNotFound
		}
		return nil, fmt.Errorf("computing stats: %w", err)
	}
	s.UserID = userID
	return &s, nil
}

// GetProfileStats extracts the reduced stats subset carried on the profile
// row itself. This is the third stats strategy: approximate but available
// whenever the profile is.
func (r *Repository) GetProfileStats(ctx context.Context, userID string) (*domain.Stats, error) {
	query := `SELECT total_xp, current_level FROM profiles WHERE id = $1`
	var s domain.Stats
	err := r.pool.QueryRow(ctx, query, userID).Scan(&s.TotalXP, &s.CurrentLevel)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrStatsNotFound
		}
		return nil, fmt.Errorf("getting profile stats subset: %w", err)
	}
	s.UserID = userID
	return &s, nil
}

// GetBadges returns the user's earned badges joined with their definitions,
// most recently earned first.
func (r *Repository) GetBadges(ctx context.Context, userID string) ([]domain.EarnedBadge, error) {
	query := `
		SELECT b.name, b.description, b.icon, b.category, b.rarity, b.xp_reward, ub.earned_at
		FROM user_badges ub
		JOIN badges b ON b.name = ub.badge_name
		WHERE ub.user_id = $1
		ORDER BY ub.earned_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("getting badges: %w", err)
	}
	defer rows.Close()

	var earned []domain.EarnedBadge
	for rows.Next() {
		var b domain.EarnedBadge
		err := rows.Scan(
			&b.Name,
			&b.Description,
			&b.Icon,
			&b.Category,
			&b.Rarity,
			&b.XPReward,
			&b.EarnedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning badge: %w", err)
		}
		earned = append(earned, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating badges: %w", err)
	}
	return earned, nil
}

// IncrementXP adds points to a profile, keeping the denormalized level column
// in step, and returns the new total.
func (r *Repository) IncrementXP(ctx context.Context, userID string, delta int64) (int64, error) {
	query := `
		UPDATE profiles
		SET total_xp = total_xp + $2,
		    current_level = ((total_xp + $2) / 100) + 1,
		    updated_at = $3
		WHERE id = $1
		RETURNING total_xp
	`
	var newTotal int64
	err := r.pool.QueryRow(ctx, query, userID, delta, time.Now()).Scan(&newTotal)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrProfileNotFound
		}
		return 0, fmt.Errorf("incrementing xp: %w", err)
	}
	return newTotal, nil
}

// RecordPointEvent journals a point award for auditing and for the windowed
// subtotals the stats procedure aggregates.
func (r *Repository) RecordPointEvent(ctx context.Context, userID, reason string, amount int64) error {
	query := `INSERT INTO point_events (user_id, amount, reason, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, userID, amount, reason, time.Now())
	if err != nil {
		return fmt.Errorf("recording point event: %w", err)
	}
	return nil
}

// ListActiveUserIDs returns users whose profile changed within the window,
// newest first (used to pre-seed the stats store).
func (r *Repository) ListActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]string, error) {
	query := `SELECT id FROM profiles WHERE updated_at >= $1 ORDER BY updated_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("listing active users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user ids: %w", err)
	}
	return ids, nil
}
