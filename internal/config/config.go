package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Cache    CacheConfig    `yaml:"cache"`
	Retry    RetryConfig    `yaml:"retry"`
	Sync     SyncConfig     `yaml:"sync"`
	Profile  ProfileConfig  `yaml:"profile"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds the aggregate-stats store connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// PostgresConfig holds the remote data service connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds the external invalidation-signal transport configuration
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
	Enabled bool     `yaml:"enabled"`
}

// CacheConfig holds the persistent profile cache configuration
type CacheConfig struct {
	Dir         string        `yaml:"dir"`
	InMemory    bool          `yaml:"in_memory"`
	StaleAfter  time.Duration `yaml:"stale_after"`
	ExpireAfter time.Duration `yaml:"expire_after"`
}

// RetryConfig holds the retrying-loader bounds
type RetryConfig struct {
	StatsAttempts  int           `yaml:"stats_attempts"`
	BadgesAttempts int           `yaml:"badges_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
}

// SyncConfig holds reconcile worker configuration
type SyncConfig struct {
	Interval     time.Duration `yaml:"interval"`
	ActiveWindow time.Duration `yaml:"active_window"`
	BatchSize    int           `yaml:"batch_size"`
	Enabled      bool          `yaml:"enabled"`
}

// ProfileConfig holds facade-level behavior configuration
type ProfileConfig struct {
	UpdateAwardXP   int64         `yaml:"update_award_xp"`
	SyncReloadDelay time.Duration `yaml:"sync_reload_delay"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 50
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 5
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 20
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 2
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "profile-signals"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "profile-sync-consumer"
	}

	// Cache defaults
	if c.Cache.Dir == "" {
		c.Cache.Dir = "data/profile-cache"
	}
	if c.Cache.StaleAfter == 0 {
		c.Cache.StaleAfter = 5 * time.Minute
	}
	if c.Cache.ExpireAfter == 0 {
		c.Cache.ExpireAfter = 60 * time.Minute
	}

	// Retry defaults
	if c.Retry.StatsAttempts == 0 {
		c.Retry.StatsAttempts = 3
	}
	if c.Retry.BadgesAttempts == 0 {
		// Badges are non-critical to core profile rendering, so they get a
		// smaller bound.
		c.Retry.BadgesAttempts = 2
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = 1 * time.Second
	}

	// Sync defaults
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 30 * time.Minute
	}
	if c.Sync.ActiveWindow == 0 {
		c.Sync.ActiveWindow = 24 * time.Hour
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = 100
	}

	// Profile defaults
	if c.Profile.UpdateAwardXP == 0 {
		c.Profile.UpdateAwardXP = 10
	}
	if c.Profile.SyncReloadDelay == 0 {
		c.Profile.SyncReloadDelay = 500 * time.Millisecond
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Sync.Enabled = true
	return cfg
}
