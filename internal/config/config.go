// Package config loads server settings from CORK_* environment variables,
// optionally layered over a TOML file named by CORK_CONFIG.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // CORK_DATABASE_URL (optional, empty = in-memory store)
	GRPCAddr    string // CORK_GRPC_ADDR (default ":9090"; "off" disables)
	HTTPAddr    string // CORK_HTTP_ADDR (default ":8080")

	// Cross-instance relay; at most one of NATSURL and RedisAddr.
	NATSURL       string // CORK_NATS_URL (optional)
	RedisAddr     string // CORK_REDIS_ADDR (optional)
	RelaySubject  string // CORK_RELAY_SUBJECT (default "corkboard.events")
	RelayInstance string // CORK_RELAY_INSTANCE (default: generated per process)

	// Broker and presence
	HistorySize       int           // CORK_HISTORY_SIZE (default 100)
	KeepaliveInterval time.Duration // CORK_KEEPALIVE_INTERVAL (default 30s)
	CursorTTL         time.Duration // CORK_CURSOR_TTL (default 30s)
	CursorSweep       time.Duration // CORK_CURSOR_SWEEP (default 5s)
	SubmitRate        float64       // CORK_SUBMIT_RATE (default 50 per second per client)
	SubmitBurst       int           // CORK_SUBMIT_BURST (default 100)

	// Backup settings
	BackupInterval   time.Duration // CORK_BACKUP_INTERVAL (default 3m; 0 = disabled)
	BackupS3Bucket   string        // CORK_BACKUP_S3_BUCKET (enables S3 when set)
	BackupS3Endpoint string        // CORK_BACKUP_S3_ENDPOINT (custom endpoint for MinIO)
	BackupS3Region   string        // CORK_BACKUP_S3_REGION (default "us-east-1")
	BackupS3Key      string        // CORK_BACKUP_S3_KEY (default "corkboard/board.jsonl.zst")
	BackupGitRepo    string        // CORK_BACKUP_GIT_REPO (enables git when set; path to clone)
	BackupGitFile    string        // CORK_BACKUP_GIT_FILE (default "board.jsonl")
	BackupGitBranch  string        // CORK_BACKUP_GIT_BRANCH (default "main")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GRPCAddr:          ":9090",
		HTTPAddr:          ":8080",
		RelaySubject:      "corkboard.events",
		HistorySize:       100,
		KeepaliveInterval: 30 * time.Second,
		CursorTTL:         30 * time.Second,
		CursorSweep:       5 * time.Second,
		SubmitRate:        50,
		SubmitBurst:       100,
		BackupInterval:    3 * time.Minute,
		BackupS3Region:    "us-east-1",
		BackupS3Key:       "corkboard/board.jsonl.zst",
		BackupGitFile:     "board.jsonl",
		BackupGitBranch:   "main",
	}
}

// Load builds the configuration: defaults, then the CORK_CONFIG file if
// set, then environment variables.
func Load() (*Config, error) {
	c := Default()
	if path := os.Getenv("CORK_CONFIG"); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.loadEnv(); err != nil {
		return nil, err
	}
	if c.NATSURL != "" && c.RedisAddr != "" {
		return nil, fmt.Errorf("CORK_NATS_URL and CORK_REDIS_ADDR are mutually exclusive")
	}
	if c.HistorySize <= 0 {
		return nil, fmt.Errorf("CORK_HISTORY_SIZE must be positive, got %d", c.HistorySize)
	}
	return c, nil
}

// GRPCEnabled reports whether the gRPC health listener should run.
func (c *Config) GRPCEnabled() bool {
	return c.GRPCAddr != "" && c.GRPCAddr != "off"
}

func (c *Config) loadEnv() error {
	c.DatabaseURL = envOrDefault("CORK_DATABASE_URL", c.DatabaseURL)
	c.GRPCAddr = envOrDefault("CORK_GRPC_ADDR", c.GRPCAddr)
	c.HTTPAddr = envOrDefault("CORK_HTTP_ADDR", c.HTTPAddr)
	c.NATSURL = envOrDefault("CORK_NATS_URL", c.NATSURL)
	c.RedisAddr = envOrDefault("CORK_REDIS_ADDR", c.RedisAddr)
	c.RelaySubject = envOrDefault("CORK_RELAY_SUBJECT", c.RelaySubject)
	c.RelayInstance = envOrDefault("CORK_RELAY_INSTANCE", c.RelayInstance)
	c.BackupS3Bucket = envOrDefault("CORK_BACKUP_S3_BUCKET", c.BackupS3Bucket)
	c.BackupS3Endpoint = envOrDefault("CORK_BACKUP_S3_ENDPOINT", c.BackupS3Endpoint)
	c.BackupS3Region = envOrDefault("CORK_BACKUP_S3_REGION", c.BackupS3Region)
	c.BackupS3Key = envOrDefault("CORK_BACKUP_S3_KEY", c.BackupS3Key)
	c.BackupGitRepo = envOrDefault("CORK_BACKUP_GIT_REPO", c.BackupGitRepo)
	c.BackupGitFile = envOrDefault("CORK_BACKUP_GIT_FILE", c.BackupGitFile)
	c.BackupGitBranch = envOrDefault("CORK_BACKUP_GIT_BRANCH", c.BackupGitBranch)

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"CORK_KEEPALIVE_INTERVAL", &c.KeepaliveInterval},
		{"CORK_CURSOR_TTL", &c.CursorTTL},
		{"CORK_CURSOR_SWEEP", &c.CursorSweep},
		{"CORK_BACKUP_INTERVAL", &c.BackupInterval},
	} {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}

	for _, n := range []struct {
		key string
		dst *int
	}{
		{"CORK_HISTORY_SIZE", &c.HistorySize},
		{"CORK_SUBMIT_BURST", &c.SubmitBurst},
	} {
		if v := os.Getenv(n.key); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", n.key, err)
			}
			*n.dst = parsed
		}
	}

	if v := os.Getenv("CORK_SUBMIT_RATE"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CORK_SUBMIT_RATE: %w", err)
		}
		c.SubmitRate = parsed
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
