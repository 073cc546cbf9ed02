package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig is the TOML layout. Durations are strings such as "30s".
type fileConfig struct {
	DatabaseURL string `toml:"database_url"`
	GRPCAddr    string `toml:"grpc_addr"`
	HTTPAddr    string `toml:"http_addr"`

	Relay struct {
		NATSURL   string `toml:"nats_url"`
		RedisAddr string `toml:"redis_addr"`
		Subject   string `toml:"subject"`
		Instance  string `toml:"instance"`
	} `toml:"relay"`

	Broker struct {
		HistorySize       int     `toml:"history_size"`
		KeepaliveInterval string  `toml:"keepalive_interval"`
		SubmitRate        float64 `toml:"submit_rate"`
		SubmitBurst       int     `toml:"submit_burst"`
	} `toml:"broker"`

	Presence struct {
		CursorTTL   string `toml:"cursor_ttl"`
		CursorSweep string `toml:"cursor_sweep"`
	} `toml:"presence"`

	Backup struct {
		Interval string `toml:"interval"`
		S3       struct {
			Bucket   string `toml:"bucket"`
			Endpoint string `toml:"endpoint"`
			Region   string `toml:"region"`
			Key      string `toml:"key"`
		} `toml:"s3"`
		Git struct {
			Repo   string `toml:"repo"`
			File   string `toml:"file"`
			Branch string `toml:"branch"`
		} `toml:"git"`
	} `toml:"backup"`
}

// loadFile overlays the settings present in the TOML file at path.
func (c *Config) loadFile(path string) error {
	var f fileConfig
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return fmt.Errorf("config %s: unknown key %q", path, undec[0].String())
	}

	setString(&c.DatabaseURL, f.DatabaseURL)
	setString(&c.GRPCAddr, f.GRPCAddr)
	setString(&c.HTTPAddr, f.HTTPAddr)
	setString(&c.NATSURL, f.Relay.NATSURL)
	setString(&c.RedisAddr, f.Relay.RedisAddr)
	setString(&c.RelaySubject, f.Relay.Subject)
	setString(&c.RelayInstance, f.Relay.Instance)
	setString(&c.BackupS3Bucket, f.Backup.S3.Bucket)
	setString(&c.BackupS3Endpoint, f.Backup.S3.Endpoint)
	setString(&c.BackupS3Region, f.Backup.S3.Region)
	setString(&c.BackupS3Key, f.Backup.S3.Key)
	setString(&c.BackupGitRepo, f.Backup.Git.Repo)
	setString(&c.BackupGitFile, f.Backup.Git.File)
	setString(&c.BackupGitBranch, f.Backup.Git.Branch)

	if f.Broker.HistorySize != 0 {
		c.HistorySize = f.Broker.HistorySize
	}
	if f.Broker.SubmitRate != 0 {
		c.SubmitRate = f.Broker.SubmitRate
	}
	if f.Broker.SubmitBurst != 0 {
		c.SubmitBurst = f.Broker.SubmitBurst
	}

	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"broker.keepalive_interval", f.Broker.KeepaliveInterval, &c.KeepaliveInterval},
		{"presence.cursor_ttl", f.Presence.CursorTTL, &c.CursorTTL},
		{"presence.cursor_sweep", f.Presence.CursorSweep, &c.CursorSweep},
		{"backup.interval", f.Backup.Interval, &c.BackupInterval},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config %s: %s: %w", path, d.name, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
