package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL string // ZYRO_DATABASE_URL (required)
	HTTPAddr    string // ZYRO_HTTP_ADDR (default ":8080")
	NATSURL     string // ZYRO_NATS_URL (optional, empty = no event bus)
	RedisURL    string // ZYRO_REDIS_URL (optional, empty = in-memory delivery store)
	AuthToken   string // ZYRO_AUTH_TOKEN (optional, empty = auth disabled)
	JWTSecret   string // ZYRO_JWT_SECRET (optional, empty = realtime auth disabled)

	// Webhook secrets
	GitHubWebhookSecret string // ZYRO_GITHUB_WEBHOOK_SECRET
	SlackSigningSecret  string // ZYRO_SLACK_SIGNING_SECRET

	// Outbound notifications
	SlackWebhookURL string // ZYRO_SLACK_WEBHOOK_URL (enables Slack notifier when set)

	// Realtime session settings
	SessionQueueSize  int           // ZYRO_SESSION_QUEUE_SIZE (default 256)
	HeartbeatInterval time.Duration // ZYRO_HEARTBEAT_INTERVAL (default 25s)

	// Backup settings
	BackupInterval   time.Duration // ZYRO_BACKUP_INTERVAL (default 3m; 0 = disabled)
	BackupS3Bucket   string        // ZYRO_BACKUP_S3_BUCKET (enables S3 when set)
	BackupS3Endpoint string        // ZYRO_BACKUP_S3_ENDPOINT (custom endpoint for MinIO)
	BackupS3Region   string        // ZYRO_BACKUP_S3_REGION (default "us-east-1")
	BackupS3Prefix   string        // ZYRO_BACKUP_S3_PREFIX (default "zyro/backup")
}

// fileConfig mirrors Config for the optional TOML file named by
// ZYRO_CONFIG_FILE. Environment variables take precedence over file values.
type fileConfig struct {
	DatabaseURL         string `toml:"database_url"`
	HTTPAddr            string `toml:"http_addr"`
	NATSURL             string `toml:"nats_url"`
	RedisURL            string `toml:"redis_url"`
	AuthToken           string `toml:"auth_token"`
	JWTSecret           string `toml:"jwt_secret"`
	GitHubWebhookSecret string `toml:"github_webhook_secret"`
	SlackSigningSecret  string `toml:"slack_signing_secret"`
	SlackWebhookURL     string `toml:"slack_webhook_url"`
	SessionQueueSize    int    `toml:"session_queue_size"`
	HeartbeatInterval   string `toml:"heartbeat_interval"`
	BackupInterval      string `toml:"backup_interval"`
	BackupS3Bucket      string `toml:"backup_s3_bucket"`
	BackupS3Endpoint    string `toml:"backup_s3_endpoint"`
	BackupS3Region      string `toml:"backup_s3_region"`
	BackupS3Prefix      string `toml:"backup_s3_prefix"`
}

func Load() (*Config, error) {
	var file fileConfig
	if path := os.Getenv("ZYRO_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("ZYRO_CONFIG_FILE: %w", err)
		}
	}

	c := &Config{
		DatabaseURL:         envOrDefault("ZYRO_DATABASE_URL", file.DatabaseURL),
		HTTPAddr:            envOrDefault("ZYRO_HTTP_ADDR", orDefault(file.HTTPAddr, ":8080")),
		NATSURL:             envOrDefault("ZYRO_NATS_URL", file.NATSURL),
		RedisURL:            envOrDefault("ZYRO_REDIS_URL", file.RedisURL),
		AuthToken:           envOrDefault("ZYRO_AUTH_TOKEN", file.AuthToken),
		JWTSecret:           envOrDefault("ZYRO_JWT_SECRET", file.JWTSecret),
		GitHubWebhookSecret: envOrDefault("ZYRO_GITHUB_WEBHOOK_SECRET", file.GitHubWebhookSecret),
		SlackSigningSecret:  envOrDefault("ZYRO_SLACK_SIGNING_SECRET", file.SlackSigningSecret),
		SlackWebhookURL:     envOrDefault("ZYRO_SLACK_WEBHOOK_URL", file.SlackWebhookURL),
		BackupS3Bucket:      envOrDefault("ZYRO_BACKUP_S3_BUCKET", file.BackupS3Bucket),
		BackupS3Endpoint:    envOrDefault("ZYRO_BACKUP_S3_ENDPOINT", file.BackupS3Endpoint),
		BackupS3Region:      envOrDefault("ZYRO_BACKUP_S3_REGION", orDefault(file.BackupS3Region, "us-east-1")),
		BackupS3Prefix:      envOrDefault("ZYRO_BACKUP_S3_PREFIX", orDefault(file.BackupS3Prefix, "zyro/backup")),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("ZYRO_DATABASE_URL is required")
	}

	queueSize, err := intEnv("ZYRO_SESSION_QUEUE_SIZE", file.SessionQueueSize, 256)
	if err != nil {
		return nil, err
	}
	c.SessionQueueSize = queueSize

	heartbeat, err := durationEnv("ZYRO_HEARTBEAT_INTERVAL", file.HeartbeatInterval, 25*time.Second)
	if err != nil {
		return nil, err
	}
	c.HeartbeatInterval = heartbeat

	backup, err := durationEnv("ZYRO_BACKUP_INTERVAL", file.BackupInterval, 3*time.Minute)
	if err != nil {
		return nil, err
	}
	c.BackupInterval = backup

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fileVal, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return n, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return fallback, nil
}

func durationEnv(key, fileVal string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		s = fileVal
	}
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
