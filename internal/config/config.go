package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Remote   RemoteConfig
	Sync     SyncConfig
	Kafka    KafkaConfig
	Webhook  WebhookConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Env             string
	Port            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level    string
	Encoding string
}

// RemoteConfig drives the store HTTP client.
type RemoteConfig struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	UserAgent          string
}

type SyncConfig struct {
	// Cron spec (with seconds) for the periodic full sync. Empty disables it.
	Cron string
	// Cron spec for the orphan sweep. Empty disables it.
	OrphanSweepCron string
	Concurrency     int
	// A "syncing" token older than this is considered abandoned.
	StaleLockAfter time.Duration
	// Minimum delay between two manual syncs of the same site.
	ManualCooldown time.Duration
	// Also pull products_with_attributes during a pull sync.
	Attributes bool
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type WebhookConfig struct {
	RatePerSecond float64
	Burst         int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads .env (if any), then environment variables over defaults.
// Keys map to env vars by upper-casing and replacing "." with "_":
// sync.cron -> SYNC_CRON.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Env:             v.GetString("app.env"),
			Port:            v.GetString("server.port"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Log: LogConfig{
			Level:    v.GetString("log.level"),
			Encoding: v.GetString("log.encoding"),
		},
		Remote: RemoteConfig{
			Timeout:            v.GetDuration("remote.timeout"),
			InsecureSkipVerify: v.GetBool("remote.insecure_tls"),
			UserAgent:          v.GetString("remote.user_agent"),
		},
		Sync: SyncConfig{
			Cron:            v.GetString("sync.cron"),
			OrphanSweepCron: v.GetString("sync.orphan_sweep_cron"),
			Concurrency:     v.GetInt("sync.concurrency"),
			StaleLockAfter:  v.GetDuration("sync.stale_lock_after"),
			ManualCooldown:  v.GetDuration("sync.manual_cooldown"),
			Attributes:      v.GetBool("sync.attributes"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Webhook: WebhookConfig{
			RatePerSecond: v.GetFloat64("webhook.rate"),
			Burst:         v.GetInt("webhook.burst"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		},
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.dsn", "sqlite://prestadash.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")

	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("remote.insecure_tls", true)
	v.SetDefault("remote.user_agent", "prestadash-sync/1.0")

	v.SetDefault("sync.cron", "")
	v.SetDefault("sync.orphan_sweep_cron", "0 30 3 * * *")
	v.SetDefault("sync.concurrency", 4)
	v.SetDefault("sync.stale_lock_after", 30*time.Minute)
	v.SetDefault("sync.manual_cooldown", 30*time.Second)
	v.SetDefault("sync.attributes", true)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "prestadash.stock-alerts")

	v.SetDefault("webhook.rate", 1.0)
	v.SetDefault("webhook.burst", 5)

	v.SetDefault("cors.allowed_origins", "*")
}

// IsProduction reports whether gin should run in release mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
