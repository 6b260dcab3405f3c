// Package config loads service configuration from an optional file and STOREFLOW_* env vars.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "STOREFLOW"

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Env  string `mapstructure:"env"` // development, staging, production
	Name string `mapstructure:"name"`
}

// IsDevelopment reports the development environment.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

type HTTPConfig struct {
	Addr               string        `mapstructure:"addr"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	IdempotencyEnabled bool          `mapstructure:"idempotency_enabled"`
}

type DatabaseConfig struct {
	URL              string        `mapstructure:"url"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	MigrateOnStart   bool          `mapstructure:"migrate_on_start"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// WorkflowConfig tunes the approval workflow.
type WorkflowConfig struct {
	// Policies overrides authority rules: kind -> action -> CEL expression.
	Policies map[string]map[string]string `mapstructure:"policies"`

	// JournalCompressThreshold is the snapshot size above which journal entries are zstd-compressed.
	JournalCompressThreshold int `mapstructure:"journal_compress_threshold"`
}

// PolicyOverrides flattens Policies to "kind.action" keys.
func (c WorkflowConfig) PolicyOverrides() map[string]string {
	out := make(map[string]string)
	for kind, actions := range c.Policies {
		for action, expr := range actions {
			out[kind+"."+action] = expr
		}
	}
	return out
}

type WorkerConfig struct {
	OutboxInterval      time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize     int           `mapstructure:"outbox_batch_size"`
	IdempotencyInterval time.Duration `mapstructure:"idempotency_interval"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.name", "storeflow")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.idempotency_enabled", true)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.statement_timeout", 30*time.Second)
	v.SetDefault("database.migrate_on_start", false)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "storeflow")
	v.SetDefault("jwt.ttl", 15*time.Minute)

	v.SetDefault("log.level", "info")

	v.SetDefault("workflow.journal_compress_threshold", 8*1024)

	v.SetDefault("worker.outbox_interval", 2*time.Second)
	v.SetDefault("worker.outbox_batch_size", 100)
	v.SetDefault("worker.idempotency_interval", time.Hour)

	v.SetDefault("metrics.enabled", true)
}

// Load reads path (if non-empty) and overlays STOREFLOW_<SECTION>_<KEY> env vars.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (%s_DATABASE_URL)", envPrefix)
	}
	if c.JWT.Secret == "" && !c.App.IsDevelopment() {
		return fmt.Errorf("jwt.secret is required outside development (%s_JWT_SECRET)", envPrefix)
	}
	return nil
}
