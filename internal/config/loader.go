package config

import (
	stderrors "errors"
	"io/fs"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// envPrefix is the environment variable prefix of every setting:
// "postgres.password" resolves to SIRDASH_POSTGRES_PASSWORD.
const envPrefix = "SIRDASH"

// envKeys are bound explicitly so that they can be set from the environment
// even when the config file does not mention them.
var envKeys = []string{
	"server.addr", "server.enable_refresh", "server.api_tokens",
	"log.level", "log.format",
	"feed.kind", "feed.path", "feed.url", "feed.object",
	"redis.enabled", "redis.addr", "redis.password",
	"postgres.enabled", "postgres.host", "postgres.port", "postgres.database",
	"postgres.username", "postgres.password", "postgres.ssl_mode", "postgres.auto_migrate",
	"minio.enabled", "minio.endpoint", "minio.access_key_id", "minio.secret_access_key", "minio.bucket",
	"kafka.enabled", "kafka.brokers", "kafka.sasl_username", "kafka.sasl_password",
	"notify.enabled", "notify.dashboard_url",
	"notify.whatsapp.base_url", "notify.whatsapp.api_key", "notify.whatsapp.instance", "notify.whatsapp.recipient",
	"sentry.dsn", "sentry.environment",
	"metrics.enabled",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Missing
// files are skipped; variables already set are never overwritten.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.Wrapf(err, errors.ErrCodeInvalidConfig, "load env file %s", p)
		}
	}
	return nil
}

// Load reads the YAML file at configPath, merges SIRDASH_* environment
// overrides, applies defaults and validates. An empty configPath loads from
// the environment only.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeInvalidConfig, "read config file %q", configPath)
		}
	}
	return unmarshalAndFinalize(v)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidConfig, "unmarshal configuration")
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch re-reads configPath on every change and hands the new Config to
// onChange. Invalid edits are logged and skipped. Watch does not block.
func Watch(configPath string, log logging.Logger, onChange func(*Config)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, errors.ErrCodeInvalidConfig, "read config file %q", configPath)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			log.Warn("ignoring invalid config change", logging.String("file", e.Name), logging.Err(err))
			return
		}
		log.Info("config reloaded", logging.String("file", e.Name), logging.String("op", e.Op.String()))
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// LevelReloader returns an onChange callback for Watch that applies the
// new log level to l. Other settings need a restart.
func LevelReloader(l logging.Logger) func(*Config) {
	return func(cfg *Config) {
		if !logging.SetLevel(l, cfg.Log.Level) {
			l.Warn("log level not applied", logging.String("level", cfg.Log.Level))
		}
	}
}
