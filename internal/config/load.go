package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables use the OFFLOAD_ prefix with
// underscores for nesting (OFFLOAD_SERVER_PORT, OFFLOAD_BROKER_BACKEND,
// ...) and take precedence over file values. The result is validated
// before being returned.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("OFFLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Optional config file: OFFLOAD_CONFIG_FILE or ./offload.yaml.
	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	} else {
		v.SetConfigName("offload")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// A missing file is fine; the environment may carry everything.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("broker.backend", "memory")
	v.SetDefault("broker.redis_addr", "")
	v.SetDefault("broker.queue_capacity", 100)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.postgres_url", "")

	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.poll_interval_ms", 100)
	v.SetDefault("worker.backoff_enabled", true)
	v.SetDefault("worker.backoff_base_ms", 1000)
	v.SetDefault("worker.backoff_max_ms", 60000)

	v.SetDefault("routing.default_queue", "default")

	v.SetDefault("codec.format", "json")

	v.SetDefault("notify.write_timeout_ms", 10000)
	v.SetDefault("notify.ping_interval_ms", 30000)
	v.SetDefault("notify.send_buffer", 64)
}
