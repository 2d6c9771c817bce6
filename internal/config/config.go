package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "CONVO"

// Create new config instance with defaults applied
func NewConfig() *Config {
	c := &Config{}
	_ = newViper().Unmarshal(c)
	return c
}

// Load configuration file in json format. A missing file leaves the defaults
// in place; environment variables (CONVO_SERVER_PORT, ...) override both.
func (c *Config) Read(file string) error {
	v := newViper()

	if file != "" {
		if _, err := os.Stat(file); err == nil {
			v.SetConfigFile(file)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config %s: %w", file, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat config %s: %w", file, err)
		}
	}

	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("upload.max_request_body", 32)
	v.SetDefault("upload.max_multipart_memory", 16)

	v.SetDefault("converter.jpeg_quality", 92)
	v.SetDefault("converter.webp_quality", 80)
	v.SetDefault("converter.max_pixels", 50_000_000)

	v.SetDefault("artifacts.backend", "memory")
	v.SetDefault("artifacts.ttl", 10*time.Minute)
	v.SetDefault("artifacts.max_entries", 256)
	v.SetDefault("artifacts.namespace", "convo:artifacts")
	v.SetDefault("artifacts.url_prefix", "/api/artifacts")

	v.SetDefault("database.dsn", "")

	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database_id", 0)
	v.SetDefault("redis.health_check_interval", 30*time.Second)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("r2.account_id", "")
	v.SetDefault("r2.bucket_name", "")
	v.SetDefault("r2.access_key_id", "")
	v.SetDefault("r2.secret_key", "")
	v.SetDefault("r2.endpoint", "")
	v.SetDefault("r2.workers", 8)
	v.SetDefault("r2.queue_size", 1000)
	v.SetDefault("r2.max_retries", 3)
	v.SetDefault("r2.retry_base_delay", 300*time.Millisecond)

	v.SetDefault("jobs.enabled", false)
	v.SetDefault("jobs.stream", "convo:jobs")
	v.SetDefault("jobs.group", "convo-workers")
	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.max_attempts", 5)
	v.SetDefault("jobs.max_len", 10000)
	v.SetDefault("jobs.backoff_base", 2*time.Second)
	v.SetDefault("jobs.block_timeout", 5*time.Second)
	v.SetDefault("jobs.consumer", hostname())

	v.SetDefault("sentry.sentry_dsn", "")
	v.SetDefault("sentry.environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "convo"
	}
	return h
}
