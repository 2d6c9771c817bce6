package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Converter ConverterConfig `mapstructure:"converter"`
	Artifacts ArtifactConfig  `mapstructure:"artifacts"`
	Database  Database        `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	R2        R2Config        `mapstructure:"r2"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type UploadConfig struct {
	MaxRequestBodyMB     int64 `mapstructure:"max_request_body"`
	MaxMultipartMemoryMB int64 `mapstructure:"max_multipart_memory"`
}

type ConverterConfig struct {
	JPEGQuality int     `mapstructure:"jpeg_quality"`
	WebPQuality float32 `mapstructure:"webp_quality"`
	MaxPixels   int64   `mapstructure:"max_pixels"` // width*height limit for source images
}

type ArtifactConfig struct {
	Backend    string        `mapstructure:"backend"` // "memory" | "redis"
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"` // memory backend only
	Namespace  string        `mapstructure:"namespace"`   // redis backend only
	URLPrefix  string        `mapstructure:"url_prefix"`
}

type Database struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Password            string        `mapstructure:"password"`
	DatabaseID          int           `mapstructure:"database_id"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout"`
	WriteTimeout        time.Duration `mapstructure:"write_timeout"`
	PoolSize            int           `mapstructure:"pool_size"`
	Nodes               []RedisNode   `mapstructure:"nodes"`
}

type RedisNode struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (n RedisNode) Addr() string { return fmt.Sprintf("%s:%d", n.Host, n.Port) }

type R2Config struct {
	AccountID      string        `mapstructure:"account_id"`
	BucketName     string        `mapstructure:"bucket_name"`
	AccessKeyID    string        `mapstructure:"access_key_id"`
	SecretKey      string        `mapstructure:"secret_key"`
	Endpoint       string        `mapstructure:"endpoint"` // overrides the account endpoint when set
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

type JobsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Stream       string        `mapstructure:"stream"`        // redis stream name
	Group        string        `mapstructure:"group"`         // consumer group name
	Workers      int           `mapstructure:"workers"`       // number of concurrent goroutines
	MaxAttempts  int           `mapstructure:"max_attempts"`  // max deliveries before giving up
	MaxLen       int64         `mapstructure:"max_len"`       // stream max length before trim
	BackoffBase  time.Duration `mapstructure:"backoff_base"`  // base retry delay
	BlockTimeout time.Duration `mapstructure:"block_timeout"` // XREADGROUP block timeout
	Consumer     string        `mapstructure:"consumer"`
}

type SentryConfig struct {
	SentryDSN   string `mapstructure:"sentry_dsn"`
	Environment string `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}
