package config

import (
	"fmt"
	"time"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host          string        `env:"REDIS_HOST" env-default:"localhost"`
	Port          int           `env:"REDIS_PORT" env-default:"6379"`
	Password      string        `env:"REDIS_PASSWORD" env-default:""`
	DB            int           `env:"REDIS_DB" env-default:"0"`
	PoolSize      int           `env:"REDIS_POOL_SIZE" env-default:"20"`
	KeyPrefix     string        `env:"REDIS_KEY_PREFIX" env-default:"academy:identity:"`
	DialTimeout   time.Duration `env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	MaxRetries    int           `env:"REDIS_MAX_RETRIES" env-default:"3"`
	RetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL" env-default:"1s"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
