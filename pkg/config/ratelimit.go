package config

import (
	"time"
)

// RateLimitConfig contains rate limiting settings. Rates are requests per second.
type RateLimitConfig struct {
	GlobalEnabled  bool    `env:"RATELIMIT_GLOBAL_ENABLED" env-default:"true"`
	GlobalBurst    int     `env:"RATELIMIT_GLOBAL_BURST" env-default:"1000"`
	GlobalRate     float64 `env:"RATELIMIT_GLOBAL_RATE" env-default:"16.67"`
	PerIPEnabled   bool    `env:"RATELIMIT_PER_IP_ENABLED" env-default:"true"`
	PerIPBurst     int     `env:"RATELIMIT_PER_IP_BURST" env-default:"100"`
	PerIPRate      float64 `env:"RATELIMIT_PER_IP_RATE" env-default:"1.67"`
	PerUserEnabled bool    `env:"RATELIMIT_PER_USER_ENABLED" env-default:"true"`
	PerUserBurst   int     `env:"RATELIMIT_PER_USER_BURST" env-default:"200"`
	PerUserRate    float64 `env:"RATELIMIT_PER_USER_RATE" env-default:"3.33"`

	// Public endpoints that can be abused for enumeration or brute force
	AuthBurst int     `env:"RATELIMIT_AUTH_BURST" env-default:"10"`
	AuthRate  float64 `env:"RATELIMIT_AUTH_RATE" env-default:"0.167"`

	BucketTTL      time.Duration `env:"RATELIMIT_BUCKET_TTL" env-default:"1h"`
	IncludeHeaders bool          `env:"RATELIMIT_INCLUDE_HEADERS" env-default:"true"`
}
