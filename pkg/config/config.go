package config

import (
	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration of the academy server
type Config struct {
	App       AppConfig
	Token     TokenConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Email     EmailConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, TokenSettings, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, TokenSettings{}, err
	}
	settings, err := cfg.Token.Parse()
	if err != nil {
		return nil, TokenSettings{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, TokenSettings{}, err
	}
	return &cfg, settings, nil
}

// Validate checks settings that cleanenv cannot express
func (c *Config) Validate() error {
	return Validate(
		func() ValidationErrors {
			var errs ValidationErrors
			if err := RequireOneOf("PERSISTENCE_TYPE", c.App.PersistenceType, []string{"postgres", "postgresql", "redis", "file", "memory", "inmem"}); err != nil {
				errs = append(errs, *err)
			}
			if err := RequireValidURL("FRONTEND_URL", c.App.FrontendURL); err != nil {
				errs = append(errs, *err)
			}
			if err := RequireValidURL("BASE_URL", c.App.BaseURL); err != nil {
				errs = append(errs, *err)
			}
			return errs
		},
		func() ValidationErrors {
			var errs ValidationErrors
			if c.App.PersistenceType == "file" {
				if err := RequireNonEmpty("DATA_DIR", c.App.DataDir); err != nil {
					errs = append(errs, *err)
				}
			}
			if c.Email.Enabled {
				if err := RequireValidEmail("EMAIL_FROM", c.Email.From); err != nil {
					errs = append(errs, *err)
				}
				if err := RequireValidPort("EMAIL_PORT", c.Email.Port); err != nil {
					errs = append(errs, *err)
				}
			}
			return errs
		},
		func() ValidationErrors {
			var errs ValidationErrors
			if c.App.Environment() == Production && c.Token.Secret != "" {
				if err := RequireMinLength("JWT_SECRET", c.Token.Secret, 32); err != nil {
					errs = append(errs, *err)
				}
			}
			return errs
		},
	)
}
