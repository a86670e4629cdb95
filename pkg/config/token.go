package config

import (
	"time"
)

// TokenConfig holds signing and lifetime settings for every token family.
// Durations accept ISO8601 or Go syntax.
type TokenConfig struct {
	Secret   string `env:"JWT_SECRET" env-required:"true"`
	Issuer   string `env:"JWT_ISSUER" env-default:"simple-academy"`
	Audience string `env:"JWT_AUDIENCE" env-default:"simple-academy"`

	SessionExpiry              string `env:"SESSION_TOKEN_EXPIRY" env-default:"168h"`
	VerificationExpiry         string `env:"VERIFICATION_TOKEN_EXPIRY" env-default:"24h"`
	VerificationResendCooldown string `env:"VERIFICATION_RESEND_COOLDOWN" env-default:"5m"`
	CourseAccessExpiry         string `env:"COURSE_ACCESS_TOKEN_EXPIRY" env-default:"1h"`
	CourseAccessMaxUses        int    `env:"COURSE_ACCESS_MAX_USES" env-default:"3"`
}

// TokenSettings is the parsed form of TokenConfig
type TokenSettings struct {
	Secret                     string
	Issuer                     string
	Audience                   string
	SessionExpiry              time.Duration
	VerificationExpiry         time.Duration
	VerificationResendCooldown time.Duration
	CourseAccessExpiry         time.Duration
	CourseAccessMaxUses        int
}

// Parse converts the raw settings, reporting every invalid field at once
func (t TokenConfig) Parse() (TokenSettings, error) {
	settings := TokenSettings{
		Secret:              t.Secret,
		Issuer:              t.Issuer,
		Audience:            t.Audience,
		CourseAccessMaxUses: t.CourseAccessMaxUses,
	}

	var errs ValidationErrors
	parse := func(field, raw string, dst *time.Duration) {
		d, err := ParseDuration(raw)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: "invalid duration " + raw})
			return
		}
		if verr := RequirePositiveDuration(field, d); verr != nil {
			errs = append(errs, *verr)
			return
		}
		*dst = d
	}
	parse("SESSION_TOKEN_EXPIRY", t.SessionExpiry, &settings.SessionExpiry)
	parse("VERIFICATION_TOKEN_EXPIRY", t.VerificationExpiry, &settings.VerificationExpiry)
	parse("VERIFICATION_RESEND_COOLDOWN", t.VerificationResendCooldown, &settings.VerificationResendCooldown)
	parse("COURSE_ACCESS_TOKEN_EXPIRY", t.CourseAccessExpiry, &settings.CourseAccessExpiry)

	if verr := RequireNonEmpty("JWT_SECRET", t.Secret); verr != nil {
		errs = append(errs, *verr)
	}
	if verr := RequirePositive("COURSE_ACCESS_MAX_USES", t.CourseAccessMaxUses); verr != nil {
		errs = append(errs, *verr)
	}

	if errs.HasErrors() {
		return TokenSettings{}, errs
	}
	return settings, nil
}
