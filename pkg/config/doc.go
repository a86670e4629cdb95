// Package config loads the academy server configuration from the environment.
//
// The root Config is read with cleanenv; TokenConfig durations are parsed
// separately so they may be written either as ISO8601 (P7D) or Go (168h)
// durations. JWT_SECRET is required and Load fails without it.
package config
