package config

// AppConfig holds settings shared by the HTTP layer
type AppConfig struct {
	Env             string `env:"APP_ENV" env-default:"development"`
	BaseURL         string `env:"BASE_URL" env-default:"http://localhost:3000"`
	FrontendURL     string `env:"FRONTEND_URL" env-default:"http://localhost:8080"`
	PersistenceType string `env:"PERSISTENCE_TYPE" env-default:"memory"`
	DataDir         string `env:"DATA_DIR" env-default:"./data"`
	APIPrefix       string `env:"API_PREFIX" env-default:"/api"`
}

// Environment returns the parsed APP_ENV value
func (a AppConfig) Environment() Environment {
	return ParseEnvironment(a.Env)
}

// CORSConfig lists the browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:8080,http://127.0.0.1:8080"`
	MaxAge         int    `env:"CORS_MAX_AGE" env-default:"300"`
}

// Origins returns AllowedOrigins as a slice
func (c CORSConfig) Origins() []string {
	return SplitList(c.AllowedOrigins)
}

// TelemetryConfig controls OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" env-default:"false"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" env-default:"simple-academy"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" env-default:"1.0"`
	Version     string  `env:"SERVICE_VERSION" env-default:"dev"`
}
