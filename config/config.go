package config

import (
	"strings"
)

// EnvPrefix is prepended to every environment variable the service reads.
const EnvPrefix = "CONVERTI_"

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library with the CONVERTI_ prefix. See individual
// domain config files for details on available environment variables:
//   - database.go: Redis status mirror
//   - http.go: HTTP server configuration
//   - integrations.go: object storage and event broker
//   - jobs.go: storage, worker pool and retention sweeper
//   - services.go: service modes
type AppConfig struct {
	// AppName names the service in logs and download file names.
	AppName string `env:"APP_NAME" envDefault:"Converti"`

	// APIPrefix is the path prefix every route is mounted under.
	APIPrefix string `env:"API_PREFIX" envDefault:"/api"`

	// AllowedOrigins lists CORS origins; "*" allows any origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http,sweeper"`

	// HTTP server configuration
	HTTP HTTPConfig `envPrefix:"HTTP_"`

	// Job engine configuration
	Storage StorageConfig
	Workers WorkerConfig
	Sweeper SweeperConfig

	// Optional integrations
	Redis       RedisConfig       `envPrefix:"REDIS_"`
	ObjectStore ObjectStoreConfig `envPrefix:"S3_"`
	Events      EventsConfig      `envPrefix:"AMQP_"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.AppName = strings.TrimSpace(c.AppName)
	if c.AppName == "" {
		c.AppName = "Converti"
	}
	c.APIPrefix = normalizePrefix(c.APIPrefix)
	c.AllowedOrigins = cleanList(c.AllowedOrigins)
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}

	c.HTTP.Sanitize()
	c.Storage.Sanitize()
	c.Workers.Sanitize()
	c.Sweeper.Sanitize()
	c.Redis.Sanitize()
	c.ObjectStore.Sanitize()
	c.Events.Sanitize()
	c.Observability.Sanitize()
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsSweeperEnabled returns true if the retention sweeper service is enabled.
func (c *AppConfig) IsSweeperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeSweeper]
}

// normalizePrefix returns "" or a path starting with "/" and without a trailing slash.
func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
