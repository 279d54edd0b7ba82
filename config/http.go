package config

import "time"

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultIdleTimeout       = 120 * time.Second
)

// HTTPConfig contains HTTP server configuration. Variables carry the HTTP_ prefix.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"ADDR" envDefault:":8000"`

	// MaxUploadBytes caps the size of a conversion request body.
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"1073741824"`

	// MaxConnections caps concurrent connections; 0 disables the cap.
	MaxConnections int `env:"MAX_CONNECTIONS" envDefault:"0"`

	// ConvertRateLimit is the sustained rate of accepted conversion requests
	// per second; 0 disables rate limiting.
	ConvertRateLimit float64 `env:"CONVERT_RATE_LIMIT" envDefault:"0"`

	// ConvertBurst is the token bucket size for conversion requests.
	ConvertBurst int `env:"CONVERT_BURST" envDefault:"10"`

	// ReadHeaderTimeout bounds how long a client may take to send request headers.
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`

	// ReadTimeout bounds reading a whole request, body included. It must cover
	// the largest upload at the slowest supported client; 0 disables it.
	ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"30m"`

	// WriteTimeout bounds writing a response, including archive builds and
	// file downloads; 0 disables it.
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30m"`

	// IdleTimeout bounds keep-alive connections between requests.
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr == "" {
		h.Addr = ":8000"
	}
	if h.MaxUploadBytes < 1<<20 {
		h.MaxUploadBytes = 1 << 20
	}
	if h.MaxConnections < 0 {
		h.MaxConnections = 0
	}
	if h.ConvertRateLimit < 0 {
		h.ConvertRateLimit = 0
	}
	if h.ConvertBurst < 1 {
		h.ConvertBurst = 1
	}
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if h.ReadTimeout < 0 {
		h.ReadTimeout = 0
	}
	if h.WriteTimeout < 0 {
		h.WriteTimeout = 0
	}
	if h.IdleTimeout <= 0 {
		h.IdleTimeout = defaultIdleTimeout
	}
}

// RateLimitEnabled reports whether conversion requests are rate limited.
func (h *HTTPConfig) RateLimitEnabled() bool {
	return h.ConvertRateLimit > 0
}
