package config

import (
	"strings"
	"time"
)

// RedisConfig configures the optional job status mirror. Variables carry the REDIS_ prefix.
type RedisConfig struct {
	Enabled            bool          `env:"ENABLED"              envDefault:"false"`
	URI                string        `env:"URI"                  envDefault:"localhost:6379"`
	Password           string        `env:"PASSWORD"             envDefault:""`
	DB                 int           `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string      `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string        `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string        `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool          `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string      `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool          `env:"USE_CLUSTER"          envDefault:"false"`
	StatusTTL          time.Duration `env:"STATUS_TTL"           envDefault:"0s"`
}

// Sanitize applies guardrails to Redis configuration values.
func (r *RedisConfig) Sanitize() {
	r.URI = strings.TrimSpace(r.URI)
	r.SentinelNodes = cleanList(r.SentinelNodes)
	r.ClusterNodes = cleanList(r.ClusterNodes)
	if r.DB < 0 {
		r.DB = 0
	}
	if r.StatusTTL < 0 {
		r.StatusTTL = 0
	}
}
