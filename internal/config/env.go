package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// applyEnv overlays environment variables. SSH key settings are read from the
// environment only when ssh_config.yaml was not found.
func applyEnv(cfg *Config, sshFromEnv bool) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	// Warehouse
	str("MYSQL_HOST", &cfg.MySQL.Host)
	str("MYSQL_USER", &cfg.MySQL.User)
	str("MYSQL_DB", &cfg.MySQL.Database)
	integer("MYSQL_PORT", &cfg.MySQL.Port)
	str("MYSQL_PASSWORD", &cfg.MySQL.Password)
	boolean("SSH_TUNNEL", &cfg.MySQL.Tunnel)
	str("SSH_TUNNEL_HOST", &cfg.MySQL.TunnelHost)
	str("SSH_TUNNEL_USER", &cfg.MySQL.TunnelUser)
	integer("SSH_TUNNEL_PORT", &cfg.MySQL.TunnelPort)
	str("SSH_KNOWN_HOSTS", &cfg.MySQL.KnownHostsPath)
	if sshFromEnv {
		str("SSH_KEY_PATH", &cfg.SSH.KeyPath)
		str("SSH_KEY_PASS", &cfg.SSH.KeyPass)
	}

	// Outcome stores
	str("POSTGRES_DSN", &cfg.PostgresDSN)
	str("CLICKHOUSE_DSN", &cfg.ClickHouseDSN)

	// Cache and events
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	integer("REDIS_DB", &cfg.Redis.DB)
	duration("SUMMARY_CACHE_TTL", &cfg.Redis.TTL)
	str("KAFKA_BROKER", &cfg.Kafka.Broker)
	str("KAFKA_TOPIC", &cfg.Kafka.Topic)

	// External services
	str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	str("OPENAI_BASE_URL", &cfg.LLM.BaseURL)
	str("OPENAI_MODEL", &cfg.LLM.Model)
	str("RECOMMEND_URL", &cfg.Recommend.BaseURL)
	str("API_KEY", &cfg.Recommend.APIKey)
	str("COUNTERPART_URL", &cfg.Counterpart.HTTPURL)
	str("COUNTERPART_WS_URL", &cfg.Counterpart.WSURL)
	str("COUNTERPART_API_KEY", &cfg.Counterpart.APIKey)

	// Negotiation loop
	str("NEGOTIATION_MODE", &cfg.Negotiation.Mode)
	integer("NEGOTIATION_MAX_STEPS", &cfg.Negotiation.MaxSteps)
	duration("NEGOTIATION_STEP_DELAY", &cfg.Negotiation.StepDelay)

	// Process
	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("LOG_LEVEL", &cfg.LogLevel)
	boolean("USE_MEMORY", &cfg.UseMemory)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

// lookupEnv returns the value of key, or def when unset or empty.
func lookupEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
