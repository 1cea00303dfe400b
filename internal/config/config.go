package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Storage drivers understood by Load.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds runtime configuration sourced from env vars. It is decoded once
// at startup and handed to components by value.
type Config struct {
	Port          string `env:"PORT,default=8080"`
	StorageDriver string `env:"STORAGE_DRIVER,default=postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER,default=kaisurf-backend"`
	JWTTTL    time.Duration `env:"JWT_TTL,default=60m"`

	// ServiceAPIKey is either the literal trusted-service key or a bcrypt hash of it.
	ServiceAPIKey string        `env:"TRUSTED_SERVICE_API_KEY"`
	SessionTTL    time.Duration `env:"SESSION_TTL,default=24h"`

	KonesEnabled bool `env:"KONES_REWARDS_ENABLED,default=true"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=10s"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST,default=40"`

	// TrustedProxiesRaw lists the IPs or CIDRs of reverse proxies whose
	// X-Forwarded-For header may name the client.
	TrustedProxiesRaw string `env:"TRUSTED_PROXIES"`

	CORSOriginsRaw  string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	KafkaBrokersRaw string `env:"KAFKA_BROKERS"`
	KafkaTopic      string `env:"KAFKA_TOPIC,default=kaisurf.events"`
	AddonsDir       string `env:"ADDONS_DIR,default=addons"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	AppName    string `env:"APP_NAME,default=KAiSurf"`
	AppVersion string `env:"APP_VERSION,default=RL v1.0.1"`

	CORSOrigins    []string
	KafkaBrokers   []string
	TrustedProxies []netip.Prefix
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.ServiceAPIKey = strings.TrimSpace(cfg.ServiceAPIKey)
	cfg.CORSOrigins = parseCSV(cfg.CORSOriginsRaw)
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	cfg.KafkaBrokers = parseCSV(cfg.KafkaBrokersRaw)
	proxies, err := parsePrefixes(parseCSV(cfg.TrustedProxiesRaw))
	if err != nil {
		return Config{}, err
	}
	cfg.TrustedProxies = proxies

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// KafkaEnabled reports whether an event stream has been configured.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parsePrefixes accepts bare addresses as single-host prefixes.
func parsePrefixes(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
