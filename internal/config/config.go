package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/shopping-cart/pkg/circuitbreaker"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	UserServiceURL    string
	ProductServiceURL string
	RemoteCallTimeout time.Duration

	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenRequests uint32
	BreakerInterval         time.Duration

	CartStore   string
	MongoURI    string
	MongoDBName string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string

	// RedisAddr empty disables the cart cache.
	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	OrderTopic   string

	LogLevel     string
	OTELEndpoint string
}

// Load reads the configuration from the environment. Unset variables take
// their defaults; malformed ones are reported together.
func Load() (*Config, error) {
	p := &parser{}
	breaker := circuitbreaker.DefaultConfig("")

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     p.duration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB

		UserServiceURL:    strings.TrimRight(getEnv("USER_SERVICE_URL", "http://localhost:8081/api/users"), "/"),
		ProductServiceURL: strings.TrimRight(getEnv("PRODUCT_SERVICE_URL", "http://localhost:8082/api/products"), "/"),
		RemoteCallTimeout: p.duration("REMOTE_CALL_TIMEOUT", 5*time.Second),

		BreakerFailureThreshold: p.uint32("BREAKER_FAILURE_THRESHOLD", breaker.FailureThreshold),
		BreakerOpenTimeout:      p.duration("BREAKER_OPEN_TIMEOUT", breaker.OpenTimeout),
		BreakerHalfOpenRequests: p.uint32("BREAKER_HALF_OPEN_REQUESTS", breaker.HalfOpenMaxRequests),
		BreakerInterval:         p.duration("BREAKER_INTERVAL", breaker.Interval),

		CartStore:   strings.ToLower(getEnv("CART_STORE", StoreMongo)),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "cartdb"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      p.int("DB_PORT", 5432),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", "postgres"),
		DBName:      getEnv("DB_NAME", "cartdb"),
		SQLitePath:  getEnv("SQLITE_PATH", "cart.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		OrderTopic:   getEnv("ORDER_TOPIC", "order-topic"),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OTELEndpoint: getEnv("OTEL_ENDPOINT", ""),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.CartStore {
	case StoreMongo, StorePostgres, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("CART_STORE must be one of mongo, postgres, sqlite; got %q", c.CartStore))
	}
	if c.BreakerFailureThreshold == 0 {
		errs = append(errs, errors.New("BREAKER_FAILURE_THRESHOLD must be positive"))
	}
	if c.BreakerHalfOpenRequests == 0 {
		errs = append(errs, errors.New("BREAKER_HALF_OPEN_REQUESTS must be positive"))
	}
	if len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS must name at least one broker"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects conversion errors so Load can report all of them at once.
type parser struct {
	errs []error
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func (p *parser) uint32(key string, def uint32) uint32 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return uint32(v)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
