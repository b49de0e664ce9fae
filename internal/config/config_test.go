package config

import (
	"testing"
	"time"

	"github.com/fjod/go_cart/shopping-cart/pkg/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, StoreMongo, cfg.CartStore)
	assert.Equal(t, "order-topic", cfg.OrderTopic)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Empty(t, cfg.RedisAddr)

	breaker := circuitbreaker.DefaultConfig("")
	assert.Equal(t, breaker.FailureThreshold, cfg.BreakerFailureThreshold)
	assert.Equal(t, breaker.OpenTimeout, cfg.BreakerOpenTimeout)
	assert.Equal(t, breaker.HalfOpenMaxRequests, cfg.BreakerHalfOpenRequests)
	assert.Equal(t, breaker.Interval, cfg.BreakerInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("REMOTE_CALL_TIMEOUT", "750ms")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "3")
	t.Setenv("CART_STORE", "SQLite")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("USER_SERVICE_URL", "http://users:8080/api/users/")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 750*time.Millisecond, cfg.RemoteCallTimeout)
	assert.Equal(t, uint32(3), cfg.BreakerFailureThreshold)
	assert.Equal(t, StoreSQLite, cfg.CartStore)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "http://users:8080/api/users", cfg.UserServiceURL)
	assert.Equal(t, 6543, cfg.DBPort)
}

func TestLoad_ReportsEveryMalformedValue(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("DB_PORT", "five")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "REQUEST_TIMEOUT")
	assert.ErrorContains(t, err, "DB_PORT")
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	t.Setenv("CART_STORE", "cassandra")

	_, err := Load()
	assert.ErrorContains(t, err, "CART_STORE")
}

func TestLoad_RejectsZeroThreshold(t *testing.T) {
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "BREAKER_FAILURE_THRESHOLD")
}
