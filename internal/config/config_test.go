package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrental/gateway/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://cars:8070", cfg.CarsServiceURL)
	assert.Equal(t, "http://rental:8060", cfg.RentalServiceURL)
	assert.Equal(t, "http://payment:8050", cfg.PaymentServiceURL)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 5, cfg.CarsBreakerFailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.CarsBreakerOpenTimeout)
	assert.Equal(t, 30*time.Second, cfg.RetryQueueInterval)
	assert.Equal(t, 5, cfg.RetryQueueMaxAttempts)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CARS_SERVICE_URL", "http://cars.local:9000")
	t.Setenv("RETRY_QUEUE_MAX_ATTEMPTS", "7")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "http://cars.local:9000", cfg.CarsServiceURL)
	assert.Equal(t, 7, cfg.RetryQueueMaxAttempts)
}

func TestBreakers_NamesAndDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	breakers := cfg.Breakers()
	require.Len(t, breakers, 3)
	names := []string{breakers[0].Name, breakers[1].Name, breakers[2].Name}
	assert.Equal(t, []string{"cars_service", "rental_service", "payment_service"}, names)
	for _, b := range breakers {
		assert.Equal(t, 5, b.FailureThreshold)
		assert.Equal(t, 60*time.Second, b.OpenTimeout)
	}
}
