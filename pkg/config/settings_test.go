package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tankcontrol/pkg/volumetric"
)

func TestLoadSettingsDefaults(t *testing.T) {
	t.Setenv("PRODUCTION_TIMEZONE", "")
	s := LoadSettings()

	assert.Equal(t, "8080", s.Port)
	assert.Equal(t, "America/Sao_Paulo", s.ProductionTimezone)
	assert.Equal(t, 30*time.Second, s.LockTTL)
	assert.Equal(t, volumetric.DefaultThermalOptions(), s.Thermal())
	assert.Equal(t, "", s.RabbitMQURL())
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("PRODUCTION_TIMEZONE", "UTC")
	t.Setenv("THERMAL_TOLERANCE", "1e-6")
	t.Setenv("THERMAL_MAX_ITERATIONS", "12")
	t.Setenv("RABBITMQ_HOST", "mq")
	t.Setenv("RABBITMQ_USER", "guest")
	t.Setenv("RABBITMQ_PASSWORD", "secret")
	t.Setenv("DB_NAME", "tanks")

	s := LoadSettings()
	assert.Equal(t, "9090", s.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, s.AllowedOrigins)
	assert.Equal(t, volumetric.ThermalOptions{Tolerance: 1e-6, MaxIterations: 12}, s.Thermal())
	assert.Equal(t, "amqp://guest:secret@mq:5672/", s.RabbitMQURL())
	assert.Contains(t, s.DatabaseDSN(), "dbname=tanks")

	loc, err := s.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	t.Run("Bad Timezone", func(t *testing.T) {
		s.ProductionTimezone = "Mars/Olympus"
		_, err := s.Location()
		assert.Error(t, err)
	})

	t.Run("Bad Thermal Values Use Defaults", func(t *testing.T) {
		s.ThermalMaxIterations = 0
		assert.Equal(t, volumetric.DefaultThermalOptions(), s.Thermal())
	})
}
