package config

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	pipeline := Defaults()

	validate := validator.New()
	require.NoError(t, validate.Struct(pipeline))
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ARRIVO_TRIGGER_COOLDOWN_WINDOW", "90s")
	t.Setenv("ARRIVO_GEOFENCE_TRIGGER_RADIUS", "450")

	pipeline := Defaults()
	applyEnvironmentOverrides(&pipeline)

	assert.Equal(t, 90*time.Second, pipeline.Trigger.CooldownWindow)
	assert.Equal(t, 450.0, pipeline.Geofence.TriggerRadiusMeters)
}

func TestEnvironmentOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("ARRIVO_TRIGGER_COOLDOWN_WINDOW", "not-a-duration")

	pipeline := Defaults()
	applyEnvironmentOverrides(&pipeline)

	assert.Equal(t, 5*time.Minute, pipeline.Trigger.CooldownWindow)
}
