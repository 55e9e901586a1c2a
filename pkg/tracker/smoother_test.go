package tracker

import (
	"testing"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/config"
	"github.com/arrivo-transit/arrivo/pkg/geomath"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSmoother() *Smoother {
	return NewSmoother(config.Defaults().Smoothing, nil)
}

func sampleAt(vehicleID string, lat float64, lon float64, timestamp time.Time) model.VehiclePositionSample {
	return model.VehiclePositionSample{
		VehicleID:  vehicleID,
		Latitude:   lat,
		Longitude:  lon,
		SpeedKmh:   20,
		BearingDeg: 90,
		Timestamp:  timestamp,
	}
}

func TestIngestFirstSamplePassthrough(t *testing.T) {
	smoother := testSmoother()
	now := time.Now()

	smoothed, err := smoother.Ingest(sampleAt("bus-1", 12.9716, 77.5946, now))

	require.NoError(t, err)
	assert.Equal(t, 12.9716, smoothed.Latitude)
	assert.Equal(t, 77.5946, smoothed.Longitude)
	assert.Equal(t, 1.0, smoothed.Confidence)
	assert.False(t, smoothed.Interpolated)
}

func TestIngestRejectsInvalidCoordinates(t *testing.T) {
	smoother := testSmoother()
	now := time.Now()

	_, err := smoother.Ingest(sampleAt("bus-1", 91, 77.5946, now))
	assert.ErrorIs(t, err, ErrInvalidCoordinate)

	_, err = smoother.Ingest(sampleAt("bus-1", 12.9716, 181, now))
	assert.ErrorIs(t, err, ErrInvalidCoordinate)

	_, err = smoother.Ingest(sampleAt("bus-1", -91, -181, now))
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestIngestStaleTimestampIsNoOp(t *testing.T) {
	smoother := testSmoother()
	now := time.Now()

	first, err := smoother.Ingest(sampleAt("bus-1", 12.9716, 77.5946, now))
	require.NoError(t, err)

	cached, err := smoother.Ingest(sampleAt("bus-1", 13.0000, 77.6000, now))
	assert.ErrorIs(t, err, ErrStaleSample)
	assert.Equal(t, first, cached)

	cached, err = smoother.Ingest(sampleAt("bus-1", 13.0000, 77.6000, now.Add(-time.Second)))
	assert.ErrorIs(t, err, ErrStaleSample)
	assert.Equal(t, first, cached)
}

func TestIngestBlendsSuppressesJumps(t *testing.T) {
	smoother := testSmoother()
	now := time.Now()

	_, err := smoother.Ingest(sampleAt("bus-1", 12.9716, 77.5946, now))
	require.NoError(t, err)

	// implausible jump of roughly 50km a second later
	jumped, err := smoother.Ingest(sampleAt("bus-1", 13.4216, 77.5946, now.Add(time.Second)))
	require.NoError(t, err)

	fullJump := geomath.Distance(12.9716, 77.5946, 13.4216, 77.5946)
	moved := geomath.Distance(12.9716, 77.5946, jumped.Latitude, jumped.Longitude)

	// bounded by the blend weight, not the full jump
	assert.Less(t, moved, fullJump*0.35)
	assert.Greater(t, moved, fullJump*0.25)
}

func TestIngestBlendsBearingAcrossNorth(t *testing.T) {
	smoother := testSmoother()
	now := time.Now()

	first := sampleAt("bus-1", 12.9716, 77.5946, now)
	first.BearingDeg = 350
	_, err := smoother.Ingest(first)
	require.NoError(t, err)

	second := sampleAt("bus-1", 12.9720, 77.5946, now.Add(time.Second))
	second.BearingDeg = 10
	smoothed, err := smoother.Ingest(second)
	require.NoError(t, err)

	// 350 and 10 blend towards north, never through 180
	assert.True(t, smoothed.BearingDeg >= 350 || smoothed.BearingDeg <= 10,
		"expected bearing near north, got %f", smoothed.BearingDeg)
}

func TestCurrentInterpolatesWhenStale(t *testing.T) {
	smoother := testSmoother()
	start := time.Now()

	_, err := smoother.Ingest(sampleAt("bus-1", 12.9716, 77.5946, start))
	require.NoError(t, err)

	// 30s with no fresh sample, well past the 10s staleness window
	current, exists := smoother.Current("bus-1", start.Add(30*time.Second))
	require.True(t, exists)

	assert.True(t, current.Interpolated)
	assert.Less(t, current.Confidence, 1.0)

	// dead reckoning moved it east along bearing 90
	assert.Greater(t, current.Longitude, 77.5946)
	assert.InDelta(t, 12.9716, current.Latitude, 0.001)
}

func TestCurrentConfidenceFloored(t *testing.T) {
	smoother := testSmoother()
	start := time.Now()

	_, err := smoother.Ingest(sampleAt("bus-1", 12.9716, 77.5946, start))
	require.NoError(t, err)

	current, exists := smoother.Current("bus-1", start.Add(4*time.Minute))
	require.True(t, exists)

	assert.Equal(t, config.Defaults().Smoothing.MinimumConfidence, current.Confidence)
}

func TestCurrentUnknownVehicle(t *testing.T) {
	smoother := testSmoother()

	_, exists := smoother.Current("ghost", time.Now())
	assert.False(t, exists)
}

func TestActiveExcludesInactiveWithoutDeleting(t *testing.T) {
	smoother := testSmoother()
	start := time.Now()

	_, err := smoother.Ingest(sampleAt("bus-1", 12.9716, 77.5946, start))
	require.NoError(t, err)
	_, err = smoother.Ingest(sampleAt("bus-2", 12.9816, 77.6046, start.Add(6*time.Minute)))
	require.NoError(t, err)

	active := smoother.Active(start.Add(6 * time.Minute))
	require.Len(t, active, 1)
	assert.Equal(t, "bus-2", active[0].VehicleID)

	// excluded but still cached
	_, exists := smoother.Current("bus-1", start.Add(6*time.Minute))
	assert.True(t, exists)
}

func TestCompactReclaimsDeadEntries(t *testing.T) {
	smoother := testSmoother()
	start := time.Now()

	_, err := smoother.Ingest(sampleAt("bus-1", 12.9716, 77.5946, start))
	require.NoError(t, err)

	removed := smoother.Compact(start.Add(time.Hour))
	assert.Equal(t, 1, removed)

	_, exists := smoother.Current("bus-1", start.Add(time.Hour))
	assert.False(t, exists)
}
