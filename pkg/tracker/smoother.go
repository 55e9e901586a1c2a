package tracker

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/arrivo-transit/arrivo/pkg/config"
	"github.com/arrivo-transit/arrivo/pkg/geomath"
	"github.com/arrivo-transit/arrivo/pkg/model"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidCoordinate = errors.New("latitude or longitude out of range")
	// ErrStaleSample marks a sample whose timestamp is not strictly newer
	// than the cached state. Ingest is an idempotent no-op in that case.
	ErrStaleSample = errors.New("sample timestamp not newer than cached state")
)

// LocationMirror receives a copy of every accepted smoothed location so other
// processes (the web API) can read vehicle state without sharing memory.
type LocationMirror interface {
	Set(ctx context.Context, vehicleID string, location model.SmoothedLocation) error
}

// Smoother owns the vehicle id -> SmoothedLocation cache. All reads and
// writes go through its synchronized accessors; nothing else touches the map.
type Smoother struct {
	mutex    sync.RWMutex
	vehicles map[string]model.SmoothedLocation

	config config.SmoothingConfig

	mirror LocationMirror
}

func NewSmoother(cfg config.SmoothingConfig, mirror LocationMirror) *Smoother {
	return &Smoother{
		vehicles: map[string]model.SmoothedLocation{},
		config:   cfg,
		mirror:   mirror,
	}
}

// Ingest applies a raw sample. The first sample for a vehicle passes through
// unchanged with full confidence; later samples are blended against the
// previous state to suppress GPS jitter.
func (s *Smoother) Ingest(sample model.VehiclePositionSample) (model.SmoothedLocation, error) {
	if sample.Latitude < -90 || sample.Latitude > 90 || sample.Longitude < -180 || sample.Longitude > 180 {
		return model.SmoothedLocation{}, ErrInvalidCoordinate
	}

	s.mutex.Lock()

	previous, exists := s.vehicles[sample.VehicleID]
	if exists && !sample.Timestamp.After(previous.Timestamp) {
		s.mutex.Unlock()
		return previous, ErrStaleSample
	}

	var smoothed model.SmoothedLocation
	if !exists {
		smoothed = model.SmoothedLocation{
			VehicleID:  sample.VehicleID,
			Latitude:   sample.Latitude,
			Longitude:  sample.Longitude,
			SpeedKmh:   sample.SpeedKmh,
			BearingDeg: sample.BearingDeg,
			Timestamp:  sample.Timestamp,
			Confidence: 1.0,
		}
	} else {
		weight := s.config.BlendWeight

		smoothed = model.SmoothedLocation{
			VehicleID:  sample.VehicleID,
			Latitude:   previous.Latitude*(1-weight) + sample.Latitude*weight,
			Longitude:  previous.Longitude*(1-weight) + sample.Longitude*weight,
			SpeedKmh:   previous.SpeedKmh*(1-weight) + sample.SpeedKmh*weight,
			BearingDeg: blendBearing(previous.BearingDeg, sample.BearingDeg, weight),
			Timestamp:  sample.Timestamp,
			Confidence: 1.0,
		}
	}

	s.vehicles[sample.VehicleID] = smoothed
	s.mutex.Unlock()

	if s.mirror != nil {
		if err := s.mirror.Set(context.Background(), sample.VehicleID, smoothed); err != nil {
			log.Debug().Err(err).Str("vehicle", sample.VehicleID).Msg("Failed to mirror location")
		}
	}

	return smoothed, nil
}

// Current returns the freshest view of a vehicle. Past the staleness window
// the position is dead-reckoned along the last known bearing and the
// confidence decays, floored at the configured minimum.
func (s *Smoother) Current(vehicleID string, now time.Time) (model.SmoothedLocation, bool) {
	s.mutex.RLock()
	location, exists := s.vehicles[vehicleID]
	s.mutex.RUnlock()

	if !exists {
		return model.SmoothedLocation{}, false
	}

	return s.projectIfStale(location, now), true
}

// Active returns the current view of every vehicle updated within the
// inactivity window. Older entries stay cached until compaction but are
// excluded here.
func (s *Smoother) Active(now time.Time) []model.SmoothedLocation {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var active []model.SmoothedLocation
	for _, location := range s.vehicles {
		if now.Sub(location.Timestamp) > s.config.InactivityWindow {
			continue
		}

		active = append(active, s.projectIfStale(location, now))
	}

	return active
}

// Compact removes entries that have been dead longer than the compaction
// window, bounding memory under continuous operation.
func (s *Smoother) Compact(now time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for vehicleID, location := range s.vehicles {
		if now.Sub(location.Timestamp) > s.config.CompactionWindow {
			delete(s.vehicles, vehicleID)
			removed++
		}
	}

	return removed
}

func (s *Smoother) projectIfStale(location model.SmoothedLocation, now time.Time) model.SmoothedLocation {
	elapsed := now.Sub(location.Timestamp)
	if elapsed <= s.config.StalenessWindow {
		return location
	}

	// dead reckoning from the last fix
	travelled := location.SpeedKmh * 1000 / 3600 * elapsed.Seconds()
	lat, lon := geomath.DestinationPoint(location.Latitude, location.Longitude, location.BearingDeg, travelled)

	overage := elapsed - s.config.StalenessWindow
	decay := 1 - overage.Seconds()/s.config.InactivityWindow.Seconds()

	confidence := location.Confidence * decay
	if confidence < s.config.MinimumConfidence {
		confidence = s.config.MinimumConfidence
	}

	location.Latitude = lat
	location.Longitude = lon
	location.Timestamp = now
	location.Confidence = confidence
	location.Interpolated = true

	return location
}

// blendBearing interpolates along the shortest arc so headings either side of
// north blend towards north rather than south.
func blendBearing(previous float64, next float64, weight float64) float64 {
	difference := math.Mod(next-previous+540, 360) - 180

	return math.Mod(previous+difference*weight+360, 360)
}
