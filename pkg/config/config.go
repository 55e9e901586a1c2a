package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Pipeline holds every tunable of the proximity pipeline. Defaults match the
// values the system was originally operated with; all of them can be
// overridden from config.yml or the ARRIVO_* environment.
type Pipeline struct {
	Smoothing SmoothingConfig `yaml:"smoothing"`
	Geofence  GeofenceConfig  `yaml:"geofence"`
	Trigger   TriggerConfig   `yaml:"trigger"`
	Composer  ComposerConfig  `yaml:"composer"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
}

type SmoothingConfig struct {
	// BlendWeight is the weight given to the newest sample; the previous
	// smoothed state carries the remainder.
	BlendWeight float64 `yaml:"blendWeight" validate:"gt=0,lt=1"`

	StalenessWindow  time.Duration `yaml:"stalenessWindow" validate:"gt=0"`
	InactivityWindow time.Duration `yaml:"inactivityWindow" validate:"gt=0"`
	CompactionWindow time.Duration `yaml:"compactionWindow" validate:"gt=0"`

	MinimumConfidence float64 `yaml:"minimumConfidence" validate:"gte=0,lte=1"`
}

type GeofenceConfig struct {
	BoundingRadiusMeters float64 `yaml:"boundingRadiusMeters" validate:"gt=0"`
	TriggerRadiusMeters  float64 `yaml:"triggerRadiusMeters" validate:"gt=0"`
	InnerRadiusMeters    float64 `yaml:"innerRadiusMeters" validate:"gt=0"`

	ApproachToleranceDeg float64 `yaml:"approachToleranceDeg" validate:"gt=0,lte=180"`

	DefaultSpeedKmh float64 `yaml:"defaultSpeedKmh" validate:"gt=0"`

	TickInterval time.Duration `yaml:"tickInterval" validate:"gt=0"`
}

type TriggerConfig struct {
	ConfidenceFloor float64       `yaml:"confidenceFloor" validate:"gte=0,lte=1"`
	CooldownWindow  time.Duration `yaml:"cooldownWindow" validate:"gt=0"`

	RetentionWindow time.Duration `yaml:"retentionWindow" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanupInterval" validate:"gt=0"`
}

type ComposerConfig struct {
	DefaultLanguage         string `yaml:"defaultLanguage" validate:"required"`
	UrgencyThresholdMinutes int    `yaml:"urgencyThresholdMinutes" validate:"gte=0"`
}

type BroadcastConfig struct {
	SendTimeout time.Duration `yaml:"sendTimeout" validate:"gt=0"`
	InboxSize   int           `yaml:"inboxSize" validate:"gt=0"`
}

func Defaults() Pipeline {
	return Pipeline{
		Smoothing: SmoothingConfig{
			BlendWeight:       0.3,
			StalenessWindow:   10 * time.Second,
			InactivityWindow:  5 * time.Minute,
			CompactionWindow:  30 * time.Minute,
			MinimumConfidence: 0.3,
		},
		Geofence: GeofenceConfig{
			BoundingRadiusMeters: 500,
			TriggerRadiusMeters:  300,
			InnerRadiusMeters:    150,
			ApproachToleranceDeg: 45,
			DefaultSpeedKmh:      20,
			TickInterval:         5 * time.Second,
		},
		Trigger: TriggerConfig{
			ConfidenceFloor: 0.6,
			CooldownWindow:  5 * time.Minute,
			RetentionWindow: time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Composer: ComposerConfig{
			DefaultLanguage:         "en",
			UrgencyThresholdMinutes: 2,
		},
		Broadcast: BroadcastConfig{
			SendTimeout: 5 * time.Second,
			InboxSize:   256,
		},
	}
}

// Load builds the pipeline configuration: defaults, then config.yml if one
// exists, then environment overrides. A missing file is fine, an invalid one
// is not.
func Load() (Pipeline, error) {
	godotenv.Load()

	pipeline := Defaults()

	path := "config.yml"
	if envPath := os.Getenv("ARRIVO_CONFIG"); envPath != "" {
		path = envPath
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &pipeline); err != nil {
			return pipeline, err
		}
	}

	applyEnvironmentOverrides(&pipeline)

	validate := validator.New()
	if err := validate.Struct(pipeline); err != nil {
		return pipeline, err
	}

	return pipeline, nil
}

func applyEnvironmentOverrides(pipeline *Pipeline) {
	overrideDuration(&pipeline.Smoothing.StalenessWindow, "ARRIVO_SMOOTHING_STALENESS_WINDOW")
	overrideDuration(&pipeline.Smoothing.InactivityWindow, "ARRIVO_SMOOTHING_INACTIVITY_WINDOW")
	overrideFloat(&pipeline.Smoothing.BlendWeight, "ARRIVO_SMOOTHING_BLEND_WEIGHT")
	overrideFloat(&pipeline.Smoothing.MinimumConfidence, "ARRIVO_SMOOTHING_MINIMUM_CONFIDENCE")

	overrideFloat(&pipeline.Geofence.BoundingRadiusMeters, "ARRIVO_GEOFENCE_BOUNDING_RADIUS")
	overrideFloat(&pipeline.Geofence.TriggerRadiusMeters, "ARRIVO_GEOFENCE_TRIGGER_RADIUS")
	overrideFloat(&pipeline.Geofence.InnerRadiusMeters, "ARRIVO_GEOFENCE_INNER_RADIUS")
	overrideDuration(&pipeline.Geofence.TickInterval, "ARRIVO_GEOFENCE_TICK_INTERVAL")

	overrideFloat(&pipeline.Trigger.ConfidenceFloor, "ARRIVO_TRIGGER_CONFIDENCE_FLOOR")
	overrideDuration(&pipeline.Trigger.CooldownWindow, "ARRIVO_TRIGGER_COOLDOWN_WINDOW")
	overrideDuration(&pipeline.Trigger.RetentionWindow, "ARRIVO_TRIGGER_RETENTION_WINDOW")

	overrideDuration(&pipeline.Broadcast.SendTimeout, "ARRIVO_BROADCAST_SEND_TIMEOUT")
}

func overrideDuration(target *time.Duration, name string) {
	if val := os.Getenv(name); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, name string) {
	if val := os.Getenv(name); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			*target = parsed
		}
	}
}
