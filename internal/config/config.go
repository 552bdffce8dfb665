// Package config provides the configuration schema and loader for the
// echosort assistant.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration wraps [time.Duration] with YAML support for "3s"-style strings.
type Duration time.Duration

// UnmarshalYAML parses the duration from a YAML scalar.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped [time.Duration].
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration for the assistant. It is built once at
// process start and never mutated afterwards; all components receive it by
// reference.
type Config struct {
	// LogLevel controls verbosity. Defaults to "info".
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the listen address of the Prometheus /metrics
	// endpoint (e.g. ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// Bus addresses the voice-output peripheral.
	Bus BusConfig `yaml:"bus"`

	// KWS configures local keyword spotting, the authoritative trigger
	// path.
	KWS KWSConfig `yaml:"kws"`

	// Cooldown is the quiet period after a completed trigger cycle
	// before another detection is accepted. Defaults to 3 s.
	Cooldown Duration `yaml:"cooldown"`

	// PostTriggerDelay is an extra wait after the announcement before
	// keyword detection resumes. Defaults to 0.
	PostTriggerDelay Duration `yaml:"post_trigger_delay"`

	// ChannelCapacity bounds the detection event channel. Defaults to 10.
	ChannelCapacity int `yaml:"channel_capacity"`

	// Volume is the local playback volume, 0–100. Zero is a valid value
	// (mute), so the field is a pointer to tell "unset" apart from an
	// explicit 0. Defaults to 85 when absent.
	Volume *int `yaml:"volume"`

	// Camera configures frame capture.
	Camera CameraConfig `yaml:"camera"`

	// Classifier configures the remote classification service.
	Classifier ClassifierConfig `yaml:"classifier"`

	// Categories maps classification labels to announcement outputs.
	Categories map[string]CategoryConfig `yaml:"categories"`

	// Events maps system event keys (e.g. "error") to WAV asset paths.
	Events map[string]string `yaml:"events"`
}

// BusConfig locates the peripheral on a Linux I2C adapter.
type BusConfig struct {
	// ID selects /dev/i2c-<ID>.
	ID int `yaml:"id"`

	// Address is the peripheral's 7-bit bus address (e.g. 0x34).
	Address uint16 `yaml:"address"`
}

// KWSConfig configures the keyword-spotting engine and its trigger
// thresholds.
type KWSConfig struct {
	// ModelPath is the acoustic model artifact loaded by the engine.
	// A missing model is a fatal startup error.
	ModelPath string `yaml:"model_path"`

	// SampleRate of the microphone input in Hz. Defaults to 16000.
	SampleRate int `yaml:"sample_rate"`

	// EngineCommand is the argv of the inference process. The model path
	// is appended as its final argument.
	EngineCommand []string `yaml:"engine_command"`

	// Keywords lists the trigger phrases with per-keyword thresholds.
	Keywords []KeywordConfig `yaml:"keywords"`
}

// KeywordConfig is one trigger phrase.
type KeywordConfig struct {
	// Phrase is the keyword in the engine's notation (e.g. pinyin).
	Phrase string `yaml:"phrase"`

	// Threshold is the detection probability threshold in (0, 1].
	Threshold float64 `yaml:"threshold"`
}

// CameraConfig configures frame capture.
type CameraConfig struct {
	// Width and Height of the captured frame in pixels.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// SnapshotPath is where the capture command writes the frame.
	SnapshotPath string `yaml:"snapshot_path"`

	// CaptureCommand is the argv of the external capture command.
	CaptureCommand []string `yaml:"capture_command"`
}

// ClassifierConfig configures the remote classification service.
type ClassifierConfig struct {
	// Endpoint is the classification URL (POST multipart image).
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds one classification request. Defaults to 15 s.
	Timeout Duration `yaml:"timeout"`
}

// CategoryConfig maps one category label to announcement outputs. At least
// one of Asset and PhraseID must be set.
type CategoryConfig struct {
	// Asset is an optional mono/16 kHz/16-bit WAV played locally.
	Asset string `yaml:"asset"`

	// PhraseID is the actuator announcement phrase id (1–255) spoken
	// when no asset is available.
	PhraseID int `yaml:"phrase_id"`
}
