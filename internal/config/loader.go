package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [LoadFromReader] when the corresponding field is unset.
const (
	DefaultCooldown        = 3 * time.Second
	DefaultChannelCapacity = 10
	DefaultSampleRate      = 16000
	DefaultVolume          = 85
	DefaultTimeout         = 15 * time.Second
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = Duration(DefaultCooldown)
	}
	if cfg.ChannelCapacity == 0 {
		cfg.ChannelCapacity = DefaultChannelCapacity
	}
	if cfg.KWS.SampleRate == 0 {
		cfg.KWS.SampleRate = DefaultSampleRate
	}
	if cfg.Volume == nil {
		v := DefaultVolume
		cfg.Volume = &v
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = Duration(DefaultTimeout)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Bus.ID < 0 {
		errs = append(errs, fmt.Errorf("bus.id %d is negative", cfg.Bus.ID))
	}
	if cfg.Bus.Address == 0 || cfg.Bus.Address > 0x7f {
		errs = append(errs, fmt.Errorf("bus.address %#x is not a valid 7-bit address", cfg.Bus.Address))
	}

	if cfg.KWS.ModelPath == "" {
		errs = append(errs, errors.New("kws.model_path is required"))
	}
	if cfg.KWS.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("kws.sample_rate %d must be positive", cfg.KWS.SampleRate))
	}
	if len(cfg.KWS.EngineCommand) == 0 {
		errs = append(errs, errors.New("kws.engine_command is required"))
	}
	if len(cfg.KWS.Keywords) == 0 {
		errs = append(errs, errors.New("kws.keywords must list at least one phrase"))
	}
	for i, kw := range cfg.KWS.Keywords {
		if kw.Phrase == "" {
			errs = append(errs, fmt.Errorf("kws.keywords[%d].phrase is empty", i))
		}
		if kw.Threshold <= 0 || kw.Threshold > 1 {
			errs = append(errs, fmt.Errorf("kws.keywords[%d].threshold %v must be in (0, 1]", i, kw.Threshold))
		}
	}

	if cfg.Cooldown <= 0 {
		errs = append(errs, fmt.Errorf("cooldown %v must be positive", cfg.Cooldown.Std()))
	}
	if cfg.PostTriggerDelay < 0 {
		errs = append(errs, fmt.Errorf("post_trigger_delay %v must not be negative", cfg.PostTriggerDelay.Std()))
	}
	if cfg.ChannelCapacity < 1 {
		errs = append(errs, fmt.Errorf("channel_capacity %d must be at least 1", cfg.ChannelCapacity))
	}
	if cfg.Volume != nil && (*cfg.Volume < 0 || *cfg.Volume > 100) {
		errs = append(errs, fmt.Errorf("volume %d must be in [0, 100]", *cfg.Volume))
	}

	if len(cfg.Camera.CaptureCommand) == 0 {
		errs = append(errs, errors.New("camera.capture_command is required"))
	}
	if cfg.Camera.SnapshotPath == "" {
		errs = append(errs, errors.New("camera.snapshot_path is required"))
	}

	if cfg.Classifier.Endpoint == "" {
		errs = append(errs, errors.New("classifier.endpoint is required"))
	}
	if cfg.Classifier.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("classifier.timeout %v must be positive", cfg.Classifier.Timeout.Std()))
	}

	for label, cat := range cfg.Categories {
		if cat.Asset == "" && cat.PhraseID == 0 {
			errs = append(errs, fmt.Errorf("categories[%q] needs an asset or a phrase_id", label))
		}
		if cat.PhraseID < 0 || cat.PhraseID > 255 {
			errs = append(errs, fmt.Errorf("categories[%q].phrase_id %d must be in [1, 255]", label, cat.PhraseID))
		}
	}

	return errors.Join(errs...)
}
