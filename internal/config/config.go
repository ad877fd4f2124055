package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dynamic_power/internal/models"

	"github.com/spf13/viper"
)

// DefaultPath is read when --config is not given.
const DefaultPath = "/etc/dynamic_power.yaml"

const (
	defaultThresholdLow  = 1.0
	defaultThresholdHigh = 2.0
	defaultDBPath        = "/var/lib/dynamic_power/state.db"
)

var (
	ErrInvalidThresholds = errors.New("invalid thresholds")
	ErrUnknownKnob       = errors.New("unknown knob")
	ErrEmptyPath         = errors.New("empty control file path")
	ErrNegativeGrace     = errors.New("grace_period must be >= 0")
)

// LoadError means the file could not be turned into a usable Settings.
// The caller keeps whatever it loaded before.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("load config %q: %v", e.Path, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// HTTPSettings configures the optional local control API.
type HTTPSettings struct {
	Listen    string `mapstructure:"listen"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DaemonSettings are read at start-up only. A reload never changes them.
type DaemonSettings struct {
	LogLevel         string       `mapstructure:"log_level"`
	DBPath           string       `mapstructure:"db_path"`
	RestoreOverrides bool         `mapstructure:"restore_overrides"`
	HTTP             HTTPSettings `mapstructure:"http"`
}

// Settings is the validated content of the configuration file.
type Settings struct {
	Path        string
	Catalog     *models.Catalog
	GracePeriod time.Duration
	Daemon      DaemonSettings
}

type knobConfig struct {
	Path  string   `mapstructure:"path"`
	Modes []string `mapstructure:"modes"`
}

type rootFeatureConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Path         string `mapstructure:"path"`
	ACValue      string `mapstructure:"ac_value"`
	AC           string `mapstructure:"ac"`
	BatteryValue string `mapstructure:"battery_value"`
	Battery      string `mapstructure:"battery"`
}

type fileConfig struct {
	Thresholds  models.Thresholds            `mapstructure:"thresholds"`
	GracePeriod int                          `mapstructure:"grace_period"`
	Hardware    map[string]knobConfig        `mapstructure:"hardware"`
	Profiles    map[string]map[string]string `mapstructure:"profiles"`
	Features    struct {
		Root struct {
			Disclaimer struct {
				Accepted bool `mapstructure:"accepted"`
			} `mapstructure:"disclaimer"`
			Features []rootFeatureConfig `mapstructure:"features"`
		} `mapstructure:"root"`
	} `mapstructure:"features"`
	Daemon DaemonSettings `mapstructure:"daemon"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("thresholds.low", defaultThresholdLow)
	v.SetDefault("thresholds.high", defaultThresholdHigh)
	v.SetDefault("grace_period", 0)
	v.SetDefault("daemon.log_level", "info")
	v.SetDefault("daemon.db_path", defaultDBPath)
	v.SetDefault("daemon.restore_overrides", false)
}

// Load reads and validates the YAML file at path.
// Profile and knob names come back lower-cased.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}

	s, err := fc.toSettings()
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	s.Path = path
	return s, nil
}

func (fc *fileConfig) toSettings() (*Settings, error) {
	t := fc.Thresholds
	if t.Low < 0 || t.High < 0 || t.Low > t.High {
		return nil, fmt.Errorf("%w: low=%v high=%v", ErrInvalidThresholds, t.Low, t.High)
	}
	if fc.GracePeriod < 0 {
		return nil, ErrNegativeGrace
	}

	hw := make(map[models.KnobKind]models.HardwareKnob, len(fc.Hardware))
	for name, kc := range fc.Hardware {
		kind, ok := models.ParseKnobKind(name)
		if !ok {
			return nil, fmt.Errorf("hardware.%s: %w", name, ErrUnknownKnob)
		}
		path := strings.TrimSpace(kc.Path)
		if path == "" {
			return nil, fmt.Errorf("hardware.%s: %w", name, ErrEmptyPath)
		}
		hw[kind] = models.HardwareKnob{Path: path, Modes: trimAll(kc.Modes)}
	}

	profiles := make(map[string]models.ProfileSetting, len(fc.Profiles))
	for name, knobs := range fc.Profiles {
		setting := make(models.ProfileSetting, len(knobs))
		for knob, value := range knobs {
			kind, ok := models.ParseKnobKind(knob)
			if !ok {
				return nil, fmt.Errorf("profiles.%s.%s: %w", name, knob, ErrUnknownKnob)
			}
			setting[kind] = strings.TrimSpace(value)
		}
		profiles[strings.TrimSpace(name)] = setting
	}

	features := models.RootFeatures{DisclaimerAccepted: fc.Features.Root.Disclaimer.Accepted}
	for i, rf := range fc.Features.Root.Features {
		item := models.RootFeature{
			Enabled:      rf.Enabled,
			Path:         strings.TrimSpace(rf.Path),
			ACValue:      firstNonEmpty(rf.ACValue, rf.AC),
			BatteryValue: firstNonEmpty(rf.BatteryValue, rf.Battery),
		}
		if item.Enabled && item.Path == "" {
			return nil, fmt.Errorf("features.root.features[%d]: %w", i, ErrEmptyPath)
		}
		features.Items = append(features.Items, item)
	}

	return &Settings{
		Catalog: &models.Catalog{
			Thresholds: t,
			Profiles:   profiles,
			Hardware:   hw,
			Features:   features,
		},
		GracePeriod: time.Duration(fc.GracePeriod) * time.Second,
		Daemon:      fc.Daemon,
	}, nil
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
