package core

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/EmundoT/vendor-qc/internal/archive"
)

// settingsName is the runtime settings file name without extension.
const settingsName = ".vendor-qc"

// settingsType is the settings file format.
const settingsType = "yaml"

// EnvPrefix is the environment variable prefix for vendor-qc settings.
const EnvPrefix = "VENDORQC"

// Default checkpoint thresholds and paths.
const (
	DefaultReadinessOffsetDays = 3
	DefaultTargetPathTemplate  = "{target_root}/{tool_column}"
	DefaultFinalReportWindow   = 5
	DefaultLeadBusinessDays    = 15
	DefaultInputWindowWeeks    = 3
	DefaultNotifySink          = NotifySinkStdout
	DefaultNATSSubjectPrefix   = "vendorqc.failures"
	DefaultRedisStream         = "vendorqc:failures"
	DefaultMetricsNamespace    = "vendorqc"
)

// Notification sink names for notify.sink.
const (
	NotifySinkStdout = "stdout"
	NotifySinkNATS   = "nats"
	NotifySinkRedis  = "redis"
	NotifySinkNone   = "none"
)

const (
	maxConfiguredWorkers       = 64
	maxConfiguredThresholdDays = 3650
)

// Settings are the runtime knobs of vendor-qc, separate from the vendor policy document.
type Settings struct {
	Workers     int                `mapstructure:"workers"`
	Checkpoints CheckpointSettings `mapstructure:"checkpoints"`
	Archive     ArchiveSettings    `mapstructure:"archive"`
	Schedule    ScheduleSettings   `mapstructure:"schedule"`
	Input       InputSettings      `mapstructure:"input"`
	Notify      NotifySettings     `mapstructure:"notify"`
	Log         LogSettings        `mapstructure:"log"`
	Metrics     MetricsSettings    `mapstructure:"metrics"`
}

// CheckpointSettings holds per-checkpoint thresholds.
type CheckpointSettings struct {
	PackageReadiness PackageReadinessSettings `mapstructure:"package_readiness"`
	FinalReport      FinalReportSettings      `mapstructure:"final_report"`
}

// PackageReadinessSettings configures the Package Readiness checkpoint.
type PackageReadinessSettings struct {
	OffsetDays         int    `mapstructure:"offset_days"`
	TargetPathTemplate string `mapstructure:"target_path_template"`
}

// FinalReportSettings configures the Final Report checkpoint.
type FinalReportSettings struct {
	WindowDays int `mapstructure:"window_days"`
}

// ArchiveSettings bounds archive reads.
type ArchiveSettings struct {
	MaxEntryBytes int64 `mapstructure:"max_entry_bytes"`
}

// ScheduleSettings configures Project Start Date derivation.
type ScheduleSettings struct {
	LeadBusinessDays int      `mapstructure:"lead_business_days"`
	Holidays         []string `mapstructure:"holidays"`
	HolidayFile      string   `mapstructure:"holiday_file"`
}

// InputSettings configures row filtering.
type InputSettings struct {
	WindowWeeks int `mapstructure:"window_weeks"`
}

// NotifySettings selects and configures the notification sink.
type NotifySettings struct {
	Sink  string        `mapstructure:"sink"`
	NATS  NATSSettings  `mapstructure:"nats"`
	Redis RedisSettings `mapstructure:"redis"`
}

// NATSSettings configures the NATS sink.
type NATSSettings struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// RedisSettings configures the Redis stream sink.
type RedisSettings struct {
	URL    string `mapstructure:"url"`
	Stream string `mapstructure:"stream"`
}

// LogSettings configures the structured logger.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsSettings configures metrics export.
type MetricsSettings struct {
	Textfile string `mapstructure:"textfile"`
}

// LoadSettings loads settings from file, env vars, and defaults.
// If settingsPath is non-empty, it is used as the explicit file path.
// Otherwise, the file is searched in CWD and $HOME.
// Missing settings file is not an error; defaults are used.
// bind, when non-nil, can attach command-line flags before values are resolved.
func LoadSettings(settingsPath string, bind func(*viper.Viper) error) (*Settings, error) {
	v := viper.New()

	applySettingsDefaults(v)

	v.SetConfigType(settingsType)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if settingsPath != "" {
		v.SetConfigFile(settingsPath)
	} else {
		v.SetConfigName(settingsName)
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	if bind != nil {
		if err := bind(v); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return &s, nil
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() *Settings {
	return &Settings{
		Checkpoints: CheckpointSettings{
			PackageReadiness: PackageReadinessSettings{
				OffsetDays:         DefaultReadinessOffsetDays,
				TargetPathTemplate: DefaultTargetPathTemplate,
			},
			FinalReport: FinalReportSettings{WindowDays: DefaultFinalReportWindow},
		},
		Archive:  ArchiveSettings{MaxEntryBytes: archive.DefaultMaxEntrySize},
		Schedule: ScheduleSettings{LeadBusinessDays: DefaultLeadBusinessDays, Holidays: []string{}},
		Input:    InputSettings{WindowWeeks: DefaultInputWindowWeeks},
		Notify: NotifySettings{
			Sink:  DefaultNotifySink,
			NATS:  NATSSettings{SubjectPrefix: DefaultNATSSubjectPrefix},
			Redis: RedisSettings{Stream: DefaultRedisStream},
		},
		Log: LogSettings{Level: "info", Format: LogFormatText},
	}
}

func applySettingsDefaults(v *viper.Viper) {
	d := DefaultSettings()

	v.SetDefault("workers", d.Workers)

	v.SetDefault("checkpoints.package_readiness.offset_days", d.Checkpoints.PackageReadiness.OffsetDays)
	v.SetDefault("checkpoints.package_readiness.target_path_template", d.Checkpoints.PackageReadiness.TargetPathTemplate)
	v.SetDefault("checkpoints.final_report.window_days", d.Checkpoints.FinalReport.WindowDays)

	v.SetDefault("archive.max_entry_bytes", d.Archive.MaxEntryBytes)

	v.SetDefault("schedule.lead_business_days", d.Schedule.LeadBusinessDays)
	v.SetDefault("schedule.holidays", d.Schedule.Holidays)
	v.SetDefault("schedule.holiday_file", "")

	v.SetDefault("input.window_weeks", d.Input.WindowWeeks)

	v.SetDefault("notify.sink", d.Notify.Sink)
	v.SetDefault("notify.nats.url", "")
	v.SetDefault("notify.nats.subject_prefix", d.Notify.NATS.SubjectPrefix)
	v.SetDefault("notify.redis.url", "")
	v.SetDefault("notify.redis.stream", d.Notify.Redis.Stream)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("metrics.textfile", "")
}

// Validate checks ranges and cross-field requirements.
func (s *Settings) Validate() error {
	var errs []error

	if s.Workers < 0 || s.Workers > maxConfiguredWorkers {
		errs = append(errs, fmt.Errorf("workers must be between 0 and %d, got %d", maxConfiguredWorkers, s.Workers))
	}
	if d := s.Checkpoints.PackageReadiness.OffsetDays; d < 0 || d > maxConfiguredThresholdDays {
		errs = append(errs, fmt.Errorf("checkpoints.package_readiness.offset_days out of range: %d", d))
	}
	if s.Checkpoints.PackageReadiness.TargetPathTemplate == "" {
		errs = append(errs, errors.New("checkpoints.package_readiness.target_path_template must not be empty"))
	}
	if d := s.Checkpoints.FinalReport.WindowDays; d < 0 || d > maxConfiguredThresholdDays {
		errs = append(errs, fmt.Errorf("checkpoints.final_report.window_days out of range: %d", d))
	}
	if s.Archive.MaxEntryBytes <= 0 {
		errs = append(errs, fmt.Errorf("archive.max_entry_bytes must be positive, got %d", s.Archive.MaxEntryBytes))
	}
	if s.Schedule.LeadBusinessDays < 0 {
		errs = append(errs, fmt.Errorf("schedule.lead_business_days must not be negative, got %d", s.Schedule.LeadBusinessDays))
	}
	if s.Input.WindowWeeks < 0 {
		errs = append(errs, fmt.Errorf("input.window_weeks must not be negative, got %d", s.Input.WindowWeeks))
	}

	switch strings.ToLower(s.Notify.Sink) {
	case NotifySinkStdout, NotifySinkNone:
	case NotifySinkNATS:
		if s.Notify.NATS.URL == "" {
			errs = append(errs, errors.New("notify.nats.url is required when notify.sink is nats"))
		}
	case NotifySinkRedis:
		if s.Notify.Redis.URL == "" {
			errs = append(errs, errors.New("notify.redis.url is required when notify.sink is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("notify.sink must be one of stdout, nats, redis, none; got %q", s.Notify.Sink))
	}

	if _, err := ParseLogLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(s.Log.Format); f != LogFormatText && f != LogFormatJSON {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", s.Log.Format))
	}

	return errors.Join(errs...)
}
