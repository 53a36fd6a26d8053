package core

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/EmundoT/vendor-qc/internal/testutil"
)

func TestLoadSettings_Defaults(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "settings.yml", "{}\n")

	s, err := LoadSettings(path, nil)
	assertNoError(t, err, "load")

	d := DefaultSettings()
	assertEqual(t, s.Checkpoints.PackageReadiness.OffsetDays, d.Checkpoints.PackageReadiness.OffsetDays, "offset days")
	assertEqual(t, s.Checkpoints.PackageReadiness.TargetPathTemplate, DefaultTargetPathTemplate, "template")
	assertEqual(t, s.Checkpoints.FinalReport.WindowDays, DefaultFinalReportWindow, "window days")
	assertEqual(t, s.Schedule.LeadBusinessDays, DefaultLeadBusinessDays, "lead days")
	assertEqual(t, s.Input.WindowWeeks, DefaultInputWindowWeeks, "window weeks")
	assertEqual(t, s.Notify.Sink, NotifySinkStdout, "sink")
	assertEqual(t, s.Notify.NATS.SubjectPrefix, DefaultNATSSubjectPrefix, "subject prefix")
	assertEqual(t, s.Log.Format, LogFormatText, "log format")
}

func TestLoadSettings_FileEnvAndFlags(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "settings.yml", `
workers: 4
checkpoints:
  package_readiness:
    offset_days: 7
  final_report:
    window_days: 10
schedule:
  holidays: ["2025-12-25", "2025-12-26"]
notify:
  sink: redis
  redis:
    url: redis://localhost:6379/0
`)
	t.Setenv("VENDORQC_CHECKPOINTS_FINAL_REPORT_WINDOW_DAYS", "3")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 0, "")
	if err := flags.Parse([]string{"--workers=2"}); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path, func(v *viper.Viper) error {
		return v.BindPFlag("workers", flags.Lookup("workers"))
	})
	assertNoError(t, err, "load")

	assertEqual(t, s.Workers, 2, "flag overrides file")
	assertEqual(t, s.Checkpoints.PackageReadiness.OffsetDays, 7, "file value")
	assertEqual(t, s.Checkpoints.FinalReport.WindowDays, 3, "env overrides file")
	assertEqual(t, len(s.Schedule.Holidays), 2, "holidays")
	assertEqual(t, s.Notify.Sink, NotifySinkRedis, "sink")
	assertEqual(t, s.Notify.Redis.Stream, DefaultRedisStream, "default stream kept")
}

func TestLoadSettings_MissingDefaultFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	s, err := LoadSettings("", nil)
	assertNoError(t, err, "load without file")
	assertEqual(t, s.Notify.Sink, NotifySinkStdout, "default sink")
}

func TestLoadSettings_ExplicitMissingFileFails(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yml"), nil); err == nil {
		t.Error("an explicit settings path that does not exist should fail")
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"defaults", func(*Settings) {}, ""},
		{"too many workers", func(s *Settings) { s.Workers = 65 }, "workers must be between 0 and 64"},
		{"negative offset", func(s *Settings) { s.Checkpoints.PackageReadiness.OffsetDays = -1 }, "offset_days out of range"},
		{"empty template", func(s *Settings) { s.Checkpoints.PackageReadiness.TargetPathTemplate = "" }, "target_path_template must not be empty"},
		{"nats without url", func(s *Settings) { s.Notify.Sink = NotifySinkNATS }, "notify.nats.url is required"},
		{"redis without url", func(s *Settings) { s.Notify.Sink = NotifySinkRedis }, "notify.redis.url is required"},
		{"unknown sink", func(s *Settings) { s.Notify.Sink = "email" }, "notify.sink must be one of"},
		{"bad log level", func(s *Settings) { s.Log.Level = "chatty" }, "unknown log level"},
		{"bad log format", func(s *Settings) { s.Log.Format = "xml" }, "log.format must be text or json"},
		{"zero entry size", func(s *Settings) { s.Archive.MaxEntryBytes = 0 }, "archive.max_entry_bytes must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == "" {
				assertNoError(t, err, "validate")
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "json")
	assertNoError(t, err, "json logger")

	logger.Info("hidden")
	logger.Warn("shown", "tool", "T1")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, `"tool":"T1"`) {
		t.Errorf("expected JSON attribute, got %s", out)
	}

	if _, err := NewLogger(&buf, "info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := NewLogger(&buf, "loud", "text"); err == nil {
		t.Error("expected error for unknown level")
	}

	lvl, err := ParseLogLevel("")
	assertNoError(t, err, "empty level")
	assertEqual(t, lvl, slog.LevelInfo, "empty level defaults to info")
}
