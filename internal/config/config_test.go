package config

import (
	"strings"
	"testing"
	"time"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PARTICIPANTS", "Anna,Ben,Carla")
	t.Setenv("SQLITE_DB_PATH", "./ricevute.db")
}

func TestLoadDefaults(t *testing.T) {
	validEnv(t)
	cfg := Load()

	if cfg.Port != "8082" {
		t.Errorf("Port = %s, want 8082", cfg.Port)
	}
	if cfg.DefaultTaxRate != 13 {
		t.Errorf("DefaultTaxRate = %v, want 13", cfg.DefaultTaxRate)
	}
	if len(cfg.Participants) != 3 || cfg.Participants[0] != "Anna" {
		t.Errorf("Participants = %v", cfg.Participants)
	}
	if cfg.ExportBatchSize != 10 {
		t.Errorf("ExportBatchSize = %d, want 10", cfg.ExportBatchSize)
	}
	if cfg.ExportInterval != 30*time.Second {
		t.Errorf("ExportInterval = %v, want 30s", cfg.ExportInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	validEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DEFAULT_TAX_RATE", "8.875")
	t.Setenv("PARTICIPANTS", " Anna , Ben ")
	t.Setenv("EXPORT_INTERVAL", "2m")
	t.Setenv("LOG_FORMAT", "pretty")

	cfg := Load()
	if cfg.Port != "9000" {
		t.Errorf("Port = %s", cfg.Port)
	}
	if cfg.DefaultTaxRate != 8.875 {
		t.Errorf("DefaultTaxRate = %v", cfg.DefaultTaxRate)
	}
	if len(cfg.Participants) != 2 || cfg.Participants[1] != "Ben" {
		t.Errorf("Participants = %v, want trimmed two-name roster", cfg.Participants)
	}
	if cfg.ExportInterval != 2*time.Minute {
		t.Errorf("ExportInterval = %v", cfg.ExportInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config should validate: %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Port = "http" }, "invalid port"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "invalid port"},
		{"empty roster", func(c *Config) { c.Participants = nil }, "PARTICIPANTS cannot be empty"},
		{"duplicate participant", func(c *Config) { c.Participants = []string{"Anna", "Anna"} }, "duplicate participant"},
		{"negative tax rate", func(c *Config) { c.DefaultTaxRate = -1 }, "invalid default tax rate"},
		{"tax rate over 100", func(c *Config) { c.DefaultTaxRate = 150 }, "invalid default tax rate"},
		{"empty db path", func(c *Config) { c.SQLiteDBPath = "" }, "database path cannot be empty"},
		{"bad amqp scheme", func(c *Config) { c.AMQPURL = "http://localhost" }, "invalid AMQP URL scheme"},
		{"empty amqp queue", func(c *Config) { c.AMQPQueue = "" }, "queue name cannot be empty"},
		{"bad ocr scheme", func(c *Config) { c.OCRURL = "ftp://ocr" }, "invalid OCR URL scheme"},
		{"sheet name missing", func(c *Config) { c.GoogleSpreadsheetID = "x"; c.GoogleSheetName = "" }, "Sheet name is required"},
		{"batch size zero", func(c *Config) { c.ExportBatchSize = 0 }, "export batch size"},
		{"interval too small", func(c *Config) { c.ExportInterval = time.Millisecond }, "export interval"},
		{"bad log format", func(c *Config) { c.LogFormat = "json5" }, "invalid log format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validEnv(t)
			cfg := Load()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	validEnv(t)
	cfg := Load()
	cfg.Port = "bad"
	cfg.Participants = nil
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "invalid port") || !strings.Contains(err.Error(), "PARTICIPANTS") {
		t.Fatalf("expected both problems reported, got %q", err)
	}
}
