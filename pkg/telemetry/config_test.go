package telemetry

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate, got %v", err)
	}
	if cfg.Enabled {
		t.Errorf("Telemetry should be disabled by default")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"empty service version", func(c *Config) { c.ServiceVersion = "" }},
		{"negative sample rate", func(c *Config) { c.SampleRate = -0.1 }},
		{"sample rate above one", func(c *Config) { c.SampleRate = 1.5 }},
		{"zero export interval", func(c *Config) { c.ExportInterval = 0 }},
		{"zero batch timeout", func(c *Config) { c.BatchTimeout = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected a validation error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BLOCKFS_TELEMETRY_SERVICE_NAME", "blockfs-test")
	t.Setenv("BLOCKFS_TELEMETRY_ENABLED", "true")
	t.Setenv("BLOCKFS_TELEMETRY_SAMPLE_RATE", "0.25")
	t.Setenv("BLOCKFS_TELEMETRY_EXPORTERS", "stdout, stdout")
	t.Setenv("BLOCKFS_TELEMETRY_EXPORT_INTERVAL", "10s")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.ServiceName != "blockfs-test" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if !cfg.Enabled {
		t.Errorf("Enabled should be true")
	}
	if cfg.SampleRate != 0.25 {
		t.Errorf("SampleRate = %f", cfg.SampleRate)
	}
	if len(cfg.Exporters) != 2 || cfg.Exporters[1] != "stdout" {
		t.Errorf("Exporters = %v, expected trimmed names", cfg.Exporters)
	}
	if cfg.ExportInterval != 10*time.Second {
		t.Errorf("ExportInterval = %s", cfg.ExportInterval)
	}
}

func TestLoadFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("BLOCKFS_TELEMETRY_ENABLED", "not-a-bool")
	t.Setenv("BLOCKFS_TELEMETRY_SAMPLE_RATE", "fast")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if cfg.Enabled {
		t.Errorf("Malformed BLOCKFS_TELEMETRY_ENABLED should be ignored")
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("Malformed sample rate should be ignored, got %f", cfg.SampleRate)
	}
}
