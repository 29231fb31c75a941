package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Upstream.BaseURL = "https://cms.example.com"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Upstream.AttemptTimeout != 10*time.Second {
		t.Errorf("attempt timeout = %v, want 10s", cfg.Upstream.AttemptTimeout)
	}
	want := []time.Duration{150 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
	if len(cfg.Upstream.RetryDelays) != len(want) {
		t.Fatalf("retry delays = %v, want %v", cfg.Upstream.RetryDelays, want)
	}
	for i := range want {
		if cfg.Upstream.RetryDelays[i] != want[i] {
			t.Errorf("retry delay[%d] = %v, want %v", i, cfg.Upstream.RetryDelays[i], want[i])
		}
	}
	if cfg.Client.Revalidate != 300*time.Second {
		t.Errorf("revalidate = %v, want 300s", cfg.Client.Revalidate)
	}
	if len(cfg.Client.Tags) != 1 || cfg.Client.Tags[0] != "wp" {
		t.Errorf("tags = %v, want [wp]", cfg.Client.Tags)
	}
}

func TestApplyDefaults_PreservesValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.ListenAddress = ":9999"
	cfg.Upstream.RetryDelays = []time.Duration{}
	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != ":9999" {
		t.Errorf("listen address overwritten: %q", cfg.Server.ListenAddress)
	}
	if cfg.Upstream.RetryDelays == nil || len(cfg.Upstream.RetryDelays) != 0 {
		t.Errorf("explicit empty retry delays should be kept, got %v", cfg.Upstream.RetryDelays)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "" },
			wantErr: "upstream.base_url",
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "cms.example.com" },
			wantErr: "upstream.base_url",
		},
		{
			name:    "ftp base url",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "ftp://cms.example.com" },
			wantErr: "scheme must be http or https",
		},
		{
			name:    "username without password",
			mutate:  func(c *Config) { c.Upstream.Username = "editor" },
			wantErr: "upstream.username",
		},
		{
			name:    "negative retry delay",
			mutate:  func(c *Config) { c.Upstream.RetryDelays = []time.Duration{-time.Second} },
			wantErr: "upstream.retry_delays[0]",
		},
		{
			name:    "bogus retryable status",
			mutate:  func(c *Config) { c.Upstream.RetryableStatuses = []int{503, 42} },
			wantErr: "upstream.retryable_statuses[1]",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *Config) { c.Cache.Backend = "redis" },
			wantErr: "cache.backend",
		},
		{
			name: "unknown sqlite driver",
			mutate: func(c *Config) {
				c.Cache.Backend = "sqlite"
				c.Cache.SQLite.Driver = "postgres"
			},
			wantErr: "cache.sqlite.driver",
		},
		{
			name:    "bad prune schedule",
			mutate:  func(c *Config) { c.Cache.PruneSchedule = "every tuesday" },
			wantErr: "cache.prune_schedule",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantErr: "telemetry.logging.level",
		},
		{
			name:    "proxy path without slash",
			mutate:  func(c *Config) { c.Client.ProxyPath = "api/wp" },
			wantErr: "client.proxy_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidationError_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.BaseURL = ""
	cfg.Cache.Backend = "redis"

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("expected 2 field errors, got %d", len(verr.Errors))
	}
	if !strings.Contains(err.Error(), "2 errors") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
