package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Terraform.Bin != "terraform" {
		t.Errorf("expected terraform bin, got %s", cfg.Terraform.Bin)
	}
	if cfg.Terraform.VarFile != "terraform.tfvars" {
		t.Errorf("expected terraform.tfvars, got %s", cfg.Terraform.VarFile)
	}
	if cfg.Terraform.ApplyTimeout != 20*time.Minute {
		t.Errorf("expected 20m apply timeout, got %s", cfg.Terraform.ApplyTimeout)
	}
	if cfg.AWS.Bin != "aws" {
		t.Errorf("expected aws bin, got %s", cfg.AWS.Bin)
	}
	if !cfg.Database.Enabled {
		t.Error("expected database enabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Terraform.Bin != "terraform" {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
terraform:
  bin: /opt/terraform/bin/terraform
  var_file: terraform.tfvars
  apply_timeout: 45m
database:
  enabled: false
telemetry:
  logging:
    level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Terraform.Bin != "/opt/terraform/bin/terraform" {
		t.Errorf("expected overlaid bin, got %s", cfg.Terraform.Bin)
	}
	if cfg.Terraform.ApplyTimeout != 45*time.Minute {
		t.Errorf("expected 45m, got %s", cfg.Terraform.ApplyTimeout)
	}
	if cfg.Database.Enabled {
		t.Error("expected database disabled")
	}
	// Untouched fields keep their defaults.
	if cfg.AWS.Bin != "aws" {
		t.Errorf("expected default aws bin, got %s", cfg.AWS.Bin)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("terraform: ["), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"empty terraform bin", func(cfg *Config) { cfg.Terraform.Bin = "" }},
		{"zero apply timeout", func(cfg *Config) { cfg.Terraform.ApplyTimeout = 0 }},
		{"empty aws bin", func(cfg *Config) { cfg.AWS.Bin = "" }},
		{"db enabled without path", func(cfg *Config) {
			cfg.Database.Enabled = true
			cfg.Database.Path = ""
		}},
		{"bad log level", func(cfg *Config) { cfg.Telemetry.Logging.Level = "whisper" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
