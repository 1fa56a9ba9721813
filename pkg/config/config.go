// Package config loads and validates the StackPilot configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// Config is the top-level StackPilot configuration.
type Config struct {
	// Terraform configures the provisioning tool invocation.
	Terraform TerraformConfig `yaml:"terraform"`

	// AWS configures the artifact sync and cache invalidation CLI.
	AWS AWSConfig `yaml:"aws"`

	// Database configures deployment history persistence.
	Database DatabaseConfig `yaml:"database"`

	// Telemetry configures logging, metrics, and tracing.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// TerraformConfig configures the provisioning tool.
type TerraformConfig struct {
	// Bin is the provisioning tool executable.
	Bin string `yaml:"bin" validate:"required"`

	// VarFile is the variables file name inside each session workspace.
	VarFile string `yaml:"var_file" validate:"required"`

	// ApplyTimeout bounds the apply phase per session.
	ApplyTimeout time.Duration `yaml:"apply_timeout" validate:"gt=0"`
}

// AWSConfig configures the aws CLI used for publish and invalidation.
type AWSConfig struct {
	// Bin is the aws executable.
	Bin string `yaml:"bin" validate:"required"`
}

// DatabaseConfig configures the deployment history store.
type DatabaseConfig struct {
	// Enabled controls whether deployment records are persisted.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	Path string `yaml:"path" validate:"required_if=Enabled true"`
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	return &Config{
		Terraform: TerraformConfig{
			Bin:          "terraform",
			VarFile:      "terraform.tfvars",
			ApplyTimeout: 20 * time.Minute,
		},
		AWS: AWSConfig{
			Bin: "aws",
		},
		Database: DatabaseConfig{
			Enabled: true,
			Path:    "stackpilot.db",
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Load reads the configuration file at path, layered over defaults. An
// empty path returns the defaults unchanged. The result is validated
// before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing or invalid fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return c.Telemetry.Validate()
}
