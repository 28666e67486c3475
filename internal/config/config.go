// Package config loads proxygen's configuration file. Every recognized field
// is an explicit struct member; unknown fields are rejected rather than
// silently ignored.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hemantobora/proxygen/internal/models"
)

// Config holds all configuration for proxygen.
type Config struct {
	// StateDir is where the registry and chain documents live.
	StateDir string `yaml:"state_dir"`
	// TerraformDir holds the per-provider Terraform module directories.
	TerraformDir string         `yaml:"terraform_dir"`
	Registry     RegistryConfig `yaml:"registry"`
	Cost         CostConfig     `yaml:"cost"`
	Chains       ChainConfig    `yaml:"chains"`
	Backup       BackupConfig   `yaml:"backup"`
	Providers    ProviderConfig `yaml:"providers"`
}

// RegistryConfig tunes the record store.
type RegistryConfig struct {
	// LockTimeout bounds how long a mutating call waits for the exclusive
	// lock before failing with a lock timeout.
	LockTimeout time.Duration `yaml:"lock_timeout"`
	// StalePendingAge is how old a pending record must be before the sweep
	// on open re-checks it against the provider.
	StalePendingAge time.Duration `yaml:"stale_pending_age"`
}

// CostConfig tunes the cost gate.
type CostConfig struct {
	// WarnThresholds maps provider name to the monthly USD estimate above
	// which a deployment without a budget triggers a confirmation prompt.
	WarnThresholds map[string]float64 `yaml:"warn_thresholds"`
}

// ChainConfig tunes the multi-hop chain builder.
type ChainConfig struct {
	// SubnetPool is the address pool partitioned into per-hop /24 slices.
	SubnetPool string `yaml:"subnet_pool"`
	// BaseListenPort is the port assigned to hop 0; each later hop adds its
	// index.
	BaseListenPort int `yaml:"base_listen_port"`
	// MaxHops caps chain length for tunnel performance reasons.
	MaxHops int `yaml:"max_hops"`
}

// BackupConfig controls the optional remote registry snapshots.
type BackupConfig struct {
	// S3Bucket receives registry snapshots on `proxygen backup --push`.
	S3Bucket string `yaml:"s3_bucket"`
	// AWSProfile is the shared-config profile used for snapshot transfers.
	AWSProfile string `yaml:"aws_profile"`
}

// ProviderConfig holds per-provider defaults.
type ProviderConfig struct {
	// DefaultInstanceTypes maps provider name to the instance type used when
	// deploy is invoked without --instance-type.
	DefaultInstanceTypes map[string]string `yaml:"default_instance_types"`
	// AWSProfile is the shared-config profile for AWS API calls.
	AWSProfile string `yaml:"aws_profile"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".proxygen")
	return &Config{
		StateDir:     filepath.Join(base, "state"),
		TerraformDir: filepath.Join(base, "terraform"),
		Registry: RegistryConfig{
			LockTimeout:     10 * time.Second,
			StalePendingAge: 30 * time.Minute,
		},
		Cost: CostConfig{
			WarnThresholds: map[string]float64{
				string(models.ProviderAWS):          50.00,
				string(models.ProviderAzure):        50.00,
				string(models.ProviderDigitalOcean): 30.00,
				string(models.ProviderHetzner):      20.00,
			},
		},
		Chains: ChainConfig{
			SubnetPool:     "10.100.0.0/16",
			BaseListenPort: 51820,
			MaxHops:        5,
		},
		Providers: ProviderConfig{
			DefaultInstanceTypes: map[string]string{
				string(models.ProviderAWS):          "t3.micro",
				string(models.ProviderAzure):        "Standard_B1s",
				string(models.ProviderDigitalOcean): "s-1vcpu-1gb",
				string(models.ProviderHetzner):      "cx11",
			},
		},
	}
}

// Load reads the configuration file at path, applying defaults for any field
// the file leaves unset. A missing file yields the defaults; a file with
// unrecognized fields is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "proxygen.yaml"
	}
	return filepath.Join(home, ".proxygen", "proxygen.yaml")
}

func (c *Config) validate() error {
	if c.Registry.LockTimeout <= 0 {
		return &models.ValidationError{Field: "registry.lock_timeout", Message: "must be positive"}
	}
	if c.Registry.StalePendingAge <= 0 {
		return &models.ValidationError{Field: "registry.stale_pending_age", Message: "must be positive"}
	}
	if c.Chains.MaxHops < 2 {
		return &models.ValidationError{Field: "chains.max_hops", Message: "must allow at least 2 hops"}
	}
	if c.Chains.BaseListenPort <= 0 || c.Chains.BaseListenPort > 65500 {
		return &models.ValidationError{Field: "chains.base_listen_port", Message: "must be a usable port"}
	}
	for name := range c.Cost.WarnThresholds {
		if _, err := models.ParseProvider(name); err != nil {
			return &models.ValidationError{Field: "cost.warn_thresholds", Message: fmt.Sprintf("unknown provider %q", name)}
		}
	}
	for name := range c.Providers.DefaultInstanceTypes {
		if _, err := models.ParseProvider(name); err != nil {
			return &models.ValidationError{Field: "providers.default_instance_types", Message: fmt.Sprintf("unknown provider %q", name)}
		}
	}
	return nil
}
