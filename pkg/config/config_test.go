package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"centiloid/internal/models"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Processing.NaNPolicy != "zero" {
		t.Errorf("Expected default NaN policy zero, got %q", cfg.Processing.NaNPolicy)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "centiloid.yaml")
	yamlData := `processing:
  numCores: 3
  nanPolicy: exclude
masks:
  roi: /masks/ctx.nii
  reference: /masks/pons.nii
cohorts:
  - name: YC
    role: anchor_low
    dir: /data/yc
  - name: AD
    role: anchor_high
    dir: /data/ad
    prefix: wr
  - name: clinic
    role: unlabeled
    dir: /data/clinic
validation:
  referenceTable: /data/table.csv
`
	if err := os.WriteFile(path, []byte(yamlData), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Processing.NumCores != 3 || cfg.Processing.NaNPolicy != "exclude" {
		t.Errorf("Unexpected processing section %+v", cfg.Processing)
	}
	if cfg.Masks.Reference != "/masks/pons.nii" {
		t.Errorf("Expected reference mask /masks/pons.nii, got %q", cfg.Masks.Reference)
	}
	if len(cfg.Cohorts) != 3 {
		t.Fatalf("Expected 3 cohorts, got %d", len(cfg.Cohorts))
	}
	if cfg.Cohorts[1].Prefix != "wr" || cfg.Cohorts[2].Role != models.RoleUnlabeled {
		t.Errorf("Unexpected cohorts %+v", cfg.Cohorts)
	}
	if cfg.Validation.ReferenceTable != "/data/table.csv" {
		t.Errorf("Unexpected reference table %q", cfg.Validation.ReferenceTable)
	}
	// Untouched sections keep their defaults
	if cfg.Output.ResultsFile != "centiloid_results.csv" {
		t.Errorf("Expected default results file, got %q", cfg.Output.ResultsFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadConfigMalformedNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("masks: [roi\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("Expected error for malformed YAML")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("Expected error to name %s, got %v", path, err)
	}
}

func TestLoadConfigUnreadable(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(dir)
	if err == nil {
		t.Fatal("Expected error when the config path is a directory")
	}
	if !strings.Contains(err.Error(), dir) {
		t.Errorf("Expected error to name %s, got %v", dir, err)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "centiloid.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Cohorts) != 2 || cfg.Cohorts[0].Role != models.RoleAnchorLow {
		t.Errorf("Unexpected cohorts after reload %+v", cfg.Cohorts)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing roi", func(c *Config) { c.Masks.ROI = "" }},
		{"bad nan policy", func(c *Config) { c.Processing.NaNPolicy = "ignore" }},
		{"unknown role", func(c *Config) { c.Cohorts[0].Role = "baseline" }},
		{"missing dir", func(c *Config) { c.Cohorts[1].Dir = "" }},
		{"two high anchors", func(c *Config) { c.Cohorts[0].Role = models.RoleAnchorHigh }},
		{"no cohorts", func(c *Config) { c.Cohorts = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
