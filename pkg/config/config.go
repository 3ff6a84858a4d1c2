// Package config provides configuration loading and management for centiloid.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"centiloid/internal/models"
	"centiloid/pkg/niftiio"
	"centiloid/pkg/suvr"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// CohortConfig describes one directory of subject volumes.
type CohortConfig struct {
	// Name labels the cohort in results, e.g. "YC" or "AD"
	Name string `yaml:"name"`

	// Role is anchor_low, anchor_high or unlabeled
	Role models.Role `yaml:"role"`

	// Dir is the directory holding the cohort's normalized PET images
	Dir string `yaml:"dir"`

	// Prefix selects files by the start of their name. Empty uses the
	// default spatially-normalized marker "w".
	Prefix string `yaml:"prefix,omitempty"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many subjects are processed concurrently
		NumCores int `yaml:"numCores"`

		// NaNPolicy is "zero" (NaN voxels count as 0 intensity) or
		// "exclude" (NaN voxels are left out of the mean)
		NaNPolicy string `yaml:"nanPolicy"`
	} `yaml:"processing"`

	// Mask files on the same grid as the subject volumes
	Masks struct {
		// ROI is the target region, e.g. the GAAIN cortical VOI
		ROI string `yaml:"roi"`

		// Reference is the reference region, e.g. whole cerebellum
		Reference string `yaml:"reference"`
	} `yaml:"masks"`

	// Cohorts are processed in the listed order
	Cohorts []CohortConfig `yaml:"cohorts"`

	// Validation parameters
	Validation struct {
		// ReferenceTable is an optional CSV/TSV/XLS file with published
		// SUVR and CL values. Empty disables validation.
		ReferenceTable string `yaml:"referenceTable"`
	} `yaml:"validation"`

	// Output parameters
	Output struct {
		// ResultsFile is where calibrated values are written as CSV
		ResultsFile string `yaml:"resultsFile"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.NaNPolicy = suvr.NaNAsZero.String()

	// Default cohort layout of the GAAIN PiB calibration dataset
	cfg.Cohorts = []CohortConfig{
		{Name: "YC", Role: models.RoleAnchorLow, Dir: "YC-0_PET_5070/nifti", Prefix: niftiio.DefaultPrefix},
		{Name: "AD", Role: models.RoleAnchorHigh, Dir: "AD-100_PET_5070/nifti", Prefix: niftiio.DefaultPrefix},
	}

	cfg.Masks.ROI = "Centiloid_Std_VOI/nifti/2mm/voi_ctx_2mm.nii"
	cfg.Masks.Reference = "Centiloid_Std_VOI/nifti/2mm/voi_WhlCbl_2mm.nii"

	// Set default output parameters
	cfg.Output.ResultsFile = "centiloid_results.csv"
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig reads a calibration config, layering it over DefaultConfig so
// that omitted keys keep their defaults. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s is not valid YAML: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating parent directories as needed.
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("config: cannot create directory for %s: %w", configPath, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: cannot encode calibration settings: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("config: cannot write %s: %w", configPath, err)
	}

	return nil
}

// CreateDefaultConfigFile writes the GAAIN-layout defaults to configPath as a
// starting point for -init-config.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks that the configuration describes a runnable calibration:
// both masks are set, the NaN policy is known, and there is exactly one
// cohort per anchor role.
func (c *Config) Validate() error {
	if c.Masks.ROI == "" || c.Masks.Reference == "" {
		return fmt.Errorf("%w: both masks.roi and masks.reference are required", ErrInvalidConfig)
	}
	if _, err := suvr.ParseNaNPolicy(c.Processing.NaNPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	anchors := make(map[models.Role]int)
	for i, cohort := range c.Cohorts {
		if !cohort.Role.Valid() {
			return fmt.Errorf("%w: cohort %d has unknown role %q", ErrInvalidConfig, i, cohort.Role)
		}
		if cohort.Dir == "" {
			return fmt.Errorf("%w: cohort %d has no dir", ErrInvalidConfig, i)
		}
		anchors[cohort.Role]++
	}
	for _, role := range []models.Role{models.RoleAnchorLow, models.RoleAnchorHigh} {
		if anchors[role] != 1 {
			return fmt.Errorf("%w: need exactly one %s cohort, got %d", ErrInvalidConfig, role, anchors[role])
		}
	}

	return nil
}
