package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for config values that cannot be used
var ErrInvalidConfig = errors.New("invalid config")

// ConfigFile represents the YAML configuration
type ConfigFile struct {
	OutputDir      string      `yaml:"output_dir"`
	LogFile        string      `yaml:"log_file"`
	LogLevel       string      `yaml:"log_level"`
	TopN           int         `yaml:"top_n"`
	Workers        int         `yaml:"workers"`
	AperturePolicy string      `yaml:"aperture_policy"`
	Cache          *bool       `yaml:"cache,omitempty"`
	ChartDPI       int         `yaml:"chart_dpi"`
	Charts         []ChartSpec `yaml:"charts,omitempty"`
}

// getConfigPath returns the path to the config file
func getConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".photo-report.yaml"
	}
	return filepath.Join(home, ".photo-report.yaml")
}

// defaultConfig returns the built-in configuration
func defaultConfig() *Config {
	return &Config{
		OutputDir:      "output",
		LogFile:        filepath.Join("logs", "photo-report.log"),
		LogLevel:       "info",
		TopN:           DefaultTopN,
		Workers:        getDefaultWorkers(),
		AperturePolicy: PolicyAbort,
		UseCache:       true,
		ChartDPI:       DefaultChartDPI,
		Charts:         DefaultCharts,
	}
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if file.OutputDir != "" {
		cfg.OutputDir = file.OutputDir
	}
	if file.LogFile != "" {
		cfg.LogFile = file.LogFile
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.TopN != 0 {
		cfg.TopN = file.TopN
	}
	if file.Workers != 0 {
		cfg.Workers = file.Workers
	}
	if file.AperturePolicy != "" {
		cfg.AperturePolicy = file.AperturePolicy
	}
	if file.Cache != nil {
		cfg.UseCache = *file.Cache
	}
	if file.ChartDPI != 0 {
		cfg.ChartDPI = file.ChartDPI
	}
	if len(file.Charts) > 0 {
		cfg.Charts = file.Charts
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// validateConfig rejects values the pipeline cannot act on
func validateConfig(cfg *Config) error {
	switch cfg.AperturePolicy {
	case PolicyAbort, PolicySkip:
	default:
		return fmt.Errorf("%w: aperture_policy %q (want %q or %q)", ErrInvalidConfig, cfg.AperturePolicy, PolicyAbort, PolicySkip)
	}
	if cfg.TopN < 1 {
		return fmt.Errorf("%w: top_n must be at least 1", ErrInvalidConfig)
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	}
	for i, spec := range cfg.Charts {
		switch spec.Kind {
		case ChartScatter:
		case ChartBar, ChartPie:
			if _, ok := LookupRule(spec.Rule); !ok {
				return fmt.Errorf("%w: chart %d has unknown rule %q", ErrInvalidConfig, i+1, spec.Rule)
			}
		default:
			return fmt.Errorf("%w: chart %d has unknown kind %q", ErrInvalidConfig, i+1, spec.Kind)
		}
	}
	return nil
}

// saveConfig writes cfg to path as YAML
func saveConfig(path string, cfg *Config) error {
	useCache := cfg.UseCache
	file := ConfigFile{
		OutputDir:      cfg.OutputDir,
		LogFile:        cfg.LogFile,
		LogLevel:       cfg.LogLevel,
		TopN:           cfg.TopN,
		Workers:        cfg.Workers,
		AperturePolicy: cfg.AperturePolicy,
		Cache:          &useCache,
		ChartDPI:       cfg.ChartDPI,
		Charts:         cfg.Charts,
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// getDefaultWorkers returns recommended worker count
func getDefaultWorkers() int {
	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	return workers
}
