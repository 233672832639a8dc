package config

import (
	"encoding/json"
	"os"
)

// Config holds runtime configuration for the visual testing engine. Fields
// may be loaded from a JSON file and overridden by command-line flags.
type Config struct {
	BaselineDir string `json:"baseline_dir"`
	ReportDir   string `json:"report_dir"`
	IndexPath   string `json:"index_path"`

	// Comparison parameters
	SimilarityThreshold float64 `json:"similarity_threshold"`
	TemplateThreshold   float64 `json:"template_threshold"`
	DiffThreshold       int     `json:"diff_threshold"`
	MinDiffArea         int     `json:"min_diff_area"`
	HashSize            int     `json:"hash_size"`
	HashTolerance       int     `json:"hash_tolerance"`

	Debug bool `json:"debug"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		BaselineDir:         "baselines",
		ReportDir:           "reports",
		IndexPath:           "baselines.db",
		SimilarityThreshold: 0.95,
		TemplateThreshold:   0.8,
		DiffThreshold:       30,
		MinDiffArea:         25,
		HashSize:            8,
		HashTolerance:       0,
		Debug:               false,
	}
}

// Validate clamps values to safe ranges.
func (c *Config) Validate() error {
	if c.BaselineDir == "" {
		c.BaselineDir = "baselines"
	}
	if c.ReportDir == "" {
		c.ReportDir = "reports"
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		c.SimilarityThreshold = 0.95
	}
	if c.TemplateThreshold <= 0 || c.TemplateThreshold > 1 {
		c.TemplateThreshold = 0.8
	}
	if c.DiffThreshold <= 0 || c.DiffThreshold > 255 {
		c.DiffThreshold = 30
	}
	if c.MinDiffArea <= 0 {
		c.MinDiffArea = 25
	}
	if c.HashSize <= 0 {
		c.HashSize = 8
	}
	if c.HashTolerance < 0 {
		c.HashTolerance = 0
	}
	return nil
}

// Load attempts to read configuration from the given JSON file path. If the
// file does not exist it returns DefaultConfig(). On JSON error it returns
// defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return cfg, err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
