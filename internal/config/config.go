// Package config loads and validates the auditor configuration.
//
// All tunable policy (model identifier, sampling parameters, quality-gate
// thresholds, extraction geometry) lives here as data. Components receive a
// *Config by injection; nothing reads ambient globals.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Model contains the Gemini model identifier and sampling configuration.
// Sampling parameters are held constant across all passes within one run so
// that candidate scores stay comparable.
type Model struct {
	Name            string  `toml:"name"`
	Temperature     float64 `toml:"temperature"`
	TopP            float64 `toml:"top_p"`
	TopK            int     `toml:"top_k"`
	Seed            int     `toml:"seed"`
	ThinkingLevel   string  `toml:"thinking_level"`
	MediaResolution string  `toml:"media_resolution"`
	MaxOutputTokens int     `toml:"max_output_tokens"`
	UseSearch       bool    `toml:"use_search"`
}

// Extraction contains frame and audio extraction geometry.
type Extraction struct {
	FrameIntervalSeconds int    `toml:"frame_interval_seconds"`
	FrameWidth           int    `toml:"frame_width"`
	FrameQuality         int    `toml:"frame_quality"`
	TargetFrameCount     int    `toml:"target_frame_count"`
	MinFrameCount        int    `toml:"min_frame_count"`
	Workers              int    `toml:"workers"`
	DefaultStartTime     string `toml:"default_start_time"`
}

// Upload contains evidence upload and readiness-polling configuration.
type Upload struct {
	Workers             int `toml:"workers"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	MaxPollAttempts     int `toml:"max_poll_attempts"`
}

// Policy contains the quality-gate and consistency thresholds. These are
// configurable policy parameters, not invariants.
type Policy struct {
	RerunScoreThreshold float64 `toml:"rerun_score_threshold"`
	VarianceThreshold   float64 `toml:"variance_threshold"`
	MaxResponseRetries  int     `toml:"max_response_retries"`
	ConsistencyRuns     int     `toml:"consistency_runs"`
}

// Costs contains the per-million-token pricing used for run cost accounting.
type Costs struct {
	InputPerMillion  float64 `toml:"input_per_million"`
	OutputPerMillion float64 `toml:"output_per_million"`
}

// Config is the root configuration object, constructed once at process start
// and passed into each component.
type Config struct {
	Model      Model      `toml:"model"`
	Extraction Extraction `toml:"extraction"`
	Upload     Upload     `toml:"upload"`
	Policy     Policy     `toml:"policy"`
	Costs      Costs      `toml:"costs"`

	// ReferenceDocuments are paths to the policy PDFs attached as evidence.
	// Their content is opaque to the pipeline.
	ReferenceDocuments []string `toml:"reference_documents"`

	// StateDir holds the consistency database and per-session lock files.
	StateDir string `toml:"state_dir"`
}

// Default returns a Config populated with the shipped defaults.
func Default() *Config {
	return &Config{
		Model: Model{
			Name:            "gemini-3-flash-preview",
			Temperature:     0.0,
			TopP:            0.95,
			TopK:            40,
			Seed:            42,
			ThinkingLevel:   "minimal",
			MediaResolution: "medium",
		},
		Extraction: Extraction{
			FrameIntervalSeconds: 60,
			FrameWidth:           1024,
			FrameQuality:         2,
			TargetFrameCount:     35,
			MinFrameCount:        5,
			Workers:              16,
			DefaultStartTime:     "00:15:00",
		},
		Upload: Upload{
			Workers:             8,
			PollIntervalSeconds: 2,
			MaxPollAttempts:     150,
		},
		Policy: Policy{
			RerunScoreThreshold: 68,
			VarianceThreshold:   5.0,
			MaxResponseRetries:  2,
			ConsistencyRuns:     1,
		},
		Costs: Costs{
			InputPerMillion:  0.075,
			OutputPerMillion: 0.30,
		},
		StateDir: defaultStateDir(),
	}
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".session-auditor"
	}
	return filepath.Join(home, ".session-auditor")
}

// Load reads the TOML config at path, applies it on top of the defaults, and
// validates the result. A missing file is not an error: the defaults are
// returned so the tool works out of the box.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var problems []string

	if c.Model.Name == "" {
		problems = append(problems, "model.name must not be empty")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		problems = append(problems, "model.temperature must be in [0, 2]")
	}
	switch c.Model.ThinkingLevel {
	case "", "minimal", "low", "high":
	default:
		problems = append(problems, fmt.Sprintf("model.thinking_level %q not one of minimal, low, high", c.Model.ThinkingLevel))
	}
	switch c.Model.MediaResolution {
	case "", "low", "medium", "high":
	default:
		problems = append(problems, fmt.Sprintf("model.media_resolution %q not one of low, medium, high", c.Model.MediaResolution))
	}
	if c.Extraction.FrameIntervalSeconds <= 0 {
		problems = append(problems, "extraction.frame_interval_seconds must be positive")
	}
	if c.Extraction.TargetFrameCount <= 0 {
		problems = append(problems, "extraction.target_frame_count must be positive")
	}
	if c.Extraction.MinFrameCount > c.Extraction.TargetFrameCount {
		problems = append(problems, "extraction.min_frame_count must not exceed target_frame_count")
	}
	if c.Extraction.Workers <= 0 {
		problems = append(problems, "extraction.workers must be positive")
	}
	if c.Upload.Workers <= 0 {
		problems = append(problems, "upload.workers must be positive")
	}
	if c.Upload.PollIntervalSeconds <= 0 {
		problems = append(problems, "upload.poll_interval_seconds must be positive")
	}
	if c.Upload.MaxPollAttempts <= 0 {
		problems = append(problems, "upload.max_poll_attempts must be positive")
	}
	if c.Policy.RerunScoreThreshold < 0 || c.Policy.RerunScoreThreshold > 100 {
		problems = append(problems, "policy.rerun_score_threshold must be in [0, 100]")
	}
	if c.Policy.ConsistencyRuns < 1 {
		problems = append(problems, "policy.consistency_runs must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// EnsureStateDir creates the state directory if it does not exist.
func (c *Config) EnsureStateDir() error {
	if err := os.MkdirAll(c.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir %s: %w", c.StateDir, err)
	}
	return nil
}

// WriteSample writes the annotated sample configuration to path. It refuses
// to overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
