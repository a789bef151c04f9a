package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/daman-app/daman/internal/matching"
)

// MatchingConfig holds the tunable weights and thresholds of the
// suggestion engine. Confidence values are on the 0-100 scale the API
// exposes; similarity floors are on the 0-1 scale of the similarity
// primitives.
type MatchingConfig struct {
	Weights matching.Weights `yaml:"weights"`

	// SourceHintFloor is the minimum similarity for the source tier
	SourceHintFloor float64 `yaml:"source_hint_floor"`

	// CandidateFloor is the minimum similarity for the candidate tier
	CandidateFloor float64 `yaml:"candidate_floor"`

	// AutoAcceptConfidence is the minimum top-suggestion confidence for
	// an import-time auto match to commit without a human decision
	AutoAcceptConfidence float64 `yaml:"auto_accept_confidence"`

	// MaxSuggestions caps the suggestion list length
	MaxSuggestions int `yaml:"max_suggestions"`

	// BoilerplateTokens extends the normalizer's legal-entity filler list
	BoilerplateTokens []string `yaml:"boilerplate_tokens"`
}

// DefaultMatchingConfig returns the built-in tuning
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		Weights:              matching.DefaultWeights(),
		SourceHintFloor:      0.55,
		CandidateFloor:       0.50,
		AutoAcceptConfidence: 95,
		MaxSuggestions:       10,
	}
}

// LoadMatchingConfig reads a YAML override file on top of the defaults.
// An empty path returns the defaults unchanged.
func LoadMatchingConfig(path string) (*MatchingConfig, error) {
	cfg := DefaultMatchingConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read matching config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse matching config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid matching config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *MatchingConfig) validate() error {
	if c.SourceHintFloor < 0 || c.SourceHintFloor > 1 {
		return fmt.Errorf("source_hint_floor must be in [0,1], got %f", c.SourceHintFloor)
	}
	if c.CandidateFloor < 0 || c.CandidateFloor > 1 {
		return fmt.Errorf("candidate_floor must be in [0,1], got %f", c.CandidateFloor)
	}
	if c.AutoAcceptConfidence < 0 || c.AutoAcceptConfidence > 100 {
		return fmt.Errorf("auto_accept_confidence must be in [0,100], got %f", c.AutoAcceptConfidence)
	}
	if c.MaxSuggestions <= 0 {
		return fmt.Errorf("max_suggestions must be positive, got %d", c.MaxSuggestions)
	}
	return nil
}
