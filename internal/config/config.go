// Package config loads and saves the settled.yaml configuration.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/settled-dev/settled/internal/status"
	"github.com/settled-dev/settled/internal/suggest"
)

// Config represents the top-level settled.yaml configuration.
type Config struct {
	ListenAddr  string         `yaml:"listen_addr"`
	DatabaseURL string         `yaml:"database_url,omitempty"`
	AuditDir    string         `yaml:"audit_dir,omitempty"`
	RecordsCSV  string         `yaml:"records_csv,omitempty"`
	Matching    MatchingConfig `yaml:"matching"`
	Classify    ClassifyConfig `yaml:"classify"`
	Provider    ProviderConfig `yaml:"provider"`
}

// MatchingConfig tunes the suggestion generator.
type MatchingConfig struct {
	DateWindowDays  int     `yaml:"date_window_days"`
	AmountEpsilon   string  `yaml:"amount_epsilon"`
	CloseTolerance  float64 `yaml:"close_tolerance"`
	DateReasonDays  int     `yaml:"date_reason_days"`
	AutoAcceptScore float64 `yaml:"auto_accept_score"`
	MaxSuggestions  int     `yaml:"max_suggestions"`
	Weights         Weights `yaml:"weights"`
}

// Weights mirrors the scoring signal weights.
type Weights struct {
	ExactAmount       float64 `yaml:"exact_amount"`
	CloseAmount       float64 `yaml:"close_amount"`
	DateProximity     float64 `yaml:"date_proximity"`
	ReferenceMatch    float64 `yaml:"reference_match"`
	CounterpartyMatch float64 `yaml:"counterparty_match"`
}

// ClassifyConfig tunes the missing_record / needs_review policy labels.
type ClassifyConfig struct {
	MissingRecordAgeDays int     `yaml:"missing_record_age_days"`
	NeedsReviewScore     float64 `yaml:"needs_review_score"`
}

// ProviderConfig controls the retry decorator over the ledger query surface.
type ProviderConfig struct {
	RetryMaxElapsedSeconds int `yaml:"retry_max_elapsed_seconds"`
}

// Load reads a settled.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with production defaults.
func Default() *Config {
	s := suggest.Default()
	p := status.DefaultPolicy()
	return &Config{
		ListenAddr: ":8080",
		AuditDir:   "logs",
		Matching: MatchingConfig{
			DateWindowDays:  s.DateWindowDays,
			AmountEpsilon:   s.AmountEpsilon.String(),
			CloseTolerance:  s.CloseTolerance,
			DateReasonDays:  s.DateReasonDays,
			AutoAcceptScore: s.AutoAcceptScore,
			MaxSuggestions:  s.MaxSuggestions,
			Weights: Weights{
				ExactAmount:       s.Weights.ExactAmount,
				CloseAmount:       s.Weights.CloseAmount,
				DateProximity:     s.Weights.DateProximity,
				ReferenceMatch:    s.Weights.ReferenceMatch,
				CounterpartyMatch: s.Weights.CounterpartyMatch,
			},
		},
		Classify: ClassifyConfig{
			MissingRecordAgeDays: p.MissingRecordAgeDays,
			NeedsReviewScore:     p.NeedsReviewScore,
		},
		Provider: ProviderConfig{
			RetryMaxElapsedSeconds: 10,
		},
	}
}

// Suggest converts the matching section into a generator config, falling
// back to defaults for unset fields.
func (c *Config) Suggest() (suggest.Config, error) {
	out := suggest.Default()
	m := c.Matching
	if m.DateWindowDays > 0 {
		out.DateWindowDays = m.DateWindowDays
	}
	if m.AmountEpsilon != "" {
		eps, err := decimal.NewFromString(m.AmountEpsilon)
		if err != nil {
			return out, fmt.Errorf("parsing amount_epsilon %q: %w", m.AmountEpsilon, err)
		}
		out.AmountEpsilon = eps
	}
	if m.CloseTolerance > 0 {
		out.CloseTolerance = m.CloseTolerance
	}
	if m.DateReasonDays > 0 {
		out.DateReasonDays = m.DateReasonDays
	}
	if m.AutoAcceptScore > 0 {
		out.AutoAcceptScore = m.AutoAcceptScore
	}
	if m.MaxSuggestions > 0 {
		out.MaxSuggestions = m.MaxSuggestions
	}
	if m.Weights != (Weights{}) {
		out.Weights = suggest.Weights{
			ExactAmount:       m.Weights.ExactAmount,
			CloseAmount:       m.Weights.CloseAmount,
			DateProximity:     m.Weights.DateProximity,
			ReferenceMatch:    m.Weights.ReferenceMatch,
			CounterpartyMatch: m.Weights.CounterpartyMatch,
		}
	}
	return out, nil
}

// Policy converts the classify section into a classification policy.
func (c *Config) Policy() status.Policy {
	out := status.DefaultPolicy()
	if c.Classify.MissingRecordAgeDays > 0 {
		out.MissingRecordAgeDays = c.Classify.MissingRecordAgeDays
	}
	if c.Classify.NeedsReviewScore > 0 {
		out.NeedsReviewScore = c.Classify.NeedsReviewScore
	}
	if c.Matching.AutoAcceptScore > 0 {
		out.AutoAcceptScore = c.Matching.AutoAcceptScore
	}
	return out
}
