package config

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settled-dev/settled/internal/suggest"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30, cfg.Matching.DateWindowDays)
	assert.Equal(t, "0.01", cfg.Matching.AmountEpsilon)
	assert.Equal(t, 90.0, cfg.Matching.AutoAcceptScore)
	assert.Equal(t, 10, cfg.Matching.MaxSuggestions)
	assert.Equal(t, 14, cfg.Classify.MissingRecordAgeDays)
	assert.Equal(t, 40.0, cfg.Classify.NeedsReviewScore)
}

func TestLoadSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settled.yaml")

	cfg := Default()
	cfg.DatabaseURL = "postgres://localhost/settled"
	cfg.Matching.Weights.ExactAmount = 60
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSuggest_Conversion(t *testing.T) {
	cfg := &Config{Matching: MatchingConfig{
		DateWindowDays: 45,
		AmountEpsilon:  "0.05",
		Weights:        Weights{ExactAmount: 60, DateProximity: 10},
	}}

	got, err := cfg.Suggest()
	require.NoError(t, err)
	assert.Equal(t, 45, got.DateWindowDays)
	assert.True(t, got.AmountEpsilon.Equal(decimalFrom(t, "0.05")))
	assert.Equal(t, 60.0, got.Weights.ExactAmount)
	assert.Equal(t, 10.0, got.Weights.DateProximity)
	// Unset scalar fields keep their defaults.
	assert.Equal(t, suggest.Default().MaxSuggestions, got.MaxSuggestions)
	assert.Equal(t, suggest.Default().AutoAcceptScore, got.AutoAcceptScore)
}

func TestSuggest_EmptyUsesDefaults(t *testing.T) {
	got, err := (&Config{}).Suggest()
	require.NoError(t, err)
	assert.Equal(t, suggest.Default(), got)
}

func TestSuggest_BadEpsilon(t *testing.T) {
	cfg := &Config{Matching: MatchingConfig{AmountEpsilon: "a lot"}}
	_, err := cfg.Suggest()
	assert.Error(t, err)
}

func TestPolicy_Conversion(t *testing.T) {
	cfg := &Config{
		Matching: MatchingConfig{AutoAcceptScore: 85},
		Classify: ClassifyConfig{MissingRecordAgeDays: 7},
	}

	p := cfg.Policy()
	assert.Equal(t, 7, p.MissingRecordAgeDays)
	assert.Equal(t, 85.0, p.AutoAcceptScore)
	assert.Equal(t, 40.0, p.NeedsReviewScore)
}

func decimalFrom(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
