package suggest

import "github.com/shopspring/decimal"

// Weights holds the score contribution of each matching signal. Scores are
// capped at 100 after summing.
type Weights struct {
	ExactAmount       float64
	CloseAmount       float64
	DateProximity     float64
	ReferenceMatch    float64
	CounterpartyMatch float64
}

// Config tunes the suggestion generator. Inject it rather than editing
// constants so weighting stays testable independently of matching logic.
type Config struct {
	// DateWindowDays bounds the candidate pool to transaction date +/- N days.
	DateWindowDays int

	// AmountEpsilon is the absolute difference under which two amounts are
	// considered exactly equal (one cent by default).
	AmountEpsilon decimal.Decimal

	// CloseTolerance is the relative band for the close_amount signal
	// (0.01 = within 1% of the line amount).
	CloseTolerance float64

	// DateReasonDays is the day distance within which the date_proximity
	// reason tag fires. The weight itself decays across the whole window.
	DateReasonDays int

	// AutoAcceptScore is the quick-match threshold.
	AutoAcceptScore float64

	// MaxSuggestions caps the returned list.
	MaxSuggestions int

	Weights Weights
}

// Default returns the production scoring configuration. An exact amount plus
// a same-day date and a reference hit scores 95, comfortably above the
// quick-match threshold; a close amount alone never clears it.
func Default() Config {
	return Config{
		DateWindowDays:  30,
		AmountEpsilon:   decimal.New(1, -2), // 0.01
		CloseTolerance:  0.01,
		DateReasonDays:  3,
		AutoAcceptScore: 90,
		MaxSuggestions:  10,
		Weights: Weights{
			ExactAmount:       50,
			CloseAmount:       30,
			DateProximity:     20,
			ReferenceMatch:    25,
			CounterpartyMatch: 15,
		},
	}
}
