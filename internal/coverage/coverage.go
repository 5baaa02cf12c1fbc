// Package coverage derives topic-coverage snapshots and the readiness
// decision from a session's message history.
package coverage

import (
	"fmt"
	"math"

	"github.com/wren-reads/wren/internal/analyzer"
	"github.com/wren-reads/wren/internal/models"
)

// Readiness policy defaults.
const (
	DefaultMinTurns    = 8
	DefaultMinCoverage = 0.75
)

// Policy holds the readiness thresholds. A session is ready for summary when
// it has at least MinTurns user turns and a coverage score of at least
// MinCoverage.
type Policy struct {
	MinTurns    int     `json:"min_turns"`
	MinCoverage float64 `json:"min_coverage"`
}

// DefaultPolicy returns the stock readiness thresholds.
func DefaultPolicy() Policy {
	return Policy{MinTurns: DefaultMinTurns, MinCoverage: DefaultMinCoverage}
}

// Validate checks that the thresholds are in range.
func (p Policy) Validate() error {
	if p.MinTurns < 0 {
		return fmt.Errorf("min turns must be non-negative, got %d", p.MinTurns)
	}
	if math.IsNaN(p.MinCoverage) || p.MinCoverage < 0 || p.MinCoverage > 1 {
		return fmt.Errorf("min coverage must be within [0,1], got %v", p.MinCoverage)
	}
	return nil
}

// Tracker evaluates message histories against a fixed Policy.
type Tracker struct {
	policy Policy
}

// NewTracker creates a Tracker after validating the policy.
func NewTracker(policy Policy) (*Tracker, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{policy: policy}, nil
}

// Policy returns the thresholds the tracker was built with.
func (t *Tracker) Policy() Policy {
	return t.policy
}

// Evaluate recomputes the coverage snapshot from the full history. Only
// user-role messages count toward coverage and turn count. It is a pure
// function of its input.
func (t *Tracker) Evaluate(history []models.Message) models.CoverageSnapshot {
	snap := models.CoverageSnapshot{
		Dimensions: make(map[models.Dimension]bool, len(models.AllDimensions)),
	}
	for _, d := range models.AllDimensions {
		snap.Dimensions[d] = false
	}

	for _, m := range history {
		if m.Role != models.RoleUser {
			continue
		}
		snap.TurnCount++
		tokens := analyzer.Tokenize(m.Content)
		if len(tokens) == 0 {
			continue
		}
		for _, d := range models.AllDimensions {
			if !snap.Dimensions[d] && matches(d, tokens) {
				snap.Dimensions[d] = true
			}
		}
	}

	observed := 0
	for _, d := range models.AllDimensions {
		if snap.Dimensions[d] {
			observed++
		}
	}
	snap.CoverageScore = float64(observed) / float64(len(models.AllDimensions))
	snap.ReadyForSummary = snap.TurnCount >= t.policy.MinTurns && snap.CoverageScore >= t.policy.MinCoverage
	return snap
}

// Evaluate runs the default-policy tracker over history.
func Evaluate(history []models.Message) models.CoverageSnapshot {
	t := &Tracker{policy: DefaultPolicy()}
	return t.Evaluate(history)
}
