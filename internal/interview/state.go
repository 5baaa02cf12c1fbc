package interview

import "github.com/wren-reads/wren/internal/models"

// DefaultMaxTurns is the hard cap on user turns per interview.
const DefaultMaxTurns = 12

// State is the lifecycle position of a session. States only move forward.
type State string

const (
	StateAwaitingFirstTurn State = "awaiting_first_turn"
	StateInProgress        State = "in_progress"
	StateAwaitingSynthesis State = "awaiting_synthesis"
	StateComplete          State = "complete"
)

// Decision is the outcome of the termination check for one turn.
type Decision struct {
	Terminate bool
	Reason    models.TerminationReason
}

// Decide applies the termination rules in order: the turn cap first, then
// readiness. The first match wins; otherwise the interview continues.
func Decide(turnCount int, snapshot models.CoverageSnapshot, maxTurns int) Decision {
	if turnCount >= maxTurns {
		return Decision{Terminate: true, Reason: models.TerminationTurnCap}
	}
	if snapshot.ReadyForSummary {
		return Decision{Terminate: true, Reason: models.TerminationReadiness}
	}
	return Decision{}
}

// StateOf derives the lifecycle state of s.
func StateOf(s *models.Session, maxTurns int) State {
	switch {
	case s == nil || (s.TurnCount == 0 && !s.IsComplete):
		return StateAwaitingFirstTurn
	case s.IsComplete:
		return StateComplete
	}
	var snap models.CoverageSnapshot
	if s.CurrentAnalysis != nil {
		snap = *s.CurrentAnalysis
	}
	if Decide(s.TurnCount, snap, maxTurns).Terminate {
		return StateAwaitingSynthesis
	}
	return StateInProgress
}
