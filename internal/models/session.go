// Package models defines the interview session state shared by the analyzer,
// coverage tracker, interview engine, profile synthesizer and checkpoint stores.
package models

import "time"

// Role identifies who authored a message.
type Role string

const (
	// RoleUser marks a message written by the interviewee.
	RoleUser Role = "user"
	// RoleAgent marks a message written by the interviewer.
	RoleAgent Role = "agent"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAgent
}

// Message is a single entry of a session transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// Rationale is model-internal explanation text. It is persisted as-is and never interpreted.
	Rationale *string   `json:"rationale,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserMessage builds a user-role message.
func UserMessage(content string, at time.Time) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: at}
}

// AgentMessage builds an agent-role message with an optional rationale.
func AgentMessage(content, rationale string, at time.Time) Message {
	m := Message{Role: RoleAgent, Content: content, CreatedAt: at}
	if rationale != "" {
		r := rationale
		m.Rationale = &r
	}
	return m
}

// Session is the unit of durable interview state.
type Session struct {
	ID              string            `json:"session_id"`
	TurnCount       int               `json:"turn_count"`
	Messages        []Message         `json:"messages"`
	CurrentAnalysis *CoverageSnapshot `json:"current_analysis,omitempty"`
	IsComplete      bool              `json:"is_complete"`
	Profile         *Profile          `json:"profile,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// NewSession returns a fresh session with zero turns.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UserMessageCount returns the number of user-role messages in the transcript.
func (s *Session) UserMessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// LastAgentMessage returns the most recent agent message, if any.
func (s *Session) LastAgentMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAgent {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// Clone returns a deep copy so callers can mutate a working copy without
// touching the loaded state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m
		if m.Rationale != nil {
			r := *m.Rationale
			c.Messages[i].Rationale = &r
		}
	}
	if s.CurrentAnalysis != nil {
		a := s.CurrentAnalysis.Clone()
		c.CurrentAnalysis = &a
	}
	if s.Profile != nil {
		p := s.Profile.Clone()
		c.Profile = &p
	}
	return &c
}

// TurnResult is returned to callers after start, advance and forceComplete.
type TurnResult struct {
	SessionID  string   `json:"session_id"`
	Message    string   `json:"message,omitempty"`
	TurnCount  int      `json:"turn_count"`
	IsComplete bool     `json:"is_complete"`
	Profile    *Profile `json:"profile,omitempty"`
}
