package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wren-reads/wren/internal/models"
)

// SchemaVersion is the current checkpoint encoding version.
const SchemaVersion = 1

// ErrUnsupportedSchema is returned when a checkpoint was written by a newer release.
var ErrUnsupportedSchema = errors.New("unsupported checkpoint schema version")

// envelope is the persisted checkpoint format.
type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Session       *models.Session `json:"session"`
}

// Encode serializes a session into a versioned checkpoint.
func Encode(s *models.Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("cannot encode nil session")
	}
	if s.ID == "" {
		return nil, models.ErrEmptySessionID
	}
	data, err := json.Marshal(envelope{SchemaVersion: SchemaVersion, Session: s})
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return data, nil
}

// Decode parses a checkpoint. Versions newer than SchemaVersion are rejected.
func Decode(data []byte) (*models.Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	switch {
	case env.SchemaVersion < 1 || env.SchemaVersion > SchemaVersion:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, env.SchemaVersion)
	case env.Session == nil:
		return nil, errors.New("decode checkpoint: missing session")
	}
	if env.Session.Messages == nil {
		env.Session.Messages = []models.Message{}
	}
	return env.Session, nil
}
