package profile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wren-reads/wren/internal/models"
)

// ErrNoJSON is returned when no JSON object can be located in model output.
var ErrNoJSON = errors.New("no JSON object found in response")

// jsonCandidates lists the spans of raw worth trying as a JSON object, most
// specific first: the whole text, a fenced code block, the outermost braces.
func jsonCandidates(raw string) []string {
	var out []string
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		out = append(out, trimmed)
	}
	for _, fence := range []string{"```json", "```JSON", "```"} {
		start := strings.Index(raw, fence)
		if start < 0 {
			continue
		}
		body := raw[start+len(fence):]
		if end := strings.Index(body, "```"); end >= 0 {
			out = append(out, strings.TrimSpace(body[:end]))
		}
		break
	}
	if first, last := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); first >= 0 && last > first {
		out = append(out, raw[first:last+1])
	}
	return out
}

// ExtractJSON returns the first candidate span of raw that decodes as a JSON object.
func ExtractJSON(raw string) (map[string]json.RawMessage, error) {
	var lastErr error = ErrNoJSON
	for _, c := range jsonCandidates(raw) {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal([]byte(c), &fields); err != nil {
			lastErr = err
			continue
		}
		if fields == nil {
			continue
		}
		return fields, nil
	}
	return nil, lastErr
}

// ParseProfile extracts a Profile from model output. It checks that the
// required top-level fields are present and well-typed; it does not judge
// whether the values make sense.
func ParseProfile(raw string) (*models.Profile, error) {
	fields, err := ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("extract profile JSON: %w", err)
	}

	var missing []string
	for _, name := range models.RequiredProfileFields {
		v, ok := fields[name]
		if !ok || len(bytes.TrimSpace(v)) == 0 || string(bytes.TrimSpace(v)) == "null" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("profile missing required fields: %s", strings.Join(missing, ", "))
	}

	obj, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("re-encode profile: %w", err)
	}
	var p models.Profile
	if err := json.Unmarshal(obj, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if p.ReaderArchetype == "" {
		return nil, errors.New("profile has an empty reader_archetype")
	}
	return &p, nil
}
