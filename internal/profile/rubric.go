package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wren-reads/wren/internal/models"
)

// BandsPerDimension is the number of scoring bands each style dimension must define.
const BandsPerDimension = 5

//go:embed default_rubric.yaml
var defaultRubricYAML []byte

// Band is one scoring range of a style dimension.
type Band struct {
	Min     int    `yaml:"min"`
	Max     int    `yaml:"max"`
	Label   string `yaml:"label"`
	Example string `yaml:"example"`
}

// RubricDimension defines the bands for one style score.
type RubricDimension struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Bands       []Band `yaml:"bands"`
}

// Rubric is an immutable scoring document. The source text is kept so it can
// be embedded in prompts exactly as written.
type Rubric struct {
	Version    int               `yaml:"version"`
	Dimensions []RubricDimension `yaml:"dimensions"`

	source string
	origin string
}

// ParseRubric decodes and validates a rubric document.
func ParseRubric(data []byte, origin string) (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode rubric %s: %w", origin, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rubric %s: %w", origin, err)
	}
	r.source = strings.TrimSpace(string(data))
	r.origin = origin
	return &r, nil
}

// LoadRubric reads and validates a rubric file.
func LoadRubric(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric: %w", err)
	}
	return ParseRubric(data, path)
}

// DefaultRubric returns the built-in rubric.
func DefaultRubric() *Rubric {
	r, err := ParseRubric(defaultRubricYAML, "builtin")
	if err != nil {
		// The embedded document is validated by tests.
		panic(err)
	}
	return r
}

// LoadRubricOrDefault loads path, falling back to the built-in rubric when
// path is empty, unreadable or invalid. Scoring never proceeds without bands.
func LoadRubricOrDefault(path string) *Rubric {
	if path == "" {
		return DefaultRubric()
	}
	r, err := LoadRubric(path)
	if err != nil {
		slog.Warn("Rubric.LoadRubricOrDefault: using built-in rubric", "path", path, "error", err)
		return DefaultRubric()
	}
	slog.Info("Rubric.LoadRubricOrDefault: loaded rubric", "path", path, "dimensions", len(r.Dimensions))
	return r
}

// Validate checks that every style score has exactly five ordered bands
// covering 0-100 contiguously.
func (r *Rubric) Validate() error {
	if len(r.Dimensions) == 0 {
		return errors.New("no dimensions defined")
	}
	seen := make(map[string]bool, len(r.Dimensions))
	for _, d := range r.Dimensions {
		if d.Name == "" {
			return errors.New("dimension without a name")
		}
		if seen[d.Name] {
			return fmt.Errorf("dimension %q defined twice", d.Name)
		}
		seen[d.Name] = true
		if err := validateBands(d); err != nil {
			return err
		}
	}
	for _, name := range models.StyleScoreNames {
		if !seen[name] {
			return fmt.Errorf("missing dimension %q", name)
		}
	}
	return nil
}

func validateBands(d RubricDimension) error {
	if len(d.Bands) != BandsPerDimension {
		return fmt.Errorf("dimension %q has %d bands, want %d", d.Name, len(d.Bands), BandsPerDimension)
	}
	next := models.MinStyleScore
	for i, b := range d.Bands {
		if strings.TrimSpace(b.Label) == "" {
			return fmt.Errorf("dimension %q band %d has no label", d.Name, i)
		}
		if b.Min != next {
			return fmt.Errorf("dimension %q band %d starts at %d, want %d", d.Name, i, b.Min, next)
		}
		if b.Max < b.Min {
			return fmt.Errorf("dimension %q band %d is empty (%d-%d)", d.Name, i, b.Min, b.Max)
		}
		next = b.Max + 1
	}
	if last := d.Bands[len(d.Bands)-1].Max; last != models.MaxStyleScore {
		return fmt.Errorf("dimension %q ends at %d, want %d", d.Name, last, models.MaxStyleScore)
	}
	return nil
}

// Text returns the rubric document as written.
func (r *Rubric) Text() string {
	return r.source
}

// Origin names where the rubric came from: a file path or "builtin".
func (r *Rubric) Origin() string {
	return r.origin
}

// BandFor returns the band a score falls into for the named dimension.
func (r *Rubric) BandFor(dimension string, score int) (Band, bool) {
	for _, d := range r.Dimensions {
		if d.Name != dimension {
			continue
		}
		for _, b := range d.Bands {
			if score >= b.Min && score <= b.Max {
				return b, true
			}
		}
	}
	return Band{}, false
}
