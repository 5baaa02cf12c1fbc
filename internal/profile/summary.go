package profile

import (
	"fmt"
	"strings"

	"github.com/wren-reads/wren/internal/models"
)

const summaryListLimit = 3

// Summary renders a short human-readable description of a profile.
func Summary(p *models.Profile) string {
	if p == nil {
		return "No profile available yet."
	}
	var lines []string
	if p.ReaderArchetype != "" {
		lines = append(lines, "Reader type: "+p.ReaderArchetype)
	}
	if l := head(p.TasteAnchors.Loves); l != "" {
		lines = append(lines, "Loves: "+l)
	}
	if h := head(p.TasteAnchors.Hates); h != "" {
		lines = append(lines, "Avoids: "+h)
	}
	if th := head(p.NarrativeDesires.Themes); th != "" {
		lines = append(lines, "Key themes: "+th)
	}
	if p.NarrativeDesires.Wish != "" {
		lines = append(lines, "Looking for: "+p.NarrativeDesires.Wish)
	}
	if c := p.Consumption; c.DailyTimeMinutes > 0 || c.DeliveryFrequency != "" {
		lines = append(lines, fmt.Sprintf("Reading rhythm: about %d minutes a day, %d pages per delivery, %s",
			c.DailyTimeMinutes, c.PagesPerDelivery, strings.ReplaceAll(string(c.DeliveryFrequency), "_", " ")))
	}
	if len(lines) == 0 {
		return "Profile is empty."
	}
	return strings.Join(lines, "\n")
}

// StyleSummary describes each style score using the rubric band labels.
func StyleSummary(p *models.Profile, r *Rubric) string {
	if p == nil || r == nil {
		return ""
	}
	scores := p.StyleScores()
	lines := make([]string, 0, len(models.StyleScoreNames))
	for _, name := range models.StyleScoreNames {
		score := scores[name]
		label := "?"
		if b, ok := r.BandFor(name, score); ok {
			label = b.Label
		}
		lines = append(lines, fmt.Sprintf("%s: %d (%s)", strings.ReplaceAll(name, "_", " "), score, label))
	}
	return strings.Join(lines, "\n")
}

func head(items []string) string {
	if len(items) > summaryListLimit {
		items = items[:summaryListLimit]
	}
	return strings.Join(items, ", ")
}
