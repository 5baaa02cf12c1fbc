// Package analyzer computes heuristic per-utterance signals (vocabulary
// richness, brevity, engagement) and averages them over a session.
//
// Everything here is pure word statistics. Nothing is cached and nothing
// calls out of the process.
package analyzer

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/wren-reads/wren/internal/models"
)

// ReferenceLength is the word count at which brevity drops to 0.5.
const ReferenceLength = 30

// Engagement increments. Each cue type contributes at most its cap.
const (
	exampleIncrement  = 0.15
	exampleCap        = 0.4
	affectIncrement   = 0.1
	affectCap         = 0.3
	metaphorIncrement = 0.15
	metaphorCap       = 0.3
)

// affectWords is the fixed emotion vocabulary.
var affectWords = map[string]bool{
	"love": true, "loved": true, "loves": true, "adore": true, "adored": true,
	"hate": true, "hated": true, "hates": true, "despise": true, "loathe": true,
	"cry": true, "cried": true, "tears": true, "sob": true, "wept": true,
	"joy": true, "joyful": true, "happy": true, "delight": true, "delighted": true,
	"sad": true, "grief": true, "melancholy": true, "lonely": true, "heartbroken": true,
	"fear": true, "afraid": true, "scared": true, "terrified": true, "dread": true,
	"angry": true, "furious": true, "annoyed": true, "frustrated": true, "frustrating": true,
	"moved": true, "moving": true, "haunting": true, "haunted": true, "devastated": true,
	"devastating": true, "thrilled": true, "thrilling": true, "excited": true, "obsessed": true,
	"bored": true, "boring": true, "beautiful": true, "gorgeous": true, "awful": true,
	"ache": true, "aching": true, "longing": true, "nostalgic": true, "comforting": true,
	"unsettling": true, "unsettled": true, "uneasy": true, "wonder": true, "awe": true,
}

// metaphorPhrases are token sequences that usually introduce a figurative comparison.
var metaphorPhrases = [][]string{
	{"like", "a"},
	{"like", "an"},
	{"like", "the"},
	{"as", "if"},
	{"as", "though"},
	{"feels", "like"},
	{"felt", "like"},
	{"reminds", "me", "of"},
	{"kind", "of", "like"},
	{"the", "way", "a"},
}

var (
	// quotedSpan matches a title or name in straight, curly or guillemet quotes.
	quotedSpan = regexp.MustCompile(`["“«]([^"”»\n]{2,80})["”»]`)
	// authorCue matches "by Surname" style attributions.
	authorCue = regexp.MustCompile(`\bby\s+\p{Lu}\p{Ll}+`)
)

// Analyze computes ResponseSignals for one utterance. An empty or
// whitespace-only utterance yields the zero-signal result. Input that is
// not valid UTF-8 is rejected with models.ErrMalformedInput.
func Analyze(utterance string) (models.ResponseSignals, error) {
	if !utf8.ValidString(utterance) {
		return models.ResponseSignals{}, fmt.Errorf("%w: utterance is not valid UTF-8", models.ErrMalformedInput)
	}
	tokens := Tokenize(utterance)
	if len(tokens) == 0 {
		return models.ResponseSignals{}, nil
	}

	return models.ResponseSignals{
		VocabularyRichness: VocabularyRichness(tokens),
		Brevity:            Brevity(len(tokens)),
		Engagement:         Engagement(utterance, tokens),
		WordCount:          len(tokens),
	}, nil
}

// VocabularyRichness returns distinct tokens over total tokens.
func VocabularyRichness(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	distinct := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		distinct[t] = struct{}{}
	}
	return clamp(float64(len(distinct)) / float64(len(tokens)))
}

// Brevity maps a word count onto [0,1], strictly decreasing for positive
// counts: ReferenceLength / (ReferenceLength + wordCount).
func Brevity(wordCount int) float64 {
	if wordCount <= 0 {
		return 0
	}
	return clamp(float64(ReferenceLength) / float64(ReferenceLength+wordCount))
}

// Engagement combines concrete examples, affect vocabulary and metaphor
// constructions, each with a bounded increment.
func Engagement(utterance string, tokens []string) float64 {
	examples := len(quotedSpan.FindAllStringIndex(utterance, -1)) + len(authorCue.FindAllStringIndex(utterance, -1))

	affect := 0
	for _, t := range tokens {
		if affectWords[t] {
			affect++
		}
	}

	metaphors := 0
	for _, phrase := range metaphorPhrases {
		metaphors += CountPhrase(tokens, phrase)
	}

	score := math.Min(float64(examples)*exampleIncrement, exampleCap) +
		math.Min(float64(affect)*affectIncrement, affectCap) +
		math.Min(float64(metaphors)*metaphorIncrement, metaphorCap)
	return clamp(score)
}

// CountPhrase counts non-overlapping occurrences of phrase in tokens.
func CountPhrase(tokens, phrase []string) int {
	if len(phrase) == 0 || len(tokens) < len(phrase) {
		return 0
	}
	count := 0
	for i := 0; i+len(phrase) <= len(tokens); {
		match := true
		for j, p := range phrase {
			if tokens[i+j] != p {
				match = false
				break
			}
		}
		if match {
			count++
			i += len(phrase)
			continue
		}
		i++
	}
	return count
}

// Aggregate averages signals across user turns. An empty slice yields zeros.
func Aggregate(signals []models.ResponseSignals) models.ImplicitScores {
	if len(signals) == 0 {
		return models.ImplicitScores{}
	}
	var vocab, brevity, engagement float64
	for _, s := range signals {
		vocab += s.VocabularyRichness
		brevity += s.Brevity
		engagement += s.Engagement
	}
	n := float64(len(signals))
	return models.ImplicitScores{
		VocabularyRichness: clamp(vocab / n),
		ResponseBrevity:    clamp(brevity / n),
		Engagement:         clamp(engagement / n),
		SampleSize:         len(signals),
	}
}

// AggregateSession analyzes every user message of a transcript and averages
// the results. Messages that fail analysis are skipped.
func AggregateSession(messages []models.Message) models.ImplicitScores {
	var signals []models.ResponseSignals
	for _, m := range messages {
		if m.Role != models.RoleUser {
			continue
		}
		s, err := Analyze(m.Content)
		if err != nil {
			continue
		}
		signals = append(signals, s)
	}
	return Aggregate(signals)
}

// Describe renders signals as a short phrase for prompts and logs.
func Describe(s models.ResponseSignals) string {
	length := "moderate"
	switch {
	case s.WordCount == 0:
		length = "empty"
	case s.Brevity >= 0.75:
		length = "brief"
	case s.Brevity <= 0.35:
		length = "expansive"
	}
	engagement := "low"
	switch {
	case s.Engagement >= 0.5:
		engagement = "high"
	case s.Engagement >= 0.2:
		engagement = "some"
	}
	return fmt.Sprintf("%s answer (%d words), vocabulary richness %.2f, %s engagement",
		length, s.WordCount, s.VocabularyRichness, engagement)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	// Round to 4 decimal places to avoid floating point drift.
	return math.Round(v*10000) / 10000
}

// normalizeApostrophes folds typographic apostrophes so "don’t" and "don't" tokenize alike.
var normalizeApostrophes = strings.NewReplacer("’", "'", "‘", "'")
