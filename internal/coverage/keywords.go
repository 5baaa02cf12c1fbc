package coverage

import (
	"github.com/wren-reads/wren/internal/analyzer"
	"github.com/wren-reads/wren/internal/models"
)

// ---- Keyword sets ----

// keywordSets holds the fixed cue vocabulary per dimension. Entries are
// matched against the tokenized user message: single-word entries must equal
// a whole token, multi-word entries must appear as a contiguous token run.
// Substring matches do not count, so "pace" does not fire on "space".
var keywordSets = map[models.Dimension][]string{
	models.DimensionTasteAnchors: {
		"favorite", "favourite", "favorites", "favourites", "loved", "hated",
		"dislike", "disliked", "couldn't finish", "dnf", "reread", "re read",
		"all time", "author", "authors", "writer", "writers", "genre", "genres",
		"classic", "classics", "fantasy", "sci fi", "scifi", "science fiction",
		"mystery", "mysteries", "thriller", "thrillers", "romance", "horror",
		"literary fiction", "memoir", "memoirs", "poetry", "nonfiction", "non fiction",
		"novel", "novels", "series",
	},
	models.DimensionStylePreference: {
		"prose", "writing style", "sentences", "sentence", "descriptive",
		"description", "descriptions", "dialogue", "pacing", "pace", "paced",
		"slow burn", "page turner", "lyrical", "sparse", "minimalist", "dense",
		"voice", "tone", "humor", "humour", "funny", "atmospheric", "atmosphere",
		"worldbuilding", "world building", "characters", "character driven",
		"ambiguity", "ambiguous", "flowery", "poetic", "gritty",
	},
	models.DimensionNarrativeDesire: {
		"story", "stories", "plot", "ending", "endings", "twist", "twists",
		"wish", "theme", "themes", "journey", "redemption", "coming of age",
		"protagonist", "hero", "heroine", "villain", "arc", "happy ending",
		"bittersweet", "tragic", "tragedy", "resolution", "adventure",
		"explore", "exploring", "found family", "quest",
	},
	models.DimensionConsumptionHabit: {
		"minutes", "hour", "hours", "daily", "every day", "nightly", "morning",
		"mornings", "evening", "evenings", "commute", "bedtime", "before bed",
		"weekend", "weekends", "weekly", "pages", "chapter", "chapters",
		"audiobook", "audiobooks", "kindle", "ebook", "ebooks", "e reader",
		"routine", "binge", "lunch break", "per day", "a week", "a day",
	},
}

// compiled keyword phrases per dimension, tokenized once.
var keywordPhrases = compileKeywords(keywordSets)

func compileKeywords(sets map[models.Dimension][]string) map[models.Dimension][][]string {
	out := make(map[models.Dimension][][]string, len(sets))
	for dim, words := range sets {
		phrases := make([][]string, 0, len(words))
		for _, w := range words {
			if toks := analyzer.Tokenize(w); len(toks) > 0 {
				phrases = append(phrases, toks)
			}
		}
		out[dim] = phrases
	}
	return out
}

// Keywords returns a copy of the cue vocabulary for a dimension.
func Keywords(d models.Dimension) []string {
	return append([]string(nil), keywordSets[d]...)
}

// matches reports whether any keyword phrase for dim occurs in tokens.
func matches(dim models.Dimension, tokens []string) bool {
	for _, phrase := range keywordPhrases[dim] {
		if analyzer.CountPhrase(tokens, phrase) > 0 {
			return true
		}
	}
	return false
}
