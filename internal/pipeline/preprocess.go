package pipeline

import (
	"strings"

	"github.com/ternarybob/analysisd/internal/project"
)

// stopwords is a small built-in English stopword list; the distilled
// spec treats stopword removal as column-configurable but does not
// call for a pluggable per-language dictionary, so one compact set
// covers the "en" case and RemoveStopwords=false skips it entirely.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "but": true, "or": true, "so": true, "if": true,
}

// heavyPreprocess tokenizes, lowercases, optionally drops stopwords
// and short words, and rejoins — the cleaned form used by the
// vectorizer/c-TF-IDF stages (§4.7 stage 2).
func heavyPreprocess(text string, column project.TextualColumn) string {
	fields := strings.Fields(strings.ToLower(text))
	var kept []string
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if f == "" {
			continue
		}
		if column.RemoveStopwords && stopwords[f] {
			continue
		}
		if column.MinWordLength > 0 && len(f) < column.MinWordLength {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// lightPreprocess only trims whitespace: embedding models work better
// on natural text than on a stopword-stripped bag of tokens, so the
// Embed stage (§4.7 stage 4) gets this view instead of the heavy one.
func lightPreprocess(text string) string {
	return strings.TrimSpace(text)
}
