package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/transithub/metrodms/internal/core/domain"
)

const (
	filenameWeight   = 3
	summaryWeight    = 2
	keywordWeight    = 4
	departmentWeight = 1

	maxSnippets       = 3
	snippetRadius     = 30
	maxSuggestions    = 5
	minSuggestionWord = 3
)

func queryTokens(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	tokens := fields[:0]
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// relevanceScore is additive per query token: filename substring hits
// weigh 3, summary hits 2, exact or prefix keyword hits 4, department
// mention 1.
func relevanceScore(doc domain.Document, tokens []string) int {
	filename := strings.ToLower(doc.OriginalName)
	summary := strings.ToLower(doc.Summary)
	department := strings.ToLower(doc.Department)

	score := 0
	for _, token := range tokens {
		if strings.Contains(filename, token) {
			score += filenameWeight
		}
		if strings.Contains(summary, token) {
			score += summaryWeight
		}
		for _, kw := range doc.Keywords {
			kw = strings.ToLower(kw)
			if kw == token || strings.HasPrefix(kw, token) {
				score += keywordWeight
				break
			}
		}
		if strings.Contains(department, token) {
			score += departmentWeight
		}
	}
	return score
}

// buildSnippets cuts up to three windows of the summary around token
// hits, thirty characters to each side.
func buildSnippets(summary string, tokens []string) []string {
	if summary == "" {
		return nil
	}
	lower := strings.ToLower(summary)

	var snippets []string
	for _, token := range tokens {
		if len(snippets) >= maxSnippets {
			break
		}
		idx := strings.Index(lower, token)
		if idx < 0 {
			continue
		}
		start := idx - snippetRadius
		if start < 0 {
			start = 0
		}
		end := idx + len(token) + snippetRadius
		if end > len(summary) {
			end = len(summary)
		}
		// Malayalam summaries are multi-byte; never cut inside a rune.
		start = runeFloor(summary, start)
		end = runeFloor(summary, end)

		snippet := summary[start:end]
		if start > 0 {
			snippet = "..." + snippet
		}
		if end < len(summary) {
			snippet = snippet + "..."
		}
		snippets = append(snippets, snippet)
	}
	return snippets
}

// runeFloor moves a byte offset back to the nearest rune start.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// suggestionVocabulary is the fixed set of common operator queries.
var suggestionVocabulary = []string{
	"safety circular",
	"safety audit report",
	"maintenance schedule",
	"maintenance log",
	"incident report",
	"invoice approval",
	"purchase order",
	"tender document",
	"board meeting minutes",
	"leave policy",
	"training attendance",
	"rolling stock inspection",
	"signalling fault report",
	"station operations notice",
}

// suggestQueries offers up to five canned queries whose leading word
// overlaps a word of the submitted query.
func suggestQueries(query string) []string {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if len(t) >= minSuggestionWord {
			want[t] = struct{}{}
		}
	}

	var out []string
	for _, candidate := range suggestionVocabulary {
		if len(out) >= maxSuggestions {
			break
		}
		first, _, _ := strings.Cut(candidate, " ")
		if _, ok := want[first]; ok && candidate != strings.ToLower(query) {
			out = append(out, candidate)
		}
	}
	return out
}
