package mlservice

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/transithub/metrodms/internal/core/domain"
)

const (
	fallbackKeywordCount = 8
	fallbackEntityCap    = 10
	minKeywordLength     = 4
)

// Heuristics is the deterministic local enrichment used when the ML service
// is unreachable. It is pure computation: no I/O, no randomness.
type Heuristics struct {
	tax              taxonomy
	maxSummaryLength int
}

func NewHeuristics(maxSummaryLength int) *Heuristics {
	if maxSummaryLength <= 0 {
		maxSummaryLength = 500
	}
	return &Heuristics{
		tax:              loadTaxonomy(),
		maxSummaryLength: maxSummaryLength,
	}
}

// Classify scans the filename and extracted text for department-indicative
// keyword tiers, first hit wins; no hit lands in the default bucket.
func (h *Heuristics) Classify(text, filename string) domain.Enrichment {
	haystack := strings.ToLower(filename + " " + text)

	label := h.tax.Default.Label
	confidence := h.tax.Default.Confidence
	for _, rule := range h.tax.Rules {
		if matchesAny(haystack, rule.Keywords) {
			label = rule.Label
			confidence = rule.Confidence
			break
		}
	}

	return domain.Enrichment{
		Classification:           label,
		ClassificationConfidence: confidence,
		Keywords:                 h.extractKeywords(text),
		Entities:                 h.extractEntities(text),
		Language:                 h.DetectLanguage(text),
	}
}

// Summarize takes the leading sentences of the text up to the configured
// character cap and a frequency-based keyword list.
func (h *Heuristics) Summarize(text, filename string) domain.Enrichment {
	return domain.Enrichment{
		Summary:           h.leadSummary(text, filename),
		SummaryConfidence: h.tax.Default.Confidence,
		Keywords:          h.extractKeywords(text),
	}
}

// DetectLanguage: non-Latin script mixed with Latin is "mixed"; only
// non-Latin is named by script; otherwise "english".
func (h *Heuristics) DetectLanguage(text string) string {
	var hasLatin bool
	script := ""
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLatin = true
		case unicode.In(r, unicode.Malayalam):
			script = "malayalam"
		case unicode.In(r, unicode.Devanagari):
			script = "hindi"
		}
	}
	switch {
	case script != "" && hasLatin:
		return "mixed"
	case script != "":
		return script
	default:
		return "english"
	}
}

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

func (h *Heuristics) leadSummary(text, filename string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "Document " + filename + " (no extractable text)."
	}

	var b strings.Builder
	for _, sentence := range sentenceSplit.Split(trimmed, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if b.Len() > 0 && b.Len()+len(sentence)+2 > h.maxSummaryLength {
			break
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(sentence)
		b.WriteString(".")
	}

	summary := b.String()
	if len(summary) > h.maxSummaryLength {
		// Back off to a rune start so a multi-byte script is not cut
		// mid-character.
		cut := h.maxSummaryLength
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut]
	}
	return summary
}

var stopwords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "will": {},
	"been": {}, "were": {}, "their": {}, "which": {}, "shall": {}, "would": {},
	"there": {}, "these": {}, "those": {}, "other": {}, "into": {}, "upon": {},
	"also": {}, "such": {}, "each": {}, "about": {}, "after": {}, "before": {},
	"under": {}, "over": {}, "between": {}, "during": {}, "where": {}, "when": {},
	"than": {}, "then": {}, "them": {}, "they": {}, "being": {}, "only": {},
}

var wordPattern = regexp.MustCompile(`[a-zA-Z]+`)

// extractKeywords is a stopword-filtered word frequency count; words of
// three characters or fewer are excluded; output is ordered by frequency
// (ties alphabetical) and capped at eight terms.
func (h *Heuristics) extractKeywords(text string) []string {
	counts := make(map[string]int)
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(word) < minKeywordLength {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		counts[word]++
	}

	words := make([]string, 0, len(counts))
	for word := range counts {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > fallbackKeywordCount {
		words = words[:fallbackKeywordCount]
	}
	return words
}

var (
	datePattern    = regexp.MustCompile(`\b(?:\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}-\d{2}-\d{2})\b`)
	amountPattern  = regexp.MustCompile(`(?:₹|Rs\.?\s?|INR\s?|\$)\s?\d[\d,]*(?:\.\d+)?`)
	projectPattern = regexp.MustCompile(`\b[A-Z]{2,6}-\d{2,6}\b`)
	personPattern  = regexp.MustCompile(`\b(?:Mr|Ms|Mrs|Dr|Er)\.?\s[A-Z][a-z]+(?:\s[A-Z][a-z]+)?`)
)

var departmentMentions = map[string]string{
	"engineering":     domain.DeptEngineering,
	"safety":          domain.DeptSafety,
	"finance":         domain.DeptFinance,
	"human resources": domain.DeptHR,
	"legal":           domain.DeptLegal,
	"operations":      domain.DeptOperations,
	"procurement":     domain.DeptProcurement,
	"administration":  domain.DeptAdministration,
}

func (h *Heuristics) extractEntities(text string) domain.Entities {
	lower := strings.ToLower(text)

	var depts []string
	for mention, code := range departmentMentions {
		if strings.Contains(lower, mention) {
			depts = append(depts, code)
		}
	}
	sort.Strings(depts)

	return domain.Entities{
		Dates:        capped(dedupe(datePattern.FindAllString(text, -1))),
		Amounts:      capped(dedupe(amountPattern.FindAllString(text, -1))),
		ProjectCodes: capped(dedupe(projectPattern.FindAllString(text, -1))),
		Departments:  depts,
		Personnel:    capped(dedupe(personPattern.FindAllString(text, -1))),
	}
}

func matchesAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func capped(values []string) []string {
	if len(values) > fallbackEntityCap {
		return values[:fallbackEntityCap]
	}
	return values
}
