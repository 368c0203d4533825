package faq

import (
	"strings"

	"jertine-site/internal/domain"
)

// DefaultAnswer is returned when nothing in the corpus overlaps the question.
// AI providers are instructed to answer with exactly this sentence when unsure.
const DefaultAnswer = "Thank you for your question. Please contact Jertine Tech for further details on the provided contact form."

// Match returns the answer of the corpus item sharing the most distinct
// question tokens, or DefaultAnswer when no item shares any. A token counts
// when it occurs anywhere in the item text, so "soft" matches "software".
// Ties keep the earliest item.
func Match(items []domain.FAQItem, question string) string {
	tokens := tokenize(question)

	best, bestScore := "", 0
	for _, item := range items {
		candidate := normalize(item.Question + " " + item.Answer)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(candidate, tok) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = item.Answer, score
		}
	}
	if bestScore == 0 {
		return DefaultAnswer
	}
	return best
}

// normalize lower-cases s and replaces everything outside [a-z0-9\s] with a space.
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '\t', r == '\n', r == '\r', r == '\f', r == '\v':
			return r
		}
		return ' '
	}, strings.ToLower(s))
}

// tokenize returns the distinct normalized tokens longer than two bytes.
func tokenize(question string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, tok := range strings.Fields(normalize(question)) {
		if len(tok) <= 2 {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}
