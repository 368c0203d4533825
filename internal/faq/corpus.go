// Package faq holds the FAQ corpus, the deterministic fallback matcher and the
// prompt contract shared by the AI answer providers.
package faq

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"jertine-site/internal/domain"
)

//go:embed corpus.yaml
var embeddedCorpus []byte

// Load reads the corpus from path, or the embedded corpus when path is empty.
// The returned slice is treated as read-only by every caller.
func Load(path string) ([]domain.FAQItem, error) {
	raw := embeddedCorpus
	if path = strings.TrimSpace(path); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("faq: read corpus %s: %w", path, err)
		}
		raw = b
	}
	return Parse(raw)
}

// Parse decodes a YAML corpus and checks that every item is complete.
func Parse(raw []byte) ([]domain.FAQItem, error) {
	var items []domain.FAQItem
	if err := yaml.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("faq: parse corpus: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("faq: corpus is empty")
	}
	for i, item := range items {
		if strings.TrimSpace(item.Question) == "" || strings.TrimSpace(item.Answer) == "" {
			return nil, fmt.Errorf("faq: corpus item %d is missing question or answer", i)
		}
	}
	return items, nil
}
