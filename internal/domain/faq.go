package domain

// FAQItem is a single immutable entry of the FAQ corpus.
type FAQItem struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}
