package usecase

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"jertine-site/internal/domain"
	"jertine-site/internal/faq"
	"jertine-site/internal/telemetry"
)

const (
	minQuestionLen = 5
	maxQuestionLen = 200

	defaultAnswerTimeout = 8 * time.Second

	SourceAI       = "ai"
	SourceFallback = "fallback"
)

// Answerer is an external provider that may answer a FAQ question.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type FAQOutput struct {
	Answer string
	Source string
}

// FAQService answers questions through an optional Answerer and falls back to
// the corpus matcher whenever the provider fails or is not confident.
type FAQService struct {
	corpus  []domain.FAQItem
	ai      Answerer
	timeout time.Duration
	log     *zap.Logger
	metrics *telemetry.Metrics
}

// NewFAQService creates a service over corpus. ai may be nil, in which case
// every answer comes from the matcher.
func NewFAQService(corpus []domain.FAQItem, ai Answerer, timeout time.Duration, log *zap.Logger, m *telemetry.Metrics) (*FAQService, error) {
	if len(corpus) == 0 {
		return nil, errors.New("usecase: faq corpus must not be empty")
	}
	if timeout <= 0 {
		timeout = defaultAnswerTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FAQService{corpus: corpus, ai: ai, timeout: timeout, log: log, metrics: m}, nil
}

// Resolve returns an answer for any question of valid length; it only fails
// on invalid input.
func (s *FAQService) Resolve(ctx context.Context, question string) (FAQOutput, error) {
	if n := utf8.RuneCountInString(question); n < minQuestionLen || n > maxQuestionLen {
		return FAQOutput{}, newError(ErrorInvalidInput, "question_length", nil)
	}

	if answer, ok := s.askProvider(ctx, question); ok {
		s.metrics.FAQAnswer(SourceAI)
		return FAQOutput{Answer: answer, Source: SourceAI}, nil
	}
	s.metrics.FAQAnswer(SourceFallback)
	return FAQOutput{Answer: faq.Match(s.corpus, question), Source: SourceFallback}, nil
}

func (s *FAQService) askProvider(ctx context.Context, question string) (string, bool) {
	if s.ai == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	answer, err := s.ai.Answer(ctx, question)
	if err != nil {
		s.log.Warn("faq provider failed, using fallback", zap.Error(err))
		return "", false
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || answer == faq.DefaultAnswer {
		s.log.Debug("faq provider not confident, using fallback")
		return "", false
	}
	return answer, true
}

// Items returns a copy of the corpus.
func (s *FAQService) Items() []domain.FAQItem {
	out := make([]domain.FAQItem, len(s.corpus))
	copy(out, s.corpus)
	return out
}
