package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"jertine-site/internal/domain"
	"jertine-site/internal/telemetry"
)

// MinSubmitDelay is the shortest plausible time between rendering the form
// and submitting it.
const MinSubmitDelay = 3000 * time.Millisecond

const receivedAtLayout = "2006-01-02T15:04:05.000Z"

type RateLimiter interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, payload domain.InquiryPayload) error
}

type ContactInput struct {
	Headers http.Header
	Body    []byte
}

type ContactOutput struct {
	SubmissionID string
}

// ContactService gates contact submissions and forwards accepted ones.
type ContactService struct {
	limiter   RateLimiter
	deliverer Deliverer
	validate  *validator.Validate
	log       *zap.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

func NewContactService(l RateLimiter, d Deliverer, log *zap.Logger, m *telemetry.Metrics) (*ContactService, error) {
	if l == nil {
		return nil, errors.New("usecase: rate limiter must not be nil")
	}
	if d == nil {
		return nil, errors.New("usecase: deliverer must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("safe", func(fl validator.FieldLevel) bool {
		return !HasUnsafeInput(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	return &ContactService{
		limiter:   l,
		deliverer: d,
		validate:  v,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}, nil
}

// Submit runs a submission through rate limiting, validation and the
// anti-automation checks, then delivers it. Every rejection before delivery
// is final; delivery itself retries inside the Deliverer.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (ContactOutput, error) {
	now := s.now()
	rateKey := ClassifyClient(in.Headers)
	log := s.log.With(zap.String("rate_key", rateKey))

	allowed, err := s.limiter.Allow(ctx, rateKey, now)
	if err != nil {
		log.Warn("rate limit store unavailable, allowing request", zap.Error(err))
		s.metrics.RateStoreError()
		allowed = true
	}
	if !allowed {
		return ContactOutput{}, s.reject(log, newError(ErrorRateLimited, "rate_limited", nil))
	}

	if !json.Valid(in.Body) {
		return ContactOutput{}, s.reject(log, newError(ErrorMalformedPayload, "invalid_json", nil))
	}
	sub, err := s.parseSubmission(in.Body)
	if err != nil {
		return ContactOutput{}, s.reject(log, newError(ErrorInvalidInput, "invalid_fields", err))
	}
	if sub.CompanyWebsite != "" {
		return ContactOutput{}, s.reject(log, newError(ErrorInvalidInput, "honeypot", nil))
	}
	if now.UnixMilli()-sub.StartedAt < MinSubmitDelay.Milliseconds() {
		return ContactOutput{}, s.reject(log, newError(ErrorInvalidInput, "submitted_too_fast", nil))
	}

	payload := domain.InquiryPayload{
		Source:       domain.InquirySource,
		Type:         domain.InquiryType,
		SubmissionID: newUUID(),
		Name:         sub.Name,
		Email:        sub.Email,
		Message:      sub.Message,
		ReceivedAt:   now.UTC().Format(receivedAtLayout),
		RateKey:      rateKey,
	}
	log = log.With(zap.String("submission_id", payload.SubmissionID))

	if err := s.deliverer.Deliver(ctx, payload); err != nil {
		log.Error("contact inquiry delivery failed",
			zap.String("received_at", payload.ReceivedAt),
			zap.Error(err),
		)
		s.metrics.Contact("delivery_failed")
		return ContactOutput{}, newError(ErrorDelivery, "webhook_delivery_failed", err)
	}

	log.Info("contact inquiry accepted", zap.Int("message_length", len(payload.Message)))
	s.metrics.Contact("accepted")
	return ContactOutput{SubmissionID: payload.SubmissionID}, nil
}

// parseSubmission decodes, normalizes and validates the form fields.
func (s *ContactService) parseSubmission(body []byte) (domain.ContactSubmission, error) {
	var sub domain.ContactSubmission
	if err := json.Unmarshal(body, &sub); err != nil {
		return domain.ContactSubmission{}, err
	}
	sub.Name = SanitizeInput(sub.Name)
	sub.Email = strings.ToLower(strings.TrimSpace(sub.Email))
	sub.Message = SanitizeInput(sub.Message)
	if err := s.validate.Struct(sub); err != nil {
		return domain.ContactSubmission{}, err
	}
	return sub, nil
}

func (s *ContactService) reject(log *zap.Logger, err *Error) *Error {
	log.Info("contact submission rejected", zap.String("reason", err.Reason), zap.NamedError("detail", err.Err))
	s.metrics.Contact(err.Reason)
	return err
}

var newUUID = func() string {
	return uuid.NewString()
}
