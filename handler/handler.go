package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"jertine-site/internal/domain"
	"jertine-site/internal/usecase"
)

const (
	CorrelationHeader = "X-Correlation-Id"

	contactPath = "/api/contact"
	faqPath     = "/api/faq"
)

const (
	msgContactAccepted  = "Your inquiry was sent. We'll reply within one business day."
	msgContactMalformed = "Invalid request payload."
	msgContactInvalid   = "Invalid form fields."
	msgContactLimited   = "Too many attempts. Please try again shortly."
	msgContactDelivery  = "We could not submit your inquiry right now. Please try again shortly."
	msgContactInternal  = "Something went wrong. Please try again shortly."

	msgQuestionLength = "Please provide a question between 5 and 200 characters."
	msgFAQInternal    = "Unable to process request."

	msgNotFound         = "Not found."
	msgMethodNotAllowed = "Method not allowed."
)

type ContactUseCase interface {
	Submit(ctx context.Context, in usecase.ContactInput) (usecase.ContactOutput, error)
}

type FAQUseCase interface {
	Resolve(ctx context.Context, question string) (usecase.FAQOutput, error)
	Items() []domain.FAQItem
}

type contactResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type faqResponse struct {
	Answer string `json:"answer"`
}

type faqItemsResponse struct {
	Items []domain.FAQItem `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type faqRequest struct {
	Question *string `json:"question"`
}

// result is a transport independent response.
type result struct {
	status int
	body   any
	allow  string
}

// Handler serves the site API over API Gateway events or gin (see NewRouter).
type Handler struct {
	contact ContactUseCase
	faq     FAQUseCase
	log     *zap.Logger
}

func NewHandler(contact ContactUseCase, faq FAQUseCase, log *zap.Logger) (*Handler, error) {
	if contact == nil {
		return nil, errors.New("handler: contact use case must not be nil")
	}
	if faq == nil {
		return nil, errors.New("handler: faq use case must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{contact: contact, faq: faq, log: log}, nil
}

// Handle is the Lambda entry point for API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := toHeader(req.Headers, req.MultiValueHeaders)
	correlationID := correlationIDFrom(headers)
	log := h.log.With(zap.String("correlation_id", correlationID))

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			log.Warn("request body is not valid base64", zap.Error(err))
			decoded = nil
		}
		body = decoded
	}

	res := h.route(ctx, log, req.HTTPMethod, req.Path, headers, body)
	return toProxyResponse(res, correlationID, log), nil
}

func (h *Handler) route(ctx context.Context, log *zap.Logger, method, path string, headers http.Header, body []byte) result {
	switch strings.TrimSuffix(path, "/") {
	case contactPath:
		if method != http.MethodPost {
			return result{status: http.StatusMethodNotAllowed, body: errorResponse{Error: msgMethodNotAllowed}, allow: http.MethodPost}
		}
		return h.submitContact(ctx, log, headers, body)
	case faqPath:
		switch method {
		case http.MethodPost:
			return h.askFAQ(ctx, log, body)
		case http.MethodGet:
			return h.listFAQ()
		default:
			return result{status: http.StatusMethodNotAllowed, body: errorResponse{Error: msgMethodNotAllowed}, allow: "GET, POST"}
		}
	default:
		return result{status: http.StatusNotFound, body: errorResponse{Error: msgNotFound}}
	}
}

func (h *Handler) submitContact(ctx context.Context, log *zap.Logger, headers http.Header, body []byte) result {
	out, err := h.contact.Submit(ctx, usecase.ContactInput{Headers: headers, Body: body})
	if err != nil {
		status, message := contactErrorResponse(err)
		if status == http.StatusInternalServerError {
			log.Error("contact submission failed", zap.Error(err))
		}
		return result{status: status, body: contactResponse{Success: false, Message: message}}
	}
	log.Info("contact submission accepted", zap.String("submission_id", out.SubmissionID))
	return result{status: http.StatusOK, body: contactResponse{Success: true, Message: msgContactAccepted}}
}

func (h *Handler) askFAQ(ctx context.Context, log *zap.Logger, body []byte) result {
	var req faqRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Question == nil {
		return result{status: http.StatusBadRequest, body: errorResponse{Error: msgQuestionLength}}
	}

	out, err := h.faq.Resolve(ctx, *req.Question)
	if err != nil {
		var usecaseErr *usecase.Error
		if errors.As(err, &usecaseErr) && usecaseErr.Code == usecase.ErrorInvalidInput {
			return result{status: http.StatusBadRequest, body: errorResponse{Error: msgQuestionLength}}
		}
		log.Error("faq resolve failed", zap.Error(err))
		return result{status: http.StatusInternalServerError, body: errorResponse{Error: msgFAQInternal}}
	}
	log.Debug("faq answered", zap.String("source", out.Source))
	return result{status: http.StatusOK, body: faqResponse{Answer: out.Answer}}
}

func (h *Handler) listFAQ() result {
	return result{status: http.StatusOK, body: faqItemsResponse{Items: h.faq.Items()}}
}

// contactErrorResponse maps use case errors to a status and a message that
// never reveals which check rejected the submission.
func contactErrorResponse(err error) (int, string) {
	var usecaseErr *usecase.Error
	if !errors.As(err, &usecaseErr) {
		return http.StatusInternalServerError, msgContactInternal
	}
	switch usecaseErr.Code {
	case usecase.ErrorMalformedPayload:
		return http.StatusBadRequest, msgContactMalformed
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, msgContactInvalid
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, msgContactLimited
	case usecase.ErrorDelivery:
		return http.StatusBadGateway, msgContactDelivery
	default:
		return http.StatusInternalServerError, msgContactInternal
	}
}

func toProxyResponse(res result, correlationID string, log *zap.Logger) events.APIGatewayProxyResponse {
	headers := map[string]string{
		"Content-Type":    "application/json",
		CorrelationHeader: correlationID,
	}
	if res.allow != "" {
		headers["Allow"] = res.allow
	}

	b, err := json.Marshal(res.body)
	if err != nil {
		log.Error("failed to encode response", zap.Error(err))
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    headers,
			Body:       `{"error":"Unable to process request."}`,
		}
	}
	return events.APIGatewayProxyResponse{StatusCode: res.status, Headers: headers, Body: string(b)}
}

func toHeader(single map[string]string, multi map[string][]string) http.Header {
	h := make(http.Header, len(single)+len(multi))
	for k, vs := range multi {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	for k, v := range single {
		if h.Get(k) == "" {
			h.Set(k, v)
		}
	}
	return h
}

func correlationIDFrom(h http.Header) string {
	if id := strings.TrimSpace(h.Get(CorrelationHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}
