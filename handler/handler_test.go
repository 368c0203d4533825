package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"jertine-site/internal/domain"
	"jertine-site/internal/usecase"
)

type stubContact struct {
	out usecase.ContactOutput
	err error
	in  usecase.ContactInput
}

func (s *stubContact) Submit(_ context.Context, in usecase.ContactInput) (usecase.ContactOutput, error) {
	s.in = in
	return s.out, s.err
}

type stubFAQ struct {
	out      usecase.FAQOutput
	err      error
	question string
	items    []domain.FAQItem
}

func (s *stubFAQ) Resolve(_ context.Context, question string) (usecase.FAQOutput, error) {
	s.question = question
	return s.out, s.err
}

func (s *stubFAQ) Items() []domain.FAQItem {
	return s.items
}

func newTestHandler(t *testing.T, c *stubContact, f *stubFAQ) *Handler {
	t.Helper()
	h, err := NewHandler(c, f, nil)
	require.NoError(t, err)
	return h
}

func makeEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, &stubFAQ{}, nil)
	require.Error(t, err)
	_, err = NewHandler(&stubContact{}, nil, nil)
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// Contact
// ---------------------------------------------------------------------------

func TestHandle_ContactAccepted(t *testing.T) {
	contact := &stubContact{out: usecase.ContactOutput{SubmissionID: "sub-1"}}
	h := newTestHandler(t, contact, &stubFAQ{})

	event := makeEvent(http.MethodPost, "/api/contact", `{"name":"Jo"}`)
	event.Headers["x-forwarded-for"] = "203.0.113.9"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Headers["Content-Type"])
	require.NotEmpty(t, resp.Headers[CorrelationHeader])

	out := parseBody[contactResponse](t, resp.Body)
	require.Equal(t, contactResponse{Success: true, Message: "Your inquiry was sent. We'll reply within one business day."}, out)
	require.Equal(t, `{"name":"Jo"}`, string(contact.in.Body))
	require.Equal(t, "203.0.113.9", contact.in.Headers.Get("X-Forwarded-For"))
}

func TestHandle_ContactErrors(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "malformed", err: &usecase.Error{Code: usecase.ErrorMalformedPayload, Reason: "invalid_json"}, status: http.StatusBadRequest, message: "Invalid request payload."},
		{name: "invalid fields", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_fields"}, status: http.StatusBadRequest, message: "Invalid form fields."},
		{name: "honeypot", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "honeypot"}, status: http.StatusBadRequest, message: "Invalid form fields."},
		{name: "too fast", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "submitted_too_fast"}, status: http.StatusBadRequest, message: "Invalid form fields."},
		{name: "rate limited", err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "rate_limited"}, status: http.StatusTooManyRequests, message: "Too many attempts. Please try again shortly."},
		{name: "delivery", err: &usecase.Error{Code: usecase.ErrorDelivery, Reason: "webhook_delivery_failed"}, status: http.StatusBadGateway, message: "We could not submit your inquiry right now. Please try again shortly."},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, message: "Something went wrong. Please try again shortly."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, &stubContact{err: tc.err}, &stubFAQ{})

			resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/contact", `{}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[contactResponse](t, resp.Body)
			require.False(t, out.Success)
			require.Equal(t, tc.message, out.Message)
			require.NotContains(t, resp.Body, "boom")
		})
	}
}

func TestHandle_Base64Body(t *testing.T) {
	contact := &stubContact{}
	h := newTestHandler(t, contact, &stubFAQ{})

	event := makeEvent(http.MethodPost, "/api/contact", base64.StdEncoding.EncodeToString([]byte(`{"a":1}`)))
	event.IsBase64Encoded = true
	_, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(contact.in.Body))
}

// ---------------------------------------------------------------------------
// FAQ
// ---------------------------------------------------------------------------

func TestHandle_FAQAnswer(t *testing.T) {
	faq := &stubFAQ{out: usecase.FAQOutput{Answer: "We build websites.", Source: usecase.SourceAI}}
	h := newTestHandler(t, &stubContact{}, faq)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/faq", `{"question":"What do you build?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "What do you build?", faq.question)
	require.Equal(t, faqResponse{Answer: "We build websites."}, parseBody[faqResponse](t, resp.Body))
}

func TestHandle_FAQBadRequests(t *testing.T) {
	for _, body := range []string{`not-json`, `{}`, `{"question":42}`, `{"question":"hey"}`} {
		faq := &stubFAQ{err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "question_length"}}
		h := newTestHandler(t, &stubContact{}, faq)

		resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/faq", body))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		out := parseBody[errorResponse](t, resp.Body)
		require.Equal(t, "Please provide a question between 5 and 200 characters.", out.Error)
	}
}

func TestHandle_FAQUnexpectedError(t *testing.T) {
	h := newTestHandler(t, &stubContact{}, &stubFAQ{err: errors.New("boom")})

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/api/faq", `{"question":"What do you build?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, "Unable to process request.", parseBody[errorResponse](t, resp.Body).Error)
}

func TestHandle_FAQItems(t *testing.T) {
	items := []domain.FAQItem{{Question: "Q?", Answer: "A."}}
	h := newTestHandler(t, &stubContact{}, &stubFAQ{items: items})

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/api/faq/", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, faqItemsResponse{Items: items}, parseBody[faqItemsResponse](t, resp.Body))
}

// ---------------------------------------------------------------------------
// Routing and headers
// ---------------------------------------------------------------------------

func TestHandle_Routing(t *testing.T) {
	h := newTestHandler(t, &stubContact{}, &stubFAQ{})

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/api/contact", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, http.MethodPost, resp.Headers["Allow"])

	resp, err = h.Handle(context.Background(), makeEvent(http.MethodDelete, "/api/faq", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, "GET, POST", resp.Headers["Allow"])

	resp, err = h.Handle(context.Background(), makeEvent(http.MethodGet, "/nope", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := newTestHandler(t, &stubContact{}, &stubFAQ{})

	event := makeEvent(http.MethodGet, "/api/faq", "")
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers[CorrelationHeader])
}

func TestHandle_MultiValueHeaders(t *testing.T) {
	contact := &stubContact{}
	h := newTestHandler(t, contact, &stubFAQ{})

	event := makeEvent(http.MethodPost, "/api/contact", `{}`)
	event.MultiValueHeaders = map[string][]string{"X-Forwarded-For": {"198.51.100.1, 10.0.0.1"}}
	event.Headers["X-Forwarded-For"] = "ignored"
	_, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "198.51.100.1, 10.0.0.1", contact.in.Headers.Get("X-Forwarded-For"))
}

// ---------------------------------------------------------------------------
// gin router
// ---------------------------------------------------------------------------

func setupTestRouter(t *testing.T, c *stubContact, f *stubFAQ) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("jertine_up 1\n"))
	})
	return NewRouter(newTestHandler(t, c, f), metrics)
}

func TestRouter_Contact(t *testing.T) {
	contact := &stubContact{err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "rate_limited"}}
	router := setupTestRouter(t, contact, &stubFAQ{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(`{"name":"Jo"}`))
	req.Header.Set("X-Real-IP", "192.0.2.44")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get(CorrelationHeader))
	require.Equal(t, `{"name":"Jo"}`, string(contact.in.Body))
	require.Equal(t, "192.0.2.44", contact.in.Headers.Get("X-Real-IP"))

	out := parseBody[contactResponse](t, w.Body.String())
	require.Equal(t, "Too many attempts. Please try again shortly.", out.Message)
}

func TestRouter_FAQ(t *testing.T) {
	faq := &stubFAQ{
		out:   usecase.FAQOutput{Answer: "Yes.", Source: usecase.SourceFallback},
		items: []domain.FAQItem{{Question: "Q?", Answer: "A."}},
	}
	router := setupTestRouter(t, &stubContact{}, faq)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/faq", strings.NewReader(`{"question":"Do you offer support?"}`))
	req.Header.Set(CorrelationHeader, "corr-9")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "corr-9", w.Header().Get(CorrelationHeader))
	require.Equal(t, "Yes.", parseBody[faqResponse](t, w.Body.String()).Answer)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/faq", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, parseBody[faqItemsResponse](t, w.Body.String()).Items, 1)
}

func TestRouter_OperationalRoutes(t *testing.T) {
	router := setupTestRouter(t, &stubContact{}, &stubFAQ{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "jertine_up")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/contact", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}
