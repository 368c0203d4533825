// Package gemini answers FAQ questions through the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"jertine-site/internal/faq"
)

const DefaultModel = "gemini-2.0-flash"

// generator is the slice of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client answers FAQ questions with a JSON response schema.
type Client struct {
	models generator
	model  string
}

// NewClient creates a Gemini API client for apiKey.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newWithGenerator(gc.Models, model), nil
}

func newWithGenerator(g generator, model string) *Client {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}
	return &Client{models: g, model: model}
}

// Answer asks the model for an answer to question.
func (c *Client) Answer(ctx context.Context, question string) (string, error) {
	temperature := float32(0.2)
	resp, err := c.models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(question, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(faq.SystemPrompt(), genai.RoleUser),
			Temperature:       &temperature,
			ResponseMIMEType:  "application/json",
			ResponseSchema:    answerSchema(),
		},
	)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp == nil {
		return "", errors.New("gemini: empty response")
	}
	return faq.ParseAnswer(resp.Text())
}

func answerSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"answer": {Type: genai.TypeString},
		},
		Required: []string{"answer"},
	}
}
