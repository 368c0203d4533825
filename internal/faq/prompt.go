package faq

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// AnswerSchema is the JSON schema providers are asked to follow.
const AnswerSchema = `{
	"type":"object",
	"additionalProperties":false,
	"properties":{
		"answer":{"type":"string"}
	},
	"required":["answer"]
}`

type answerResponse struct {
	Answer string `json:"answer"`
}

// SystemPrompt is the instruction block sent ahead of every question.
func SystemPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are an AI assistant providing information about Jertine Tech, a company offering integrated digital solutions to small and medium-sized businesses across South Africa.",
		"",
		"Task:",
		"Answer the user's question about Jertine Tech's services, process, or general pricing.",
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"Output Contract:",
		"Return JSON only with a single key answer (string) holding the final user-facing answer.",
	}, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Keep responses professional and concise.",
		"2) Do not answer if you are not confident or the information is not part of your knowledge of Jertine Tech.",
		"3) For specific payment methods, internal policies, or topics unrelated to Jertine Tech, respond exactly: \"" + DefaultAnswer + "\"",
	}, "\n")
}

// ParseAnswer decodes a provider reply that must be exactly one JSON object
// with a non-empty answer.
func ParseAnswer(raw string) (string, error) {
	var out answerResponse
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return "", fmt.Errorf("faq: decode answer: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return "", errors.New("faq: decode answer: multiple JSON values")
		}
		return "", fmt.Errorf("faq: decode answer trailing data: %w", err)
	}
	answer := strings.TrimSpace(out.Answer)
	if answer == "" {
		return "", errors.New("faq: answer is empty")
	}
	return answer, nil
}
