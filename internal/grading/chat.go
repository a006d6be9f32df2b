package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	chatTemperature = 0.1
	chatMaxTokens   = 1800
)

// ChatCompleter is a chat completion backend that answers with a JSON object.
type ChatCompleter interface {
	Provider() string
	Model() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// ChatTier grades through a general purpose chat model instructed to reply
// with JSON only. A nil completer leaves the tier unconfigured.
type ChatTier struct {
	completer ChatCompleter
}

func NewChatTier(completer ChatCompleter) *ChatTier {
	return &ChatTier{completer: completer}
}

func (t *ChatTier) Name() string { return "chat" }

func (t *ChatTier) Configured() bool { return t.completer != nil }

func (t *ChatTier) Grade(ctx context.Context, req Request) (*Outcome, error) {
	user, err := buildUserPrompt(req)
	if err != nil {
		return nil, err
	}

	text, err := t.completer.Complete(ctx, systemPrompt, user)
	if err != nil {
		return nil, &ExternalCallError{Tier: t.Name(), Cause: err}
	}

	result, err := ParseLenient(t.Name(), text)
	if err != nil {
		return nil, err
	}

	rawText, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		rawText = nil
	}
	return &Outcome{
		Grader: t.completer.Model(),
		Params: map[string]interface{}{
			"provider":    t.completer.Provider(),
			"model":       t.completer.Model(),
			"temperature": chatTemperature,
			"max_tokens":  chatMaxTokens,
		},
		Raw:     result,
		RawText: rawText,
	}, nil
}

const systemPrompt = "You are an expert examiner of court decisions. Grade the finalized document " +
	"against the rubric (groups of criteria, each with a maximum score). Return strictly JSON."

var schemaHint = map[string]interface{}{
	"total": "number (sum of group scores, <= rubric.total_max)",
	"groups": []map[string]interface{}{{
		"key":   "group key",
		"title": "group title",
		"max":   "number",
		"score": "number (0..max)",
		"criteria": []map[string]string{{
			"key":        "criterion key",
			"title":      "criterion title",
			"max":        "number",
			"score":      "number (0..max)",
			"deductions": "short explanation what is missing/incorrect",
		}},
	}},
	"feedback": "overall summary of deductions and suggestions",
}

func buildUserPrompt(req Request) (string, error) {
	rubricJSON, err := json.Marshal(req.Rubric)
	if err != nil {
		return "", fmt.Errorf("failed to marshal rubric: %w", err)
	}
	schemaJSON, err := json.Marshal(schemaHint)
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema hint: %w", err)
	}

	document := req.Document
	if strings.TrimSpace(document) == "" {
		document = strings.TrimSpace(req.Answer.Motivation + "\n\n" + req.Answer.Resolution)
	}

	parts := []string{
		"SPECIALIZATION: " + string(req.Category),
		"\nRUBRIC (JSON):\n" + string(rubricJSON),
		"\nREFERENCE DECISIONS:\n" + req.ReferenceBundle(),
		"\n\nCANDIDATE DOCUMENT:\n" + document,
		"\nOUTPUT REQUIREMENTS: return JSON following the schema below, numbers are decimals; respect every max.",
		"JSON SCHEMA:\n" + string(schemaJSON),
	}
	return strings.Join(parts, "\n\n"), nil
}
