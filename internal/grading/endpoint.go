package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

const maxEndpointResponseBytes = 4 << 20

// EndpointTier posts the full grading payload to a dedicated grading service.
type EndpointTier struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewEndpointTier(url, apiKey, model string, client *http.Client) *EndpointTier {
	if client == nil {
		client = http.DefaultClient
	}
	if model == "" {
		model = "external"
	}
	return &EndpointTier{
		url:    strings.TrimSpace(url),
		apiKey: strings.TrimSpace(apiKey),
		model:  model,
		client: client,
	}
}

func (t *EndpointTier) Name() string { return "endpoint" }

func (t *EndpointTier) Configured() bool {
	return t.url != "" && t.apiKey != ""
}

type endpointPayload struct {
	Spec             models.Category `json:"spec"`
	Rubric           *models.Rubric  `json:"rubric"`
	MaxScore         string          `json:"max_score"`
	Task             endpointTask    `json:"task"`
	Candidate        endpointAnswer  `json:"candidate"`
	CompiledDocument string          `json:"compiled_document"`
	Meta             Meta            `json:"meta"`
}

type endpointTask struct {
	Template  models.TaskTemplate         `json:"template"`
	Decisions map[string]endpointDecision `json:"decisions"`
}

type endpointDecision struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

type endpointAnswer struct {
	MotivationText string `json:"motivation_text"`
	ResolutionText string `json:"resolution_text"`
}

func newEndpointPayload(req Request) endpointPayload {
	decisions := make(map[string]endpointDecision, len(req.References))
	for _, ref := range req.References {
		decisions[ref.Key] = endpointDecision{Text: ref.Text, Source: ref.Source}
	}
	return endpointPayload{
		Spec:     req.Category,
		Rubric:   req.Rubric,
		MaxScore: req.MaxScore.StringFixed(2),
		Task: endpointTask{
			Template:  req.Template,
			Decisions: decisions,
		},
		Candidate: endpointAnswer{
			MotivationText: req.Answer.Motivation,
			ResolutionText: req.Answer.Resolution,
		},
		CompiledDocument: req.Document,
		Meta:             req.Meta,
	}
}

func (t *EndpointTier) Grade(ctx context.Context, req Request) (*Outcome, error) {
	body, err := json.Marshal(newEndpointPayload(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal grading payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, &ExternalCallError{Tier: t.Name(), Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &ExternalCallError{Tier: t.Name(), Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEndpointResponseBytes))
	if err != nil {
		return nil, &ExternalCallError{Tier: t.Name(), Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExternalCallError{Tier: t.Name(), Cause: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	result, err := ParseLenient(t.Name(), string(raw))
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Grader:  t.model,
		Params:  map[string]interface{}{"endpoint": t.url},
		Raw:     result,
		RawText: raw,
	}, nil
}
