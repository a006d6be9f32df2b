package config

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/grading"
)

const (
	ChatProviderOpenAI = "openai"
	ChatProviderGemini = "gemini"
)

type GradingConfig struct {
	Endpoint string
	APIKey   string
	Model    string

	ChatProvider string
	ChatAPIKey   string
	ChatBaseURL  string
	ChatModel    string

	StubEnabled      bool
	Timeout          time.Duration
	EvaluateOnFinish bool
}

// BuildChain assembles the tiers in attempt order: the dedicated endpoint,
// the chat provider, then the stub. Tiers without credentials are skipped
// by the chain at grading time.
func (c *GradingConfig) BuildChain(logger *slog.Logger) *grading.Chain {
	tiers := []grading.Tier{
		grading.NewEndpointTier(c.Endpoint, c.APIKey, c.Model, &http.Client{Timeout: c.Timeout}),
	}

	var completer grading.ChatCompleter
	if c.ChatAPIKey != "" {
		switch c.ChatProvider {
		case ChatProviderOpenAI:
			completer = grading.NewOpenAICompleter(c.ChatBaseURL, c.ChatAPIKey, c.ChatModel)
		case ChatProviderGemini:
			completer = grading.NewGeminiCompleter(c.ChatAPIKey, c.ChatModel)
		}
	}
	tiers = append(tiers, grading.NewChatTier(completer), grading.NewStubTier(c.StubEnabled))

	chain := grading.NewChain(logger.With("component", "grading"), tiers...)
	logger.Info("Grading chain configured", "tiers", chain.Tiers())
	return chain
}
