package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/shopspring/decimal"
)

// Tier is one grading strategy of the fallback chain.
type Tier interface {
	Name() string
	// Configured reports whether the tier has what it needs to be attempted.
	Configured() bool
	Grade(ctx context.Context, req Request) (*Outcome, error)
}

// Outcome is what a tier returns before normalization.
type Outcome struct {
	Grader  string
	Params  map[string]interface{}
	Raw     *RawResult
	RawText []byte
}

// Result is a normalized grading result ready to be stored.
type Result struct {
	Grader    string
	Params    map[string]interface{}
	Scores    models.EvaluationScores
	Total     decimal.Decimal
	Feedback  string
	RawOutput []byte
	Duration  time.Duration
}

// Chain attempts its tiers in order until one produces a result.
type Chain struct {
	tiers  []Tier
	logger *slog.Logger
}

func NewChain(logger *slog.Logger, tiers ...Tier) *Chain {
	return &Chain{tiers: tiers, logger: logger}
}

// Tiers lists the names of the configured tiers in attempt order.
func (c *Chain) Tiers() []string {
	var names []string
	for _, t := range c.tiers {
		if t.Configured() {
			names = append(names, t.Name())
		}
	}
	return names
}

// Grade runs the chain. Unconfigured tiers are skipped; a failing tier is
// logged and the next one is tried. The returned error is a *ChainError.
func (c *Chain) Grade(ctx context.Context, req Request) (*Result, error) {
	if req.Rubric == nil {
		return nil, errors.New("grading request has no rubric")
	}

	var failures []TierFailure
	for _, tier := range c.tiers {
		if !tier.Configured() {
			continue
		}
		start := time.Now()
		outcome, err := c.attempt(ctx, tier, req)
		if err != nil {
			c.logger.WarnContext(ctx, "Grading tier failed",
				"tier", tier.Name(),
				"session_token", req.SessionToken,
				"duration", time.Since(start),
				"error", err)
			failures = append(failures, TierFailure{Tier: tier.Name(), Err: err})
			continue
		}

		scores, total := Normalize(req.Rubric, outcome.Raw)
		c.logger.InfoContext(ctx, "Grading tier succeeded",
			"tier", tier.Name(),
			"grader", outcome.Grader,
			"session_token", req.SessionToken,
			"total", total.String(),
			"duration", time.Since(start))

		return &Result{
			Grader:    outcome.Grader,
			Params:    outcome.Params,
			Scores:    scores,
			Total:     total,
			Feedback:  outcome.Raw.Feedback,
			RawOutput: outcome.RawText,
			Duration:  time.Since(start),
		}, nil
	}
	return nil, &ChainError{Failures: failures}
}

func (c *Chain) attempt(ctx context.Context, tier Tier, req Request) (outcome *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ExternalCallError{Tier: tier.Name(), Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	outcome, err = tier.Grade(ctx, req)
	if err == nil && (outcome == nil || outcome.Raw == nil) {
		err = &ParseError{Tier: tier.Name(), Reason: "tier returned no output"}
	}
	return outcome, err
}
