package grading

import (
	"context"

	"github.com/shopspring/decimal"
)

// DefaultStubFraction is the share of each maximum the stub grader awards.
var DefaultStubFraction = decimal.RequireFromString("0.7")

const (
	stubDeductions = "Demo: roughly 30% deducted as an example."
	stubFeedback   = "Demonstration grade: the structure is broadly correct; pay attention to the clarity " +
		"of the conclusions and to references to supreme court practice."
)

// StubTier is a deterministic, network-free grader that awards a fixed
// fraction of every maximum, rounded to one decimal place. It cannot fail.
type StubTier struct {
	enabled  bool
	fraction decimal.Decimal
}

func NewStubTier(enabled bool) *StubTier {
	return &StubTier{enabled: enabled, fraction: DefaultStubFraction}
}

func (t *StubTier) Name() string { return "stub" }

func (t *StubTier) Configured() bool { return t.enabled }

func (t *StubTier) Grade(_ context.Context, req Request) (*Outcome, error) {
	groups := make([]RawGroup, 0, len(req.Rubric.Groups))
	total := decimal.Zero
	for _, g := range req.Rubric.Groups {
		criteria := make([]RawCriterion, 0, len(g.Criteria))
		for _, c := range g.Criteria {
			criteria = append(criteria, RawCriterion{
				Key:        c.Key,
				Title:      c.Title,
				Max:        ptr(c.Max),
				Score:      ptr(t.share(c.Max)),
				Deductions: stubDeductions,
			})
		}
		groupScore := t.share(g.Max)
		total = total.Add(groupScore)
		groups = append(groups, RawGroup{
			Key:      g.Key,
			Title:    g.Title,
			Max:      ptr(g.Max),
			Score:    ptr(groupScore),
			Criteria: criteria,
		})
	}

	return &Outcome{
		Grader: "stub",
		Params: map[string]interface{}{"fraction": t.fraction.String()},
		Raw: &RawResult{
			Total:    ptr(total),
			Groups:   groups,
			Feedback: stubFeedback,
		},
	}, nil
}

func (t *StubTier) share(max decimal.Decimal) decimal.Decimal {
	return max.Mul(t.fraction).RoundBank(1)
}

func ptr(d decimal.Decimal) *decimal.Decimal { return &d }
