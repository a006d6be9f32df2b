package grading

import (
	"strings"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/shopspring/decimal"
)

// TruncationMarker is appended to any text cut down to its budget.
const TruncationMarker = "\n\n[... truncated ...]"

const truncationReserve = 200

// Limits are the character budgets of a grading request.
type Limits struct {
	ReferenceChars int
	DocumentChars  int
}

var DefaultLimits = Limits{
	ReferenceChars: 16000,
	DocumentChars:  24000,
}

// Request is the bounded payload sent to every tier.
type Request struct {
	SessionToken string
	Category     models.Category
	Rubric       *models.Rubric
	MaxScore     decimal.Decimal
	Template     models.TaskTemplate
	References   []models.NamedReference
	Answer       models.WrittenAnswer
	Document     string
	Meta         Meta
}

type Meta struct {
	DurationSeconds int `json:"duration_sec"`
	KeypressCount   int `json:"keypress_count"`
	PasteBlocked    int `json:"paste_blocked"`
}

// BuildRequest assembles a request from a finalized written exam session.
// References and the compiled document are cut to the budgets in limits.
func BuildRequest(session *models.AssessmentSession, item *models.AssessmentItem, rubric *models.Rubric,
	answer models.WrittenAnswer, document string, now time.Time, limits Limits) Request {

	refs := item.ReferenceData().Ordered()
	for i := range refs {
		refs[i].Text = Truncate(refs[i].Text, limits.ReferenceChars)
	}

	return Request{
		SessionToken: session.Token,
		Category:     session.Category,
		Rubric:       rubric,
		MaxScore:     item.Points,
		Template:     item.TemplateData(),
		References:   refs,
		Answer:       answer,
		Document:     Truncate(document, limits.DocumentChars),
		Meta: Meta{
			DurationSeconds: session.ElapsedSeconds(now),
			KeypressCount:   session.KeypressCount,
			PasteBlocked:    session.PasteBlocked,
		},
	}
}

// Truncate cuts s to a head of max-200 characters followed by TruncationMarker
// when s is longer than max characters. A non-positive max disables the cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	head := max - truncationReserve
	if head < 0 {
		head = 0
	}
	return string(runes[:head]) + TruncationMarker
}

// ReferenceBundle renders the reference decisions as one block of text.
func (r Request) ReferenceBundle() string {
	if len(r.References) == 0 {
		return "(no reference decisions available)"
	}
	parts := make([]string, 0, len(r.References))
	for _, ref := range r.References {
		parts = append(parts, "== "+strings.ToUpper(ref.Key)+" DECISION ==\n"+ref.Text)
	}
	return strings.Join(parts, "\n\n")
}
