package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompletionSnapshot is what the analytics collaborator receives when a session finalizes.
type CompletionSnapshot struct {
	SessionToken    string              `json:"session_token"`
	Kind            ExamKind            `json:"kind"`
	Category        Category            `json:"category,omitempty"`
	ParticipantName string              `json:"name"`
	ParticipantAge  int                 `json:"age"`
	TotalScore      decimal.NullDecimal `json:"total_score"`
	QuestionCount   int                 `json:"question_count"`
	StartedAt       time.Time           `json:"started_at"`
	FinishedAt      time.Time           `json:"finished_at"`
	DurationSeconds int                 `json:"duration_seconds"`
	FocusLoss       int                 `json:"focus_loss"`
	KeypressCount   int                 `json:"keypress_count"`
	PasteBlocked    int                 `json:"paste_blocked"`
	AutosaveVersion int                 `json:"autosave_version"`
	EvaluationState EvaluationStatus    `json:"evaluation_status,omitempty"`
	UserAgent       string              `json:"user_agent,omitempty"`
	IPHash          string              `json:"ip_hash,omitempty"`
}

// NewCompletionSnapshot captures a finalized session. ev may be nil.
func NewCompletionSnapshot(s *AssessmentSession, ev *EvaluationRecord) CompletionSnapshot {
	snap := CompletionSnapshot{
		SessionToken:    s.Token,
		Kind:            s.Kind,
		Category:        s.Category,
		ParticipantName: s.ParticipantName,
		ParticipantAge:  s.ParticipantAge,
		TotalScore:      s.TotalScore,
		QuestionCount:   len(s.ItemIDs),
		StartedAt:       s.StartedAt,
		FocusLoss:       s.FocusLoss,
		KeypressCount:   s.KeypressCount,
		PasteBlocked:    s.PasteBlocked,
		AutosaveVersion: s.AutosaveVersion,
		UserAgent:       s.UserAgent,
		IPHash:          s.IPHash,
	}
	if s.FinishedAt != nil {
		snap.FinishedAt = *s.FinishedAt
		snap.DurationSeconds = s.ElapsedSeconds(*s.FinishedAt)
	}
	if ev != nil {
		snap.EvaluationState = ev.Status
		if ev.Status == EvaluationDone {
			snap.TotalScore = ev.Total
		}
	}
	return snap
}
