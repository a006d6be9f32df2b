package services

import (
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/shopspring/decimal"
)

// ===== REQUESTS =====

type Participant struct {
	Name string `json:"name" validate:"required,max=120,participant_name"`
	Age  int    `json:"age" validate:"required,gte=14,lte=99"`
}

// ClientInfo is captured from the starting request for analytics.
type ClientInfo struct {
	UserAgent string `json:"-"`
	IP        string `json:"-"`
}

type StartTestRequest struct {
	Participant
	Client ClientInfo `json:"-"`
}

type StartPracticeRequest struct {
	Participant
	Category models.Category `json:"category" validate:"required,exam_category"`
	Client   ClientInfo      `json:"-"`
}

// AnswerSubmission is one item answer. IsCorrect is accepted for client
// compatibility and ignored.
type AnswerSubmission struct {
	ItemID     uint    `json:"item_id" validate:"required"`
	OptionID   *uint   `json:"option_id,omitempty"`
	IsCorrect  *bool   `json:"is_correct,omitempty"`
	Motivation *string `json:"motivation,omitempty"`
	Resolution *string `json:"resolution,omitempty"`
}

type SubmitAnswersRequest struct {
	Answers   []AnswerSubmission `json:"answers" validate:"dive"`
	Finish    bool               `json:"finish"`
	FocusLoss *int               `json:"focus_loss,omitempty" validate:"omitempty,gte=0"`
}

type AutosaveRequest struct {
	Motivation    *string `json:"motivation,omitempty"`
	Resolution    *string `json:"resolution,omitempty"`
	KeypressDelta int     `json:"keypress_delta" validate:"gte=0"`
	PasteDelta    int     `json:"paste_delta" validate:"gte=0"`
}

type FinishRequest struct {
	Motivation *string `json:"motivation,omitempty"`
	Resolution *string `json:"resolution,omitempty"`
	FocusLoss  *int    `json:"focus_loss,omitempty" validate:"omitempty,gte=0"`
}

// ===== RESPONSES =====

type SessionView struct {
	Token            string                `json:"token"`
	Kind             models.ExamKind       `json:"kind"`
	Category         models.Category       `json:"category,omitempty"`
	Status           models.SessionStatus  `json:"status"`
	ParticipantName  string                `json:"participant_name"`
	ParticipantAge   int                   `json:"participant_age"`
	StartedAt        time.Time             `json:"started_at"`
	DeadlineAt       time.Time             `json:"deadline_at"`
	DurationSeconds  int                   `json:"duration_seconds"`
	RemainingSeconds int                   `json:"remaining_seconds"`
	Items            []ItemView            `json:"items"`
	Draft            *models.WrittenAnswer `json:"draft,omitempty"`
	AutosaveVersion  int                   `json:"autosave_version"`
}

// ItemView is an item as shown during a session. It never carries the answer key.
type ItemView struct {
	ID               uint                 `json:"id"`
	Kind             models.ItemKind      `json:"kind"`
	Number           int                  `json:"number"`
	Title            string               `json:"title,omitempty"`
	Text             string               `json:"text,omitempty"`
	TaskType         models.TaskType      `json:"task_type,omitempty"`
	Points           decimal.Decimal      `json:"points"`
	Options          []OptionView         `json:"options,omitempty"`
	Template         *models.TaskTemplate `json:"template,omitempty"`
	SelectedOptionID *uint                `json:"selected_option_id,omitempty"`
}

type OptionView struct {
	ID      uint   `json:"id"`
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

type TimeRemaining struct {
	Token            string    `json:"token"`
	RemainingSeconds int       `json:"remaining_seconds"`
	DeadlineAt       time.Time `json:"deadline_at"`
}

type SubmitResult struct {
	Recorded int            `json:"recorded"`
	Finished bool           `json:"finished"`
	Result   *SessionResult `json:"result,omitempty"`
}

type AutosaveResult struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
}

// SessionResult is the protocol of a completed session.
type SessionResult struct {
	Token           string              `json:"token"`
	Kind            models.ExamKind     `json:"kind"`
	Category        models.Category     `json:"category,omitempty"`
	ParticipantName string              `json:"participant_name"`
	ParticipantAge  int                 `json:"participant_age"`
	StartedAt       time.Time           `json:"started_at"`
	FinishedAt      *time.Time          `json:"finished_at"`
	DurationSeconds int                 `json:"duration_seconds"`
	TotalScore      decimal.NullDecimal `json:"total_score"`
	MaxScore        decimal.Decimal     `json:"max_score"`

	Rows []ResultRow `json:"rows,omitempty"`

	Document   string                `json:"document,omitempty"`
	Answer     *models.WrittenAnswer `json:"answer,omitempty"`
	Evaluation *EvaluationView       `json:"evaluation,omitempty"`
}

type ResultRow struct {
	ItemID           uint            `json:"item_id"`
	Number           int             `json:"number"`
	Text             string          `json:"text"`
	SelectedOptionID *uint           `json:"selected_option_id"`
	SelectedText     string          `json:"selected_text,omitempty"`
	CorrectOptionID  *uint           `json:"correct_option_id"`
	CorrectText      string          `json:"correct_text,omitempty"`
	IsCorrect        bool            `json:"is_correct"`
	AwardedScore     decimal.Decimal `json:"awarded_score"`
	Points           decimal.Decimal `json:"points"`
}

type EvaluationView struct {
	Status        models.EvaluationStatus `json:"status"`
	RequestedAt   time.Time               `json:"requested_at"`
	CompletedAt   *time.Time              `json:"completed_at"`
	Attempts      int                     `json:"attempts"`
	Grader        string                  `json:"grader"`
	Scores        models.EvaluationScores `json:"scores"`
	Total         decimal.NullDecimal     `json:"total"`
	Feedback      string                  `json:"feedback"`
	FailureReason string                  `json:"failure_reason,omitempty"`
	RetryAllowed  bool                    `json:"retry_allowed"`
}

func NewEvaluationView(ev *models.EvaluationRecord) *EvaluationView {
	if ev == nil {
		return nil
	}
	return &EvaluationView{
		Status:        ev.Status,
		RequestedAt:   ev.RequestedAt,
		CompletedAt:   ev.CompletedAt,
		Attempts:      ev.Attempts,
		Grader:        ev.Grader,
		Scores:        ev.Scores.Data(),
		Total:         ev.Total,
		Feedback:      ev.Feedback,
		FailureReason: ev.FailureReason,
		RetryAllowed:  ev.Status != models.EvaluationPending,
	}
}
