package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ExamKind string

const (
	ExamKindTest     ExamKind = "test"
	ExamKindPractice ExamKind = "practice"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// AssessmentSession is one participant's single timed attempt.
// ItemIDs is fixed at creation and never rewritten.
type AssessmentSession struct {
	ID       uint     `json:"-" gorm:"primaryKey"`
	Token    string   `json:"token" gorm:"size:36;not null;uniqueIndex"`
	Kind     ExamKind `json:"kind" gorm:"size:16;not null;index"`
	Category Category `json:"category,omitempty" gorm:"size:16"`

	ParticipantName string `json:"participant_name" gorm:"size:120;not null"`
	ParticipantAge  int    `json:"participant_age" gorm:"not null"`

	ItemIDs         datatypes.JSONSlice[uint] `json:"item_ids" gorm:"type:jsonb;not null"`
	DurationSeconds int                       `json:"duration_seconds" gorm:"not null"`
	StartedAt       time.Time                 `json:"started_at" gorm:"not null"`
	DeadlineAt      time.Time                 `json:"deadline_at" gorm:"not null;index"`

	IsCompleted bool                `json:"is_completed" gorm:"default:false;index"`
	FinishedAt  *time.Time          `json:"finished_at"`
	TotalScore  decimal.NullDecimal `json:"total_score" gorm:"type:numeric(8,2)"`

	// Written exam progress and client telemetry
	AutosaveVersion int        `json:"autosave_version" gorm:"default:0"`
	LastAutosaveAt  *time.Time `json:"last_autosave_at"`
	KeypressCount   int        `json:"keypress_count" gorm:"default:0"`
	PasteBlocked    int        `json:"paste_blocked" gorm:"default:0"`
	FocusLoss       int        `json:"focus_loss" gorm:"default:0"`
	UserAgent       string     `json:"-" gorm:"size:255"`
	IPHash          string     `json:"-" gorm:"size:64"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *AssessmentSession) Status() SessionStatus {
	if s.IsCompleted {
		return SessionStatusCompleted
	}
	return SessionStatusActive
}

func (s *AssessmentSession) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

func (s *AssessmentSession) HasItem(itemID uint) bool {
	for _, id := range s.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// TaskItemID returns the single task of a written exam session.
func (s *AssessmentSession) TaskItemID() (uint, bool) {
	if s.Kind != ExamKindPractice || len(s.ItemIDs) == 0 {
		return 0, false
	}
	return s.ItemIDs[0], true
}

// ElapsedSeconds is measured up to the finish time, or up to now for an active session.
func (s *AssessmentSession) ElapsedSeconds(now time.Time) int {
	end := now
	if s.FinishedAt != nil {
		end = *s.FinishedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return int(end.Sub(s.StartedAt).Seconds())
}
