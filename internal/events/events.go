package events

import (
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType represents the kinds of events the engine emits
type EventType string

const (
	EventSessionCompleted    EventType = "session.completed"
	EventEvaluationCompleted EventType = "evaluation.completed"
)

const (
	eventSource  = "assessment-engine"
	eventVersion = "1.0"
)

// Event is the envelope for every published event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type EvaluationCompletedEvent struct {
	SessionToken string                  `json:"session_token"`
	Status       models.EvaluationStatus `json:"status"`
	Grader       string                  `json:"grader"`
	Total        decimal.NullDecimal     `json:"total"`
	Attempts     int                     `json:"attempts"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
}

func newEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

// NewSessionCompletedEvent wraps the analytics snapshot of a finalized session.
func NewSessionCompletedEvent(snapshot models.CompletionSnapshot) *Event {
	return newEvent(EventSessionCompleted, snapshot)
}

func NewEvaluationCompletedEvent(token string, ev *models.EvaluationRecord) *Event {
	return newEvent(EventEvaluationCompleted, EvaluationCompletedEvent{
		SessionToken: token,
		Status:       ev.Status,
		Grader:       ev.Grader,
		Total:        ev.Total,
		Attempts:     ev.Attempts,
		CompletedAt:  ev.CompletedAt,
	})
}

func GenerateEventID() string {
	return uuid.NewString()
}
