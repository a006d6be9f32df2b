package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/events"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/shopspring/decimal"
)

// CompletionRecorder performs the one-time Active to Completed transition and
// announces finished sessions and evaluations to the analytics collaborator.
type CompletionRecorder interface {
	// MarkCompleted must run inside the transaction holding the session lock.
	// It reports false when another caller completed the session first.
	MarkCompleted(ctx context.Context, repo repositories.Repository, session *models.AssessmentSession,
		finishedAt time.Time, total decimal.NullDecimal) (bool, error)

	// NotifySessionCompleted and NotifyEvaluationCompleted never block and never fail.
	NotifySessionCompleted(ctx context.Context, session *models.AssessmentSession, evaluation *models.EvaluationRecord)
	NotifyEvaluationCompleted(ctx context.Context, token string, evaluation *models.EvaluationRecord)
}

type completionRecorder struct {
	publisher  events.EventPublisher
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewCompletionRecorder(publisher events.EventPublisher, dispatcher *Dispatcher, logger *slog.Logger) CompletionRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher(0, logger)
	}
	return &completionRecorder{
		publisher:  publisher,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (r *completionRecorder) MarkCompleted(ctx context.Context, repo repositories.Repository, session *models.AssessmentSession,
	finishedAt time.Time, total decimal.NullDecimal) (bool, error) {

	won, err := repo.Session().MarkCompleted(ctx, session.ID, finishedAt, total)
	if err != nil {
		return false, fmt.Errorf("failed to complete session: %w", err)
	}
	if !won {
		return false, nil
	}

	session.IsCompleted = true
	session.FinishedAt = &finishedAt
	session.TotalScore = total
	return true, nil
}

func (r *completionRecorder) NotifySessionCompleted(ctx context.Context, session *models.AssessmentSession, evaluation *models.EvaluationRecord) {
	if r.publisher == nil {
		return
	}
	event := events.NewSessionCompletedEvent(models.NewCompletionSnapshot(session, evaluation))

	r.logger.InfoContext(ctx, "Publishing session completed event",
		"session_token", session.Token, "kind", session.Kind, "event_id", event.ID)
	r.dispatcher.Go(ctx, "publish "+string(event.Type), func(ctx context.Context) error {
		return r.publisher.Publish(ctx, event)
	})
}

func (r *completionRecorder) NotifyEvaluationCompleted(ctx context.Context, token string, evaluation *models.EvaluationRecord) {
	if r.publisher == nil || evaluation == nil {
		return
	}
	event := events.NewEvaluationCompletedEvent(token, evaluation)

	r.dispatcher.Go(ctx, "publish "+string(event.Type), func(ctx context.Context) error {
		return r.publisher.Publish(ctx, event)
	})
}
