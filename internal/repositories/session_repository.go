package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/shopspring/decimal"
)

// SessionRepository persists assessment sessions
type SessionRepository interface {
	Create(ctx context.Context, session *models.AssessmentSession) error
	GetByToken(ctx context.Context, token string, lock LockMode) (*models.AssessmentSession, error)
	List(ctx context.Context, filters SessionFilters) ([]*models.AssessmentSession, int64, error)

	// MarkCompleted flips the completion flag only if it is still unset and
	// reports whether this call performed the transition.
	MarkCompleted(ctx context.Context, id uint, finishedAt time.Time, total decimal.NullDecimal) (bool, error)

	// UpdateProgress stores autosave and telemetry counters of an active session.
	UpdateProgress(ctx context.Context, session *models.AssessmentSession) error

	// SetTotal attaches a total computed after finalize, e.g. by the evaluator.
	SetTotal(ctx context.Context, id uint, total decimal.Decimal) error
}
