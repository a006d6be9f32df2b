package repositories

import (
	"context"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

// EvaluationRepository stores the single evaluation record of a written exam session
type EvaluationRepository interface {
	GetBySession(ctx context.Context, sessionID uint) (*models.EvaluationRecord, error)
	// Save creates the record or overwrites the existing one for the same session.
	Save(ctx context.Context, evaluation *models.EvaluationRecord) error
}
