package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EvaluationPostgreSQL struct {
	db *gorm.DB
}

func NewEvaluationPostgreSQL(db *gorm.DB) repositories.EvaluationRepository {
	return &EvaluationPostgreSQL{db: db}
}

func (e *EvaluationPostgreSQL) GetBySession(ctx context.Context, sessionID uint) (*models.EvaluationRecord, error) {
	var evaluation models.EvaluationRecord
	if err := e.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&evaluation).Error; err != nil {
		return nil, translateError(err)
	}
	return &evaluation, nil
}

func (e *EvaluationPostgreSQL) Save(ctx context.Context, evaluation *models.EvaluationRecord) error {
	err := e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(evaluation).Error
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	return nil
}
