package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, session *models.AssessmentSession) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *SessionPostgreSQL) GetByToken(ctx context.Context, token string, lock repositories.LockMode) (*models.AssessmentSession, error) {
	query := s.db.WithContext(ctx)
	if expr, ok := lockingClause(lock); ok {
		query = query.Clauses(expr)
	}
	var session models.AssessmentSession
	if err := query.Where("token = ?", token).First(&session).Error; err != nil {
		return nil, translateError(err)
	}
	return &session, nil
}

func (s *SessionPostgreSQL) List(ctx context.Context, filters repositories.SessionFilters) ([]*models.AssessmentSession, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AssessmentSession{})

	if filters.Kind != nil {
		query = query.Where("kind = ?", *filters.Kind)
	}
	if filters.CompletedOnly {
		query = query.Where("is_completed = ?", true)
	}
	if filters.DateFrom != nil {
		query = query.Where("started_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("started_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var sessions []*models.AssessmentSession
	if err := query.Order("started_at DESC").Find(&sessions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, total, nil
}

func (s *SessionPostgreSQL) MarkCompleted(ctx context.Context, id uint, finishedAt time.Time, total decimal.NullDecimal) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.AssessmentSession{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"finished_at":  finishedAt,
			"total_score":  total,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to complete session: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *SessionPostgreSQL) UpdateProgress(ctx context.Context, session *models.AssessmentSession) error {
	err := s.db.WithContext(ctx).Model(&models.AssessmentSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"autosave_version": session.AutosaveVersion,
			"last_autosave_at": session.LastAutosaveAt,
			"keypress_count":   session.KeypressCount,
			"paste_blocked":    session.PasteBlocked,
			"focus_loss":       session.FocusLoss,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}
	return nil
}

func (s *SessionPostgreSQL) SetTotal(ctx context.Context, id uint, total decimal.Decimal) error {
	err := s.db.WithContext(ctx).Model(&models.AssessmentSession{}).
		Where("id = ?", id).
		Update("total_score", decimal.NewNullDecimal(total)).Error
	if err != nil {
		return fmt.Errorf("failed to set session total: %w", err)
	}
	return nil
}
