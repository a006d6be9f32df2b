package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResponsePostgreSQL struct {
	db *gorm.DB
}

func NewResponsePostgreSQL(db *gorm.DB) repositories.ResponseRepository {
	return &ResponsePostgreSQL{db: db}
}

func (r *ResponsePostgreSQL) Upsert(ctx context.Context, record *models.ResponseRecord) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"selected_option_id", "free_text", "is_correct", "awarded_score", "answered_at", "updated_at",
		}),
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to upsert response: %w", err)
	}
	return nil
}

func (r *ResponsePostgreSQL) GetBySession(ctx context.Context, sessionID uint) ([]*models.ResponseRecord, error) {
	var records []*models.ResponseRecord
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("item_id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}
	return records, nil
}

func (r *ResponsePostgreSQL) GetBySessionAndItem(ctx context.Context, sessionID, itemID uint) (*models.ResponseRecord, error) {
	var record models.ResponseRecord
	if err := r.db.WithContext(ctx).Where("session_id = ? AND item_id = ?", sessionID, itemID).First(&record).Error; err != nil {
		return nil, translateError(err)
	}
	return &record, nil
}
