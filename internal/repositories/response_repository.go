package repositories

import (
	"context"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

// ResponseRepository is the ledger store keyed by (session, item)
type ResponseRepository interface {
	// Upsert inserts or overwrites the record for (SessionID, ItemID).
	Upsert(ctx context.Context, record *models.ResponseRecord) error
	GetBySession(ctx context.Context, sessionID uint) ([]*models.ResponseRecord, error)
	GetBySessionAndItem(ctx context.Context, sessionID, itemID uint) (*models.ResponseRecord, error)
}
