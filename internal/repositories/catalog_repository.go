package repositories

import (
	"context"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/shopspring/decimal"
)

// CatalogRepository reads questions, tasks and rubrics. The write methods exist
// for the catalog loader commands only; the session engine never calls them.
type CatalogRepository interface {
	GetItem(ctx context.Context, id uint) (*models.AssessmentItem, error)
	GetItems(ctx context.Context, ids []uint) ([]*models.AssessmentItem, error)
	ListItems(ctx context.Context, filters ItemFilters) ([]*models.AssessmentItem, error)
	GetRubric(ctx context.Context, id uint) (*models.Rubric, error)

	// Loader operations
	UpsertQuestion(ctx context.Context, item *models.AssessmentItem) (created bool, err error)
	UpsertTask(ctx context.Context, item *models.AssessmentItem) (created bool, err error)
	SaveRubric(ctx context.Context, rubric *models.Rubric) error
	AttachRubric(ctx context.Context, category models.Category, rubricID uint, maxScore *decimal.Decimal) (int64, error)
	IsReferencedByActiveSession(ctx context.Context, itemID uint) (bool, error)
}
