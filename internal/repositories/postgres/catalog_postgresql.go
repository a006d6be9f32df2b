package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const catalogCacheTTL = 10 * time.Minute

type CatalogPostgreSQL struct {
	db     *gorm.DB
	cache  cache.CacheService
	logger *slog.Logger
}

func NewCatalogPostgreSQL(db *gorm.DB, cacheService cache.CacheService, logger *slog.Logger) repositories.CatalogRepository {
	if cacheService == nil {
		cacheService = cache.NewNoopCache()
	}
	return &CatalogPostgreSQL{db: db, cache: cacheService, logger: logger}
}

func itemCacheKey(id uint) string {
	return fmt.Sprintf("catalog:item:%d", id)
}

func rubricCacheKey(id uint) string {
	return fmt.Sprintf("catalog:rubric:%d", id)
}

func (c *CatalogPostgreSQL) GetItem(ctx context.Context, id uint) (*models.AssessmentItem, error) {
	var item models.AssessmentItem
	if err := c.cache.Get(ctx, itemCacheKey(id), &item); err == nil {
		return &item, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("Catalog cache read failed", "item_id", id, "error", err)
	}

	if err := c.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("ordinal ASC") }).
		First(&item, id).Error; err != nil {
		return nil, translateError(err)
	}

	if err := c.cache.Set(ctx, itemCacheKey(id), &item, catalogCacheTTL); err != nil {
		c.logger.Warn("Catalog cache write failed", "item_id", id, "error", err)
	}
	return &item, nil
}

func (c *CatalogPostgreSQL) GetItems(ctx context.Context, ids []uint) ([]*models.AssessmentItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []*models.AssessmentItem
	if err := c.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("ordinal ASC") }).
		Where("id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	// Preserve the caller's order, which is the session's presentation order.
	byID := make(map[uint]*models.AssessmentItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	ordered := make([]*models.AssessmentItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			ordered = append(ordered, item)
		}
	}
	return ordered, nil
}

func (c *CatalogPostgreSQL) ListItems(ctx context.Context, filters repositories.ItemFilters) ([]*models.AssessmentItem, error) {
	query := c.db.WithContext(ctx).Model(&models.AssessmentItem{}).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("ordinal ASC") })

	if filters.Kind != nil {
		query = query.Where("kind = ?", *filters.Kind)
	}
	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}
	if filters.Difficulty != nil {
		query = query.Where("difficulty = ?", *filters.Difficulty)
	}
	if filters.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	var items []*models.AssessmentItem
	if err := query.Order("number ASC, id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

func (c *CatalogPostgreSQL) GetRubric(ctx context.Context, id uint) (*models.Rubric, error) {
	var rubric models.Rubric
	if err := c.cache.Get(ctx, rubricCacheKey(id), &rubric); err == nil {
		return &rubric, nil
	}
	if err := c.db.WithContext(ctx).First(&rubric, id).Error; err != nil {
		return nil, translateError(err)
	}
	if err := c.cache.Set(ctx, rubricCacheKey(id), &rubric, catalogCacheTTL); err != nil {
		c.logger.Warn("Catalog cache write failed", "rubric_id", id, "error", err)
	}
	return &rubric, nil
}

// UpsertQuestion matches an existing question by number and replaces its
// text, metadata and option list.
func (c *CatalogPostgreSQL) UpsertQuestion(ctx context.Context, item *models.AssessmentItem) (bool, error) {
	item.Kind = models.ItemKindQuestion
	created := false
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.AssessmentItem
		err := tx.Where("kind = ? AND number = ?", models.ItemKindQuestion, item.Number).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(item).Error
		case err != nil:
			return err
		}

		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
		if err := tx.Where("item_id = ?", existing.ID).Delete(&models.AnswerOption{}).Error; err != nil {
			return err
		}
		options := item.Options
		item.Options = nil
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		for i := range options {
			options[i].ID = 0
			options[i].ItemID = item.ID
		}
		if len(options) > 0 {
			if err := tx.Create(&options).Error; err != nil {
				return err
			}
		}
		item.Options = options
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert question %d: %w", item.Number, err)
	}
	c.invalidateItem(ctx, item.ID)
	return created, nil
}

// UpsertTask matches an existing task by category and title.
func (c *CatalogPostgreSQL) UpsertTask(ctx context.Context, item *models.AssessmentItem) (bool, error) {
	item.Kind = models.ItemKindTask
	created := false
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.AssessmentItem
		err := tx.Where("kind = ? AND category = ? AND title = ?", models.ItemKindTask, item.Category, item.Title).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			return tx.Create(item).Error
		case err != nil:
			return err
		}
		item.ID = existing.ID
		item.CreatedAt = existing.CreatedAt
		if item.RubricID == nil {
			item.RubricID = existing.RubricID
		}
		return tx.Save(item).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert task %q: %w", item.Title, err)
	}
	c.invalidateItem(ctx, item.ID)
	return created, nil
}

func (c *CatalogPostgreSQL) SaveRubric(ctx context.Context, rubric *models.Rubric) error {
	if err := c.db.WithContext(ctx).Save(rubric).Error; err != nil {
		return fmt.Errorf("failed to save rubric: %w", err)
	}
	if err := c.cache.Delete(ctx, rubricCacheKey(rubric.ID)); err != nil {
		c.logger.Warn("Catalog cache invalidation failed", "rubric_id", rubric.ID, "error", err)
	}
	return nil
}

// AttachRubric links the rubric to every task of the category and optionally
// overrides the task max score.
func (c *CatalogPostgreSQL) AttachRubric(ctx context.Context, category models.Category, rubricID uint, maxScore *decimal.Decimal) (int64, error) {
	updates := map[string]interface{}{"rubric_id": rubricID}
	if maxScore != nil {
		updates["points"] = *maxScore
	}
	result := c.db.WithContext(ctx).Model(&models.AssessmentItem{}).
		Where("kind = ? AND category = ?", models.ItemKindTask, category).
		Updates(updates)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to attach rubric: %w", result.Error)
	}
	if err := c.cache.DeletePattern(ctx, "catalog:item:*"); err != nil {
		c.logger.Warn("Catalog cache invalidation failed", "error", err)
	}
	return result.RowsAffected, nil
}

func (c *CatalogPostgreSQL) IsReferencedByActiveSession(ctx context.Context, itemID uint) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).Model(&models.AssessmentSession{}).
		Where("is_completed = ? AND item_ids @> ?::jsonb", false, fmt.Sprintf("[%d]", itemID)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check active sessions: %w", err)
	}
	return count > 0, nil
}

func (c *CatalogPostgreSQL) invalidateItem(ctx context.Context, id uint) {
	if err := c.cache.Delete(ctx, itemCacheKey(id)); err != nil {
		c.logger.Warn("Catalog cache invalidation failed", "item_id", id, "error", err)
	}
}
