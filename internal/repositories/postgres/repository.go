package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type postgresRepository struct {
	db     *gorm.DB
	cache  cache.CacheService
	logger *slog.Logger
}

// NewRepository returns a Repository backed by PostgreSQL through gorm.
// A nil cache disables catalog caching.
func NewRepository(db *gorm.DB, cacheService cache.CacheService, logger *slog.Logger) repositories.Repository {
	if cacheService == nil {
		cacheService = cache.NewNoopCache()
	}
	return &postgresRepository{
		db:     db,
		cache:  cacheService,
		logger: logger,
	}
}

func (r *postgresRepository) Catalog() repositories.CatalogRepository {
	return &CatalogPostgreSQL{db: r.db, cache: r.cache, logger: r.logger}
}

func (r *postgresRepository) Session() repositories.SessionRepository {
	return &SessionPostgreSQL{db: r.db}
}

func (r *postgresRepository) Response() repositories.ResponseRepository {
	return &ResponsePostgreSQL{db: r.db}
}

func (r *postgresRepository) Evaluation() repositories.EvaluationRepository {
	return &EvaluationPostgreSQL{db: r.db}
}

func (r *postgresRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&postgresRepository{db: tx, cache: r.cache, logger: r.logger})
	})
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *postgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func lockingClause(lock repositories.LockMode) (clause.Expression, bool) {
	switch lock {
	case repositories.LockShared:
		return clause.Locking{Strength: "SHARE"}, true
	case repositories.LockExclusive:
		return clause.Locking{Strength: "UPDATE"}, true
	default:
		return nil, false
	}
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repositories.ErrNotFound
	}
	return err
}
