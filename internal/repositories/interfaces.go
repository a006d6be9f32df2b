package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned by every repository when a lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// IsNotFoundError reports whether err means the record does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// LockMode selects the row lock taken when reading a session inside a transaction.
type LockMode int

const (
	LockNone LockMode = iota
	// LockShared lets concurrent answer writes proceed while blocking finalize.
	LockShared
	// LockExclusive serializes finalize and counter updates against every other writer.
	LockExclusive
)

// Repository is the entry point to all persistence. Transaction boundaries
// are owned by the services through WithTransaction.
type Repository interface {
	Catalog() CatalogRepository
	Session() SessionRepository
	Response() ResponseRepository
	Evaluation() EvaluationRepository

	WithTransaction(ctx context.Context, fn func(Repository) error) error
	Ping(ctx context.Context) error
	Close() error
}

// ===== SHARED FILTER STRUCTS =====

type ItemFilters struct {
	Kind       *models.ItemKind        `json:"kind"`
	Category   *models.Category        `json:"category"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	ActiveOnly bool                    `json:"active_only"`
	Limit      int                     `json:"limit"`
}

type SessionFilters struct {
	Kind          *models.ExamKind `json:"kind"`
	CompletedOnly bool             `json:"completed_only"`
	DateFrom      *time.Time       `json:"date_from"`
	DateTo        *time.Time       `json:"date_to"`
	Limit         int              `json:"limit"`
	Offset        int              `json:"offset"`
}
