package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuestionImport is one multiple-choice question as it appears in a catalog file.
type QuestionImport struct {
	Number     int              `json:"number" validate:"required,min=1"`
	Text       string           `json:"text" validate:"required"`
	TaskType   TaskType         `json:"task_type" validate:"omitempty,task_type"`
	Difficulty DifficultyLevel  `json:"difficulty" validate:"omitempty,difficulty_level"`
	Score      *decimal.Decimal `json:"score"`
	IsActive   *bool            `json:"is_active"`
	Answers    []OptionImport   `json:"answers" validate:"required,min=2,dive"`
}

type OptionImport struct {
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// TaskImport is one written exam task. Text fields ending in .txt are read from disk.
type TaskImport struct {
	Category              Category          `json:"spec" validate:"required,exam_category"`
	Title                 string            `json:"title" validate:"required,max=255"`
	IntroText             string            `json:"intro_text"`
	DescriptiveText       string            `json:"descriptive_text"`
	PartialMotivationText string            `json:"partial_motivation_text"`
	FactsText             string            `json:"facts_text"`
	ModelIntroText        string            `json:"model_intro_text"`
	Decisions             map[string]string `json:"decisions"`
	MaxScore              *decimal.Decimal  `json:"max_score"`
	IsActive              *bool             `json:"is_active"`
}

type ImportValidationError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
	Value   string `json:"value"`
}

type ImportSummary struct {
	TotalRows      int                     `json:"total_rows"`
	CreatedCount   int                     `json:"created_count"`
	UpdatedCount   int                     `json:"updated_count"`
	SkippedCount   int                     `json:"skipped_count"`
	ErrorCount     int                     `json:"error_count"`
	Errors         []ImportValidationError `json:"errors,omitempty"`
	ProcessingTime time.Duration           `json:"processing_time"`
}
