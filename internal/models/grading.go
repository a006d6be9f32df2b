package models

import (
	"fmt"
	"time"

	apperrors "github.com/SAP-F-2025/assessment-engine/internal/errors"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// RubricSchemaVersion is the rubric document layout this build understands.
const RubricSchemaVersion = 1

// Rubric is a hierarchical scoring schema. Validate must pass before a rubric is stored.
type Rubric struct {
	ID            uint                             `json:"id,omitempty" gorm:"primaryKey"`
	Name          string                           `json:"name" gorm:"size:120;not null"`
	Version       string                           `json:"version" gorm:"size:32"`
	SchemaVersion int                              `json:"schema_version" gorm:"not null;default:1"`
	Category      Category                         `json:"category,omitempty" gorm:"size:16;index"`
	TotalMax      decimal.Decimal                  `json:"total_max" gorm:"type:numeric(6,2);not null"`
	Groups        datatypes.JSONSlice[RubricGroup] `json:"groups" gorm:"type:jsonb;not null"`
	CreatedAt     time.Time                        `json:"created_at,omitempty"`
}

type RubricGroup struct {
	Key      string            `json:"key"`
	Title    string            `json:"title"`
	Max      decimal.Decimal   `json:"max"`
	Criteria []RubricCriterion `json:"criteria"`
}

type RubricCriterion struct {
	Key   string          `json:"key"`
	Title string          `json:"title"`
	Max   decimal.Decimal `json:"max"`
}

// Validate checks the sum invariants: criteria add up to their group max and
// groups add up to total_max. Every violation is reported.
func (r *Rubric) Validate() error {
	var errs apperrors.ValidationErrors

	if r.SchemaVersion == 0 {
		r.SchemaVersion = RubricSchemaVersion
	}
	if r.SchemaVersion != RubricSchemaVersion {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("schema_version",
			fmt.Sprintf("unsupported schema version %d", r.SchemaVersion), "rubric_schema", r.SchemaVersion))
	}
	if !r.TotalMax.IsPositive() {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("total_max", "must be greater than 0", "rubric_total", r.TotalMax.String()))
	}
	if len(r.Groups) == 0 {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("groups", "is required", "required", nil))
		return errs
	}

	groupKeys := make(map[string]bool, len(r.Groups))
	groupSum := decimal.Zero
	for gi, g := range r.Groups {
		field := fmt.Sprintf("groups[%d]", gi)
		if g.Key == "" {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(field+".key", "is required", "required", nil))
		} else if groupKeys[g.Key] {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(field+".key", "must be unique", "unique", g.Key))
		}
		groupKeys[g.Key] = true

		if len(g.Criteria) == 0 {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(field+".criteria", "is required", "required", g.Key))
		}

		criteriaKeys := make(map[string]bool, len(g.Criteria))
		criteriaSum := decimal.Zero
		for ci, c := range g.Criteria {
			cfield := fmt.Sprintf("%s.criteria[%d]", field, ci)
			if c.Key == "" {
				errs = append(errs, *apperrors.NewValidationErrorWithRule(cfield+".key", "is required", "required", nil))
			} else if criteriaKeys[c.Key] {
				errs = append(errs, *apperrors.NewValidationErrorWithRule(cfield+".key", "must be unique", "unique", c.Key))
			}
			criteriaKeys[c.Key] = true
			if c.Max.IsNegative() {
				errs = append(errs, *apperrors.NewValidationErrorWithRule(cfield+".max", "must not be negative", "rubric_max", c.Max.String()))
			}
			criteriaSum = criteriaSum.Add(c.Max)
		}

		if !criteriaSum.Equal(g.Max) {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(field+".max",
				fmt.Sprintf("group %q: sum(criteria.max)=%s != group.max=%s", g.Key, criteriaSum, g.Max),
				"rubric_group_sum", g.Max.String()))
		}
		groupSum = groupSum.Add(g.Max)
	}

	if !groupSum.Equal(r.TotalMax) {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("total_max",
			fmt.Sprintf("sum(groups.max)=%s != total_max=%s", groupSum, r.TotalMax),
			"rubric_total_sum", r.TotalMax.String()))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type EvaluationStatus string

const (
	EvaluationPending EvaluationStatus = "pending"
	EvaluationDone    EvaluationStatus = "done"
	EvaluationFailed  EvaluationStatus = "failed"
)

// EvaluationRecord is the grading outcome of a written exam session, one per session.
type EvaluationRecord struct {
	ID          uint             `json:"-" gorm:"primaryKey"`
	SessionID   uint             `json:"-" gorm:"not null;uniqueIndex"`
	RubricID    *uint            `json:"rubric_id,omitempty"`
	Status      EvaluationStatus `json:"status" gorm:"size:10;not null;default:pending;index"`
	RequestedAt time.Time        `json:"requested_at"`
	CompletedAt *time.Time       `json:"completed_at"`
	Attempts    int              `json:"attempts" gorm:"default:0"`

	Grader        string                               `json:"grader" gorm:"size:120"`
	GraderParams  datatypes.JSONMap                    `json:"grader_params,omitempty" gorm:"type:jsonb"`
	Scores        datatypes.JSONType[EvaluationScores] `json:"scores" gorm:"type:jsonb"`
	Total         decimal.NullDecimal                  `json:"total" gorm:"type:numeric(6,2)"`
	Feedback      string                               `json:"feedback" gorm:"type:text"`
	FailureReason string                               `json:"failure_reason,omitempty" gorm:"type:text"`
	RawOutput     datatypes.JSON                       `json:"-" gorm:"type:jsonb"`

	UpdatedAt time.Time `json:"updated_at"`
}

type EvaluationScores struct {
	Groups []GroupScore `json:"groups"`
	Rubric RubricRef    `json:"rubric"`
}

type RubricRef struct {
	Name     string          `json:"name"`
	Version  string          `json:"version"`
	TotalMax decimal.Decimal `json:"total_max"`
}

type GroupScore struct {
	Key      string           `json:"key"`
	Title    string           `json:"title"`
	Max      decimal.Decimal  `json:"max"`
	Score    decimal.Decimal  `json:"score"`
	Criteria []CriterionScore `json:"criteria"`
}

type CriterionScore struct {
	Key        string          `json:"key"`
	Title      string          `json:"title"`
	Max        decimal.Decimal `json:"max"`
	Score      decimal.Decimal `json:"score"`
	Deductions string          `json:"deductions,omitempty"`
}

// Reset moves the record back to Pending and drops the previous completion.
func (e *EvaluationRecord) Reset(now time.Time) {
	e.Status = EvaluationPending
	e.RequestedAt = now
	e.CompletedAt = nil
	e.FailureReason = ""
	e.Attempts++
}

func (e *EvaluationRecord) MarkDone(now time.Time, scores EvaluationScores, total decimal.Decimal, feedback string) {
	e.Status = EvaluationDone
	e.CompletedAt = &now
	e.Scores = datatypes.NewJSONType(scores)
	e.Total = decimal.NewNullDecimal(total)
	e.Feedback = feedback
	e.FailureReason = ""
}

func (e *EvaluationRecord) MarkFailed(now time.Time, reason string) {
	e.Status = EvaluationFailed
	e.CompletedAt = &now
	e.Total = decimal.NullDecimal{}
	e.FailureReason = reason
}
