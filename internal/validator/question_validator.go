package validator

import (
	"fmt"

	apperrors "github.com/SAP-F-2025/assessment-engine/internal/errors"
	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

// requiredSegments lists the template segments a task of each category must carry.
var requiredSegments = map[models.Category][]string{
	models.CategoryCivil:    {"intro_text", "descriptive_text", "partial_motivation_text"},
	models.CategoryCriminal: {"facts_text", "model_intro_text"},
}

// QuestionValidator checks catalog content rules that struct tags cannot express
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateQuestion requires exactly one correct option and a non-negative score.
func (v *QuestionValidator) ValidateQuestion(q *models.QuestionImport) error {
	var errs apperrors.ValidationErrors

	correct := 0
	for _, a := range q.Answers {
		if a.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("answers",
			fmt.Sprintf("must have exactly one correct answer, got %d", correct), "single_correct", correct))
	}
	if q.Score != nil && q.Score.IsNegative() {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("score", "must not be negative", "min", q.Score.String()))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateTask requires the template segments of the task's category.
func (v *QuestionValidator) ValidateTask(t *models.TaskImport) error {
	var errs apperrors.ValidationErrors

	values := map[string]string{
		"intro_text":              t.IntroText,
		"descriptive_text":        t.DescriptiveText,
		"partial_motivation_text": t.PartialMotivationText,
		"facts_text":              t.FactsText,
		"model_intro_text":        t.ModelIntroText,
	}
	for _, field := range requiredSegments[t.Category] {
		if values[field] == "" {
			errs = append(errs, *apperrors.NewValidationErrorWithRule(field,
				fmt.Sprintf("is required for %s tasks", t.Category), "required", nil))
		}
	}
	if t.MaxScore != nil && !t.MaxScore.IsPositive() {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("max_score", "must be greater than 0", "min", t.MaxScore.String()))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
