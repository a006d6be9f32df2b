package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator combines struct tag validation with catalog content rules
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate validates struct tags and reports failures as ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	err := v.ValidateStruct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return ToValidationErrors(fieldErrs)
	}
	return err
}

// Question returns the catalog content validator
func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("exam_category", validateExamCategory)
	validate.RegisterValidation("exam_kind", validateExamKind)
	validate.RegisterValidation("task_type", validateTaskType)
	validate.RegisterValidation("difficulty_level", validateDifficultyLevel)
	validate.RegisterValidation("participant_name", validateParticipantName)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func oneOf[T ~string](fl validator.FieldLevel, valid ...T) bool {
	value := fl.Field().String()
	for _, v := range valid {
		if string(v) == value {
			return true
		}
	}
	return false
}

func validateExamCategory(fl validator.FieldLevel) bool {
	return oneOf(fl, models.CategoryCivil, models.CategoryCriminal)
}

func validateExamKind(fl validator.FieldLevel) bool {
	return oneOf(fl, models.ExamKindTest, models.ExamKindPractice)
}

func validateTaskType(fl validator.FieldLevel) bool {
	return oneOf(fl,
		models.TaskTypeVerbal,
		models.TaskTypeLogical,
		models.TaskTypeAbstract,
		models.TaskTypeNumeric,
	)
}

func validateDifficultyLevel(fl validator.FieldLevel) bool {
	return oneOf(fl, models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard)
}

func validateParticipantName(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
