package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ItemKind string

const (
	ItemKindQuestion ItemKind = "question"
	ItemKindTask     ItemKind = "task"
)

// Category is the written exam specialization a task belongs to.
type Category string

const (
	CategoryCivil    Category = "civil"
	CategoryCriminal Category = "criminal"
)

func (c Category) Valid() bool {
	return c == CategoryCivil || c == CategoryCriminal
}

type TaskType string

const (
	TaskTypeVerbal   TaskType = "verbal"
	TaskTypeLogical  TaskType = "logical"
	TaskTypeAbstract TaskType = "abstract"
	TaskTypeNumeric  TaskType = "numeric"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// DefaultQuestionPoints is the point value of a question when the catalog omits one.
var DefaultQuestionPoints = decimal.RequireFromString("1.22")

// DefaultTaskMaxScore is the point value of a written exam task when the catalog omits one.
var DefaultTaskMaxScore = decimal.RequireFromString("100.00")

// AssessmentItem is a catalog entry: a multiple-choice question or a written exam task.
type AssessmentItem struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	Kind       ItemKind        `json:"kind" gorm:"size:16;not null;index"`
	Number     int             `json:"number" gorm:"index"`
	Title      string          `json:"title,omitempty" gorm:"size:255"`
	Text       string          `json:"text,omitempty" gorm:"type:text"`
	TaskType   TaskType        `json:"task_type,omitempty" gorm:"size:32"`
	Difficulty DifficultyLevel `json:"difficulty,omitempty" gorm:"size:16"`
	Category   Category        `json:"category,omitempty" gorm:"size:16;index"`
	Points     decimal.Decimal `json:"points" gorm:"type:numeric(6,2);not null"`
	IsActive   bool            `json:"is_active" gorm:"default:true;index"`

	Options    []AnswerOption                  `json:"options,omitempty" gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
	Template   datatypes.JSONType[TaskTemplate] `json:"template" gorm:"type:jsonb"`
	References datatypes.JSONType[References]   `json:"references" gorm:"type:jsonb"`
	RubricID   *uint                            `json:"rubric_id,omitempty" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AnswerOption struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ItemID    uint   `json:"item_id" gorm:"not null;index"`
	Ordinal   int    `json:"ordinal"`
	Text      string `json:"text" gorm:"type:text;not null"`
	IsCorrect bool   `json:"is_correct" gorm:"default:false"`
}

// TaskTemplate holds the fixed text segments a written exam task ships with.
type TaskTemplate struct {
	Intro             string `json:"intro"`
	Descriptive       string `json:"descriptive"`
	PartialMotivation string `json:"partial_motivation"`
	Facts             string `json:"facts"`
	ModelIntro        string `json:"model_intro"`
}

type Reference struct {
	Text      string     `json:"text"`
	Source    string     `json:"source,omitempty"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// References are the reference court decisions attached to a task.
type References struct {
	First     *Reference `json:"first,omitempty"`
	Appeal    *Reference `json:"appeal,omitempty"`
	Cassation *Reference `json:"cassation,omitempty"`
}

type NamedReference struct {
	Key string
	Reference
}

// Ordered returns the non-empty references in instance order.
func (r References) Ordered() []NamedReference {
	var out []NamedReference
	for _, nr := range []struct {
		key string
		ref *Reference
	}{{"first", r.First}, {"appeal", r.Appeal}, {"cassation", r.Cassation}} {
		if nr.ref == nil || nr.ref.Text == "" {
			continue
		}
		out = append(out, NamedReference{Key: nr.key, Reference: *nr.ref})
	}
	return out
}

func (i *AssessmentItem) TemplateData() TaskTemplate {
	return i.Template.Data()
}

func (i *AssessmentItem) ReferenceData() References {
	return i.References.Data()
}

// FindOption returns the option with the given id, if it belongs to the item.
func (i *AssessmentItem) FindOption(optionID uint) (*AnswerOption, bool) {
	for idx := range i.Options {
		if i.Options[idx].ID == optionID {
			return &i.Options[idx], true
		}
	}
	return nil, false
}

func (i *AssessmentItem) CorrectOption() (*AnswerOption, bool) {
	for idx := range i.Options {
		if i.Options[idx].IsCorrect {
			return &i.Options[idx], true
		}
	}
	return nil, false
}
