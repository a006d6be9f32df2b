package services

import (
	"testing"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDocumentCompiler_Compile(t *testing.T) {
	template := models.TaskTemplate{
		Intro:             "INTRO",
		Descriptive:       "Facts of the case.\r\nSecond line.",
		PartialMotivation: "  ",
		ModelIntro:        "SENTENCE",
		Facts:             "not part of any document",
	}
	answer := models.WrittenAnswer{
		Motivation: `Line one\nLine two`,
		Resolution: "\rDecided.\r",
	}

	tests := []struct {
		name     string
		category models.Category
		template models.TaskTemplate
		answer   models.WrittenAnswer
		want     string
	}{
		{
			name:     "civil order with empty segment skipped",
			category: models.CategoryCivil,
			template: template,
			answer:   answer,
			want:     "INTRO\n\nFacts of the case.\nSecond line.\n\nLine one\nLine two\n\nDecided.",
		},
		{
			name:     "criminal order",
			category: models.CategoryCriminal,
			template: template,
			answer:   answer,
			want:     "SENTENCE\n\nLine one\nLine two\n\nDecided.",
		},
		{
			name:     "nothing to compile",
			category: models.CategoryCriminal,
			want:     "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentCompiler{}.Compile(tt.category, tt.template, tt.answer))
		})
	}
}
