package services

import (
	"strings"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

type segmentSource func(t models.TaskTemplate, a models.WrittenAnswer) string

var (
	civilSegments = []segmentSource{
		func(t models.TaskTemplate, _ models.WrittenAnswer) string { return t.Intro },
		func(t models.TaskTemplate, _ models.WrittenAnswer) string { return t.Descriptive },
		func(t models.TaskTemplate, _ models.WrittenAnswer) string { return t.PartialMotivation },
		func(_ models.TaskTemplate, a models.WrittenAnswer) string { return a.Motivation },
		func(_ models.TaskTemplate, a models.WrittenAnswer) string { return a.Resolution },
	}
	criminalSegments = []segmentSource{
		func(t models.TaskTemplate, _ models.WrittenAnswer) string { return t.ModelIntro },
		func(_ models.TaskTemplate, a models.WrittenAnswer) string { return a.Motivation },
		func(_ models.TaskTemplate, a models.WrittenAnswer) string { return a.Resolution },
	}
)

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n", `\n`, "\n")

// DocumentCompiler builds the final written exam document from the task
// template and the participant's text.
type DocumentCompiler struct{}

// Compile joins the non-empty segments of the category with a blank line.
func (DocumentCompiler) Compile(category models.Category, template models.TaskTemplate, answer models.WrittenAnswer) string {
	segments := criminalSegments
	if category == models.CategoryCivil {
		segments = civilSegments
	}

	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if text := normalizeSegment(segment(template, answer)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func normalizeSegment(s string) string {
	return strings.TrimSpace(lineEndings.Replace(s))
}
