package services

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func findTask(t *testing.T, f *fixture, category models.Category, title string) *models.AssessmentItem {
	t.Helper()
	kind := models.ItemKindTask
	items, err := f.repo.Catalog().ListItems(f.ctx, repositories.ItemFilters{Kind: &kind, Category: &category})
	require.NoError(t, err)
	for _, item := range items {
		if item.Title == title {
			return item
		}
	}
	t.Fatalf("task %q not found", title)
	return nil
}

func TestImportQuestions_JSON(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.manager.ImportExport()

	payload := `[
		{"number": 1, "text": "Updated question", "answers": [{"text": "yes", "is_correct": true}, {"text": "no"}]},
		{"number": 10, "text": "New question", "score": "2.5", "task_type": "verbal",
		 "answers": [{"text": "a"}, {"text": "b", "is_correct": true}]},
		{"number": 11, "text": "Two correct", "answers": [{"text": "a", "is_correct": true}, {"text": "b", "is_correct": true}]},
		{"number": 12, "text": "One answer", "answers": [{"text": "a", "is_correct": true}]}
	]`

	summary, err := svc.ImportQuestions(f.ctx, strings.NewReader(payload), "questions.json")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalRows)
	assert.Equal(t, 1, summary.CreatedCount)
	assert.Equal(t, 1, summary.UpdatedCount)
	assert.Equal(t, 2, summary.ErrorCount)
	require.NotEmpty(t, summary.Errors)
	assert.Equal(t, 3, summary.Errors[0].Row)

	updated, err := f.repo.Catalog().GetItem(f.ctx, f.q1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated question", updated.Text)
	assert.Equal(t, "1.22", updated.Points.String())
	require.Len(t, updated.Options, 2)
	assert.Equal(t, 1, updated.Options[0].Ordinal)
	assert.True(t, updated.Options[0].IsCorrect)
}

func TestImportQuestions_SkipsItemsInActiveSessions(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.manager.ImportExport()
	f.startTest()

	payload := `[{"number": 2, "text": "Rewritten", "answers": [{"text": "a", "is_correct": true}, {"text": "b"}]}]`
	summary, err := svc.ImportQuestions(f.ctx, strings.NewReader(payload), "questions.json")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SkippedCount)
	assert.Zero(t, summary.UpdatedCount)

	item, err := f.repo.Catalog().GetItem(f.ctx, f.q2.ID)
	require.NoError(t, err)
	assert.Equal(t, "Question 2.16", item.Text)
}

func TestImportQuestions_Excel(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.manager.ImportExport()

	book := excelize.NewFile()
	header := []interface{}{"Number", "Text", "Task_Type", "Difficulty", "Score", "answer_1", "answer_2", "answer_3", "correct"}
	row := []interface{}{20, "Sheet question", "logical", "Easy", "2,5", "a", "b", "c", 2}
	require.NoError(t, book.SetSheetRow("Sheet1", "A1", &header))
	require.NoError(t, book.SetSheetRow("Sheet1", "A2", &row))
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	summary, err := svc.ImportQuestions(f.ctx, buf, "questions.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CreatedCount)

	kind := models.ItemKindQuestion
	items, err := f.repo.Catalog().ListItems(f.ctx, repositories.ItemFilters{Kind: &kind})
	require.NoError(t, err)
	var imported *models.AssessmentItem
	for _, item := range items {
		if item.Number == 20 {
			imported = item
		}
	}
	require.NotNil(t, imported)
	assert.Equal(t, "2.5", imported.Points.String())
	assert.Equal(t, models.DifficultyEasy, imported.Difficulty)
	correct, ok := imported.CorrectOption()
	require.True(t, ok)
	assert.Equal(t, "b", correct.Text)
}

func TestImportQuestions_UnsupportedFormat(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.manager.ImportExport().ImportQuestions(f.ctx, strings.NewReader(""), "questions.csv")
	assert.True(t, IsValidation(err))
}

func TestImportTasks_ReadsTextFiles(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.manager.ImportExport()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "intro.txt"), []byte("Intro line  \r\n\r\n\r\n\r\nNext\r\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "first.txt"), []byte("First instance text."), 0o644))

	payload := `[
		{"spec": "civil", "title": "Lease", "intro_text": "intro.txt", "descriptive_text": "Desc",
		 "partial_motivation_text": "Partial", "decisions": {"first": "first.txt", "appeal": "Inline appeal"}},
		{"spec": "criminal", "title": "Fraud", "facts_text": "Facts only"},
		{"spec": "civil", "title": "Broken", "intro_text": "missing.txt"},
		{"spec": "civil", "title": "Odd", "intro_text": "a", "descriptive_text": "b",
		 "partial_motivation_text": "c", "decisions": {"supreme": "x"}}
	]`

	summary, err := svc.ImportTasks(f.ctx, strings.NewReader(payload), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CreatedCount)
	assert.Equal(t, 3, summary.ErrorCount)

	lease := findTask(t, f, models.CategoryCivil, "Lease")
	template := lease.TemplateData()
	assert.Equal(t, "Intro line\n\nNext", template.Intro)
	assert.Equal(t, "100", lease.Points.String())

	refs := lease.ReferenceData()
	require.NotNil(t, refs.First)
	assert.Equal(t, "First instance text.", refs.First.Text)
	assert.Equal(t, "first.txt", refs.First.Source)
	assert.NotNil(t, refs.First.FetchedAt)
	require.NotNil(t, refs.Appeal)
	assert.Empty(t, refs.Appeal.Source)
	assert.Nil(t, refs.Cassation)
}

const civilRubricYAML = `
name: civil-2025
version: v2
category: civil
total_max: 40
groups:
  - key: structure
    title: Structure
    max: 15
    criteria:
      - {key: intro, title: Intro, max: 5}
      - {key: order, title: Order, max: 10}
  - key: law
    title: Law
    max: 25
    criteria:
      - {key: norms, title: Norms, max: 25}
`

func TestApplyRubric(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.manager.ImportExport()
	seeded, err := f.repo.Catalog().GetItem(f.ctx, f.civilTask.ID)
	require.NoError(t, err)
	require.NotNil(t, seeded.RubricID)
	original := *seeded.RubricID

	t.Run("sum mismatch is rejected", func(t *testing.T) {
		bad := strings.Replace(civilRubricYAML, "max: 15", "max: 14", 1)
		_, err := svc.ApplyRubric(f.ctx, strings.NewReader(bad), "rubric.yaml", &ApplyRubricRequest{Category: models.CategoryCivil})
		require.Error(t, err)
		assert.True(t, IsValidation(err))

		task, err := f.repo.Catalog().GetItem(f.ctx, f.civilTask.ID)
		require.NoError(t, err)
		assert.Equal(t, original, *task.RubricID)
	})

	t.Run("category mismatch is rejected", func(t *testing.T) {
		_, err := svc.ApplyRubric(f.ctx, strings.NewReader(civilRubricYAML), "rubric.yml", &ApplyRubricRequest{Category: models.CategoryCriminal})
		assert.True(t, IsValidation(err))
	})

	t.Run("valid rubric is attached", func(t *testing.T) {
		maxScore := dec("40")
		result, err := svc.ApplyRubric(f.ctx, strings.NewReader(civilRubricYAML), "rubric.yaml",
			&ApplyRubricRequest{Category: models.CategoryCivil, MaxScore: &maxScore})
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.TasksUpdated)
		assert.NotEqual(t, original, result.RubricID)
		assert.Equal(t, "40", result.TotalMax.String())

		task, err := f.repo.Catalog().GetItem(f.ctx, f.civilTask.ID)
		require.NoError(t, err)
		assert.Equal(t, result.RubricID, *task.RubricID)
		assert.Equal(t, "40", task.Points.String())

		rubric, err := f.repo.Catalog().GetRubric(f.ctx, result.RubricID)
		require.NoError(t, err)
		assert.Equal(t, "civil-2025", rubric.Name)
		require.Len(t, rubric.Groups, 2)
		assert.Equal(t, "norms", rubric.Groups[1].Criteria[0].Key)
	})
}

func TestValidateRubric_JSON(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.manager.ImportExport()

	rubric, err := svc.ValidateRubric(strings.NewReader(`{"name": "r", "total_max": 4,
		"groups": [{"key": "g", "max": 4, "criteria": [{"key": "c", "max": 4}]}]}`), "rubric.json")
	require.NoError(t, err)
	assert.Equal(t, models.RubricSchemaVersion, rubric.SchemaVersion)

	_, err = svc.ValidateRubric(strings.NewReader(`{"name": "r", "total_max": 4, "groups": []}`), "rubric.json")
	assert.True(t, IsValidation(err))

	_, err = svc.ValidateRubric(strings.NewReader(`name: [`), "rubric.yaml")
	assert.True(t, IsValidation(err))
}

func TestExportResults(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.manager.ImportExport()

	view := f.startTest()
	_, err := f.sessions.SubmitAnswers(f.ctx, view.Token, &SubmitAnswersRequest{
		Answers: []AnswerSubmission{{ItemID: f.q1.ID, OptionID: ptrTo(optionID(f.q1, true))}},
		Finish:  true,
	})
	require.NoError(t, err)
	f.startTest()

	data, err := svc.ExportResults(f.ctx, repositories.SessionFilters{})
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 2, "only completed sessions are exported")
	assert.Equal(t, "Token", rows[0][0])
	assert.Equal(t, view.Token, rows[1][0])
	assert.Equal(t, "test", rows[1][1])
	assert.Equal(t, "Olena", rows[1][3])
	assert.Equal(t, "1.22", rows[1][8])
}
