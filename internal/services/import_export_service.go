package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

// ImportExportService loads catalog content from files and exports completed
// sessions. It is used by the CLI loaders and the admin routes.
type ImportExportService interface {
	// Import operations
	ImportQuestions(ctx context.Context, r io.Reader, filename string) (*models.ImportSummary, error)
	ImportTasks(ctx context.Context, r io.Reader, baseDir string) (*models.ImportSummary, error)

	// Rubric operations
	ValidateRubric(r io.Reader, filename string) (*models.Rubric, error)
	ApplyRubric(ctx context.Context, r io.Reader, filename string, req *ApplyRubricRequest) (*RubricApplyResult, error)

	// Export operations
	ExportResults(ctx context.Context, filters repositories.SessionFilters) ([]byte, error)
}

type ApplyRubricRequest struct {
	Category models.Category  `json:"category" validate:"required,exam_category"`
	MaxScore *decimal.Decimal `json:"max_score,omitempty"`
}

type RubricApplyResult struct {
	RubricID     uint            `json:"rubric_id"`
	Category     models.Category `json:"category"`
	TotalMax     decimal.Decimal `json:"total_max"`
	TasksUpdated int64           `json:"tasks_updated"`
}

type importExportService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewImportExportService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ImportExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &importExportService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ===== QUESTIONS =====

func (s *importExportService) ImportQuestions(ctx context.Context, r io.Reader, filename string) (*models.ImportSummary, error) {
	start := time.Now()
	s.logger.Info("Starting question import", "filename", filename)

	var rows []models.QuestionImport
	var err error
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		err = json.NewDecoder(r).Decode(&rows)
	case ".xlsx":
		rows, err = parseQuestionSheet(r)
	default:
		return nil, NewValidationError("file", "unsupported file format", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	kind := models.ItemKindQuestion
	existing, err := s.repo.Catalog().ListItems(ctx, repositories.ItemFilters{Kind: &kind})
	if err != nil {
		return nil, fmt.Errorf("failed to load existing questions: %w", err)
	}
	byNumber := make(map[int]uint, len(existing))
	for _, item := range existing {
		byNumber[item.Number] = item.ID
	}

	summary := &models.ImportSummary{TotalRows: len(rows)}
	for i := range rows {
		row := &rows[i]
		if errs := s.validateRow(i+1, row, s.validator.Question().ValidateQuestion(row)); len(errs) > 0 {
			summary.Errors = append(summary.Errors, errs...)
			summary.ErrorCount++
			continue
		}

		if id, ok := byNumber[row.Number]; ok {
			if skip, err := s.inUse(ctx, id); err != nil {
				return nil, err
			} else if skip {
				summary.SkippedCount++
				continue
			}
		}

		created, err := s.repo.Catalog().UpsertQuestion(ctx, questionItem(row))
		if err != nil {
			return nil, fmt.Errorf("failed to store question %d: %w", row.Number, err)
		}
		countUpsert(summary, created)
	}

	summary.ProcessingTime = time.Since(start)
	s.logger.Info("Question import completed",
		"total_rows", summary.TotalRows,
		"created", summary.CreatedCount,
		"updated", summary.UpdatedCount,
		"skipped", summary.SkippedCount,
		"errors", summary.ErrorCount)
	return summary, nil
}

func questionItem(q *models.QuestionImport) *models.AssessmentItem {
	item := &models.AssessmentItem{
		Kind:       models.ItemKindQuestion,
		Number:     q.Number,
		Text:       strings.TrimSpace(q.Text),
		TaskType:   q.TaskType,
		Difficulty: q.Difficulty,
		Points:     models.DefaultQuestionPoints,
		IsActive:   true,
	}
	if q.Score != nil {
		item.Points = *q.Score
	}
	if q.IsActive != nil {
		item.IsActive = *q.IsActive
	}
	for i, a := range q.Answers {
		item.Options = append(item.Options, models.AnswerOption{
			Ordinal:   i + 1,
			Text:      strings.TrimSpace(a.Text),
			IsCorrect: a.IsCorrect,
		})
	}
	return item
}

// parseQuestionSheet reads the first sheet. Columns are matched by header:
// number, text, task_type, difficulty, score, is_active, answer_1..answer_N
// and correct (the 1-based number of the correct answer).
func parseQuestionSheet(r io.Reader) ([]models.QuestionImport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, NewValidationError("file", "Excel file has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read Excel rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, NewValidationError("file", "Excel must have header row and at least one data row", len(rows))
	}

	headerMap := make(map[string]int)
	for i, header := range rows[0] {
		headerMap[strings.ToLower(strings.TrimSpace(header))] = i
	}
	for _, col := range []string{"number", "text", "correct"} {
		if _, ok := headerMap[col]; !ok {
			return nil, NewValidationError("headers", fmt.Sprintf("missing required column: %s", col), col)
		}
	}

	cell := func(row []string, col string) string {
		if idx, ok := headerMap[col]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	out := make([]models.QuestionImport, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if strings.Join(row, "") == "" {
			continue
		}
		number, _ := strconv.Atoi(cell(row, "number"))
		correct, _ := strconv.Atoi(cell(row, "correct"))
		q := models.QuestionImport{
			Number:     number,
			Text:       cell(row, "text"),
			TaskType:   models.TaskType(strings.ToLower(cell(row, "task_type"))),
			Difficulty: models.DifficultyLevel(strings.ToLower(cell(row, "difficulty"))),
		}
		if v := cell(row, "score"); v != "" {
			if score, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ".")); err == nil {
				q.Score = &score
			}
		}
		if v := cell(row, "is_active"); v != "" {
			active, err := strconv.ParseBool(v)
			if err == nil {
				q.IsActive = &active
			}
		}
		for n := 1; ; n++ {
			col := fmt.Sprintf("answer_%d", n)
			if _, ok := headerMap[col]; !ok {
				break
			}
			text := cell(row, col)
			if text == "" {
				continue
			}
			q.Answers = append(q.Answers, models.OptionImport{Text: text, IsCorrect: n == correct})
		}
		out = append(out, q)
	}
	return out, nil
}

// ===== TASKS =====

var referenceKeys = map[string]bool{"first": true, "appeal": true, "cassation": true}

func (s *importExportService) ImportTasks(ctx context.Context, r io.Reader, baseDir string) (*models.ImportSummary, error) {
	start := time.Now()

	var rows []models.TaskImport
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, NewValidationError("file", fmt.Sprintf("invalid JSON: %v", err), nil)
	}

	kind := models.ItemKindTask
	existing, err := s.repo.Catalog().ListItems(ctx, repositories.ItemFilters{Kind: &kind})
	if err != nil {
		return nil, fmt.Errorf("failed to load existing tasks: %w", err)
	}
	byKey := make(map[string]uint, len(existing))
	for _, item := range existing {
		byKey[string(item.Category)+"|"+item.Title] = item.ID
	}

	summary := &models.ImportSummary{TotalRows: len(rows)}
	for i := range rows {
		row := &rows[i]
		rowNum := i + 1

		item, err := s.taskItem(row, baseDir)
		if err != nil {
			summary.Errors = append(summary.Errors, models.ImportValidationError{
				Row: rowNum, Column: "file", Message: err.Error(),
			})
			summary.ErrorCount++
			continue
		}
		if errs := s.validateRow(rowNum, row, s.validator.Question().ValidateTask(row)); len(errs) > 0 {
			summary.Errors = append(summary.Errors, errs...)
			summary.ErrorCount++
			continue
		}

		if id, ok := byKey[string(row.Category)+"|"+row.Title]; ok {
			if skip, err := s.inUse(ctx, id); err != nil {
				return nil, err
			} else if skip {
				summary.SkippedCount++
				continue
			}
		}

		created, err := s.repo.Catalog().UpsertTask(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("failed to store task %q: %w", row.Title, err)
		}
		countUpsert(summary, created)
	}

	summary.ProcessingTime = time.Since(start)
	s.logger.Info("Task import completed",
		"total_rows", summary.TotalRows,
		"created", summary.CreatedCount,
		"updated", summary.UpdatedCount,
		"skipped", summary.SkippedCount,
		"errors", summary.ErrorCount)
	return summary, nil
}

// taskItem resolves file-backed text fields in place and builds the catalog item.
func (s *importExportService) taskItem(t *models.TaskImport, baseDir string) (*models.AssessmentItem, error) {
	fields := []*string{&t.IntroText, &t.DescriptiveText, &t.PartialMotivationText, &t.FactsText, &t.ModelIntroText}
	for _, field := range fields {
		text, _, err := readMaybeFile(*field, baseDir)
		if err != nil {
			return nil, err
		}
		*field = text
	}

	var refs models.References
	fetchedAt := s.now()
	for key, value := range t.Decisions {
		if !referenceKeys[key] {
			return nil, fmt.Errorf("unknown decision %q", key)
		}
		text, source, err := readMaybeFile(value, baseDir)
		if err != nil {
			return nil, err
		}
		if text == "" {
			continue
		}
		ref := &models.Reference{Text: text, Source: source}
		if source != "" {
			ref.FetchedAt = &fetchedAt
		}
		switch key {
		case "first":
			refs.First = ref
		case "appeal":
			refs.Appeal = ref
		case "cassation":
			refs.Cassation = ref
		}
	}

	item := &models.AssessmentItem{
		Kind:     models.ItemKindTask,
		Category: t.Category,
		Title:    strings.TrimSpace(t.Title),
		Points:   models.DefaultTaskMaxScore,
		IsActive: true,
		Template: datatypes.NewJSONType(models.TaskTemplate{
			Intro:             t.IntroText,
			Descriptive:       t.DescriptiveText,
			PartialMotivation: t.PartialMotivationText,
			Facts:             t.FactsText,
			ModelIntro:        t.ModelIntroText,
		}),
		References: datatypes.NewJSONType(refs),
	}
	if t.MaxScore != nil {
		item.Points = *t.MaxScore
	}
	if t.IsActive != nil {
		item.IsActive = *t.IsActive
	}
	return item, nil
}

var (
	trailingBlanks = regexp.MustCompile(`[ \t]+\n`)
	extraNewlines  = regexp.MustCompile(`\n{3,}`)
)

// normalizeText unifies line endings, drops trailing blanks and collapses
// runs of empty lines.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = trailingBlanks.ReplaceAllString(s, "\n")
	s = extraNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// readMaybeFile reads value from disk when it names a .txt file and returns
// the path it read as source.
func readMaybeFile(value, baseDir string) (text string, source string, err error) {
	v := strings.TrimSpace(value)
	if !strings.HasSuffix(strings.ToLower(v), ".txt") {
		return v, "", nil
	}
	path := v
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return normalizeText(string(data)), v, nil
}

// ===== RUBRICS =====

func (s *importExportService) ValidateRubric(r io.Reader, filename string) (*models.Rubric, error) {
	rubric, err := decodeRubric(r, filename)
	if err != nil {
		return nil, err
	}
	if err := rubric.Validate(); err != nil {
		return nil, err
	}
	return rubric, nil
}

func (s *importExportService) ApplyRubric(ctx context.Context, r io.Reader, filename string, req *ApplyRubricRequest) (*RubricApplyResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	rubric, err := s.ValidateRubric(r, filename)
	if err != nil {
		return nil, err
	}
	if rubric.Category == "" {
		rubric.Category = req.Category
	}
	if rubric.Category != req.Category {
		return nil, NewValidationError("category",
			fmt.Sprintf("rubric is for %s, not %s", rubric.Category, req.Category), rubric.Category)
	}
	if req.MaxScore != nil && !req.MaxScore.IsPositive() {
		return nil, NewValidationError("max_score", "must be greater than 0", req.MaxScore.String())
	}

	result := &RubricApplyResult{Category: req.Category, TotalMax: rubric.TotalMax}
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Catalog().SaveRubric(ctx, rubric); err != nil {
			return fmt.Errorf("failed to store rubric: %w", err)
		}
		n, err := tx.Catalog().AttachRubric(ctx, req.Category, rubric.ID, req.MaxScore)
		if err != nil {
			return fmt.Errorf("failed to attach rubric: %w", err)
		}
		result.RubricID = rubric.ID
		result.TasksUpdated = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Rubric applied",
		"rubric_id", result.RubricID,
		"name", rubric.Name,
		"category", req.Category,
		"tasks_updated", result.TasksUpdated)
	return result, nil
}

// decodeRubric accepts JSON or YAML. YAML is converted through a generic
// document so both formats share the json field names.
func decodeRubric(r io.Reader, filename string) (*models.Rubric, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read rubric: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, NewValidationError("file", fmt.Sprintf("invalid YAML: %v", err), nil)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, NewValidationError("file", fmt.Sprintf("unsupported YAML document: %v", err), nil)
		}
	case ".json", "":
	default:
		return nil, NewValidationError("file", "unsupported file format", ext)
	}

	var rubric models.Rubric
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&rubric); err != nil {
		return nil, NewValidationError("file", fmt.Sprintf("invalid rubric: %v", err), nil)
	}
	rubric.ID = 0
	return &rubric, nil
}

// ===== EXPORT =====

var resultHeaders = []interface{}{
	"Token", "Kind", "Category", "Name", "Age", "Started At", "Finished At", "Duration (s)",
	"Total Score", "Questions", "Focus Loss", "Keypresses", "Paste Blocked", "Autosaves", "Evaluation",
}

func (s *importExportService) ExportResults(ctx context.Context, filters repositories.SessionFilters) ([]byte, error) {
	filters.CompletedOnly = true
	sessions, _, err := s.repo.Session().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Results"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &resultHeaders); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	for i, session := range sessions {
		var evaluation *models.EvaluationRecord
		if session.Kind == models.ExamKindPractice {
			evaluation, err = s.repo.Evaluation().GetBySession(ctx, session.ID)
			if err != nil && !repositories.IsNotFoundError(err) {
				return nil, fmt.Errorf("failed to load evaluation: %w", err)
			}
		}
		snap := models.NewCompletionSnapshot(session, evaluation)

		row := []interface{}{
			snap.SessionToken,
			string(snap.Kind),
			string(snap.Category),
			snap.ParticipantName,
			snap.ParticipantAge,
			snap.StartedAt.Format("2006-01-02 15:04:05"),
			snap.FinishedAt.Format("2006-01-02 15:04:05"),
			snap.DurationSeconds,
			"",
			snap.QuestionCount,
			snap.FocusLoss,
			snap.KeypressCount,
			snap.PasteBlocked,
			snap.AutosaveVersion,
			string(snap.EvaluationState),
		}
		if snap.TotalScore.Valid {
			row[8] = snap.TotalScore.Decimal.InexactFloat64()
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Results exported", "sessions", len(sessions))
	return buf.Bytes(), nil
}

// ===== HELPERS =====

func (s *importExportService) validateRow(rowNum int, row interface{}, contentErr error) []models.ImportValidationError {
	var out []models.ImportValidationError
	for _, err := range []error{s.validator.Validate(row), contentErr} {
		if err == nil {
			continue
		}
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			for _, ve := range verrs {
				out = append(out, models.ImportValidationError{
					Row: rowNum, Column: ve.Field, Message: ve.Message, Value: fmt.Sprint(ve.Value),
				})
			}
			continue
		}
		out = append(out, models.ImportValidationError{Row: rowNum, Message: err.Error()})
	}
	return out
}

// inUse reports whether an item is frozen by an in-progress session.
func (s *importExportService) inUse(ctx context.Context, itemID uint) (bool, error) {
	referenced, err := s.repo.Catalog().IsReferencedByActiveSession(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to check item %d: %w", itemID, err)
	}
	if referenced {
		s.logger.Warn("Skipping item referenced by an active session", "item_id", itemID)
	}
	return referenced, nil
}

func countUpsert(summary *models.ImportSummary, created bool) {
	if created {
		summary.CreatedCount++
	} else {
		summary.UpdatedCount++
	}
}
