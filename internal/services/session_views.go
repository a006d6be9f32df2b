package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/shopspring/decimal"
)

func (s *sessionService) buildView(session *models.AssessmentSession, items []*models.AssessmentItem, records []*models.ResponseRecord) *SessionView {
	byItem := indexRecords(records)

	view := &SessionView{
		Token:            session.Token,
		Kind:             session.Kind,
		Category:         session.Category,
		Status:           session.Status(),
		ParticipantName:  session.ParticipantName,
		ParticipantAge:   session.ParticipantAge,
		StartedAt:        session.StartedAt,
		DeadlineAt:       session.DeadlineAt,
		DurationSeconds:  session.DurationSeconds,
		RemainingSeconds: int(s.deadline.Remaining(session) / time.Second),
		Items:            make([]ItemView, 0, len(items)),
		AutosaveVersion:  session.AutosaveVersion,
	}

	for _, item := range items {
		iv := ItemView{
			ID:       item.ID,
			Kind:     item.Kind,
			Number:   item.Number,
			Title:    item.Title,
			Text:     item.Text,
			TaskType: item.TaskType,
			Points:   item.Points,
		}
		switch item.Kind {
		case models.ItemKindQuestion:
			iv.Options = make([]OptionView, len(item.Options))
			for i, o := range item.Options {
				iv.Options[i] = OptionView{ID: o.ID, Ordinal: o.Ordinal, Text: o.Text}
			}
			if r, ok := byItem[item.ID]; ok {
				iv.SelectedOptionID = r.SelectedOptionID
			}
		case models.ItemKindTask:
			template := item.TemplateData()
			iv.Template = &template

			draft := models.WrittenAnswer{}
			if r, ok := byItem[item.ID]; ok {
				draft = r.Written()
			}
			view.Draft = &draft
		}
		view.Items = append(view.Items, iv)
	}
	return view
}

func (s *sessionService) buildResult(ctx context.Context, session *models.AssessmentSession) (*SessionResult, error) {
	items, err := s.repo.Catalog().GetItems(ctx, session.ItemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load session items: %w", err)
	}
	records, err := s.repo.Response().GetBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}
	byItem := indexRecords(records)

	result := &SessionResult{
		Token:           session.Token,
		Kind:            session.Kind,
		Category:        session.Category,
		ParticipantName: session.ParticipantName,
		ParticipantAge:  session.ParticipantAge,
		StartedAt:       session.StartedAt,
		FinishedAt:      session.FinishedAt,
		DurationSeconds: session.ElapsedSeconds(s.deadline.Now()),
		TotalScore:      session.TotalScore,
		MaxScore:        decimal.Zero,
	}

	for _, item := range items {
		result.MaxScore = result.MaxScore.Add(item.Points)
		record := byItem[item.ID]

		if item.Kind == models.ItemKindTask {
			answer := models.WrittenAnswer{}
			if record != nil {
				answer = record.Written()
			}
			result.Answer = &answer
			result.Document = s.compiler.Compile(session.Category, item.TemplateData(), answer)
			continue
		}

		row := ResultRow{
			ItemID:       item.ID,
			Number:       item.Number,
			Text:         item.Text,
			AwardedScore: decimal.Zero,
			Points:       item.Points,
		}
		if correct, ok := item.CorrectOption(); ok {
			row.CorrectOptionID = &correct.ID
			row.CorrectText = correct.Text
		}
		if record != nil {
			row.SelectedOptionID = record.SelectedOptionID
			row.IsCorrect = record.IsCorrect
			row.AwardedScore = record.AwardedScore
			if record.SelectedOptionID != nil {
				if selected, ok := item.FindOption(*record.SelectedOptionID); ok {
					row.SelectedText = selected.Text
				}
			}
		}
		result.Rows = append(result.Rows, row)
	}

	if session.Kind == models.ExamKindPractice {
		ev, err := s.repo.Evaluation().GetBySession(ctx, session.ID)
		switch {
		case err == nil:
			result.Evaluation = NewEvaluationView(ev)
		case !repositories.IsNotFoundError(err):
			return nil, fmt.Errorf("failed to load evaluation: %w", err)
		}
	}
	return result, nil
}

func indexRecords(records []*models.ResponseRecord) map[uint]*models.ResponseRecord {
	out := make(map[uint]*models.ResponseRecord, len(records))
	for _, r := range records {
		if r != nil {
			out[r.ItemID] = r
		}
	}
	return out
}
