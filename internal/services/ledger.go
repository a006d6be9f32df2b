package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ResponseLedger writes one record per (session, item). Correctness and the
// awarded score are always derived from the catalog answer key.
type ResponseLedger struct{}

// Record upserts the answer to one item. repo must be the transaction the
// caller holds the session lock in.
func (ResponseLedger) Record(ctx context.Context, repo repositories.Repository, session *models.AssessmentSession,
	answer *AnswerSubmission, now time.Time) (*models.ResponseRecord, error) {

	if session.IsCompleted {
		return nil, ErrSessionCompleted
	}
	if !session.HasItem(answer.ItemID) {
		return nil, fmt.Errorf("%w: item %d", ErrBadItem, answer.ItemID)
	}

	item, err := repo.Catalog().GetItem(ctx, answer.ItemID)
	if err != nil {
		return nil, mapNotFound(err, ErrItemNotFound)
	}

	record := &models.ResponseRecord{
		SessionID:    session.ID,
		ItemID:       item.ID,
		AwardedScore: decimal.Zero,
		AnsweredAt:   now,
	}

	switch item.Kind {
	case models.ItemKindQuestion:
		if answer.OptionID != nil {
			option, ok := item.FindOption(*answer.OptionID)
			if !ok {
				return nil, NewValidationError("option_id",
					fmt.Sprintf("option %d does not belong to item %d", *answer.OptionID, item.ID), *answer.OptionID)
			}
			record.SelectedOptionID = &option.ID
			record.IsCorrect = option.IsCorrect
			if option.IsCorrect {
				record.AwardedScore = item.Points
			}
		}
	case models.ItemKindTask:
		// Fields left out of the submission keep their stored text.
		written := models.WrittenAnswer{}
		existing, err := repo.Response().GetBySessionAndItem(ctx, session.ID, item.ID)
		switch {
		case err == nil:
			written = existing.Written()
		case !repositories.IsNotFoundError(err):
			return nil, fmt.Errorf("failed to load response: %w", err)
		}
		if answer.Motivation != nil {
			written.Motivation = *answer.Motivation
		}
		if answer.Resolution != nil {
			written.Resolution = *answer.Resolution
		}
		record.FreeText = datatypes.NewJSONType(written)
	}

	if err := repo.Response().Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record response: %w", err)
	}
	return record, nil
}
