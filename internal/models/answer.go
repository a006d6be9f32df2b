package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ResponseRecord is the ledger entry for one (session, item) pair.
// IsCorrect and AwardedScore are always derived from the catalog answer key.
type ResponseRecord struct {
	ID               uint                              `json:"-" gorm:"primaryKey"`
	SessionID        uint                              `json:"-" gorm:"not null;uniqueIndex:idx_response_session_item"`
	ItemID           uint                              `json:"item_id" gorm:"not null;uniqueIndex:idx_response_session_item"`
	SelectedOptionID *uint                             `json:"selected_option_id,omitempty"`
	FreeText         datatypes.JSONType[WrittenAnswer] `json:"free_text" gorm:"type:jsonb"`
	IsCorrect        bool                              `json:"is_correct" gorm:"default:false"`
	AwardedScore     decimal.Decimal                   `json:"awarded_score" gorm:"type:numeric(6,2);not null;default:0"`
	AnsweredAt       time.Time                         `json:"answered_at"`
	UpdatedAt        time.Time                         `json:"updated_at"`
}

// WrittenAnswer is the participant-authored part of a written exam document.
type WrittenAnswer struct {
	Motivation string `json:"motivation"`
	Resolution string `json:"resolution"`
}

func (r *ResponseRecord) Written() WrittenAnswer {
	return r.FreeText.Data()
}
