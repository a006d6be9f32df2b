package services

import (
	"testing"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestScorer_Score(t *testing.T) {
	session := &models.AssessmentSession{}
	for id := uint(1); id <= 30; id++ {
		session.ItemIDs = append(session.ItemIDs, id)
	}
	record := func(itemID uint, award string) *models.ResponseRecord {
		return &models.ResponseRecord{ItemID: itemID, AwardedScore: dec(award)}
	}

	tests := []struct {
		name    string
		records []*models.ResponseRecord
		want    string
	}{
		{"no records", nil, "0"},
		{"exact decimal sum", []*models.ResponseRecord{record(1, "1.22"), record(2, "2.16")}, "3.38"},
		{"nil records skipped", []*models.ResponseRecord{nil, record(3, "0.1"), nil}, "0.1"},
		{"repeated item counted once", []*models.ResponseRecord{record(1, "1.22"), record(1, "1.22")}, "1.22"},
		{"item outside session ignored", []*models.ResponseRecord{record(1, "1"), record(99, "5")}, "1"},
		{"negative award ignored", []*models.ResponseRecord{record(1, "-2"), record(2, "0.5")}, "0.5"},
		{"thirty small awards stay exact", repeatAwards(30, "0.1"), "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scorer{}.Score(session, tt.records)
			assert.True(t, got.Equal(dec(tt.want)), "got %s, want %s", got, tt.want)
		})
	}
}

func repeatAwards(n int, award string) []*models.ResponseRecord {
	out := make([]*models.ResponseRecord, n)
	for i := range out {
		out[i] = &models.ResponseRecord{ItemID: uint(i + 1), AwardedScore: dec(award)}
	}
	return out
}
