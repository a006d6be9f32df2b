package services

import (
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/shopspring/decimal"
)

// Scorer sums awarded points of a session's ledger in fixed-point decimal.
type Scorer struct{}

// Score never fails. Nil records, negative awards, items outside the
// session and repeated items are ignored.
func (Scorer) Score(session *models.AssessmentSession, records []*models.ResponseRecord) decimal.Decimal {
	total := decimal.Zero
	seen := make(map[uint]bool, len(records))
	for _, r := range records {
		if r == nil || seen[r.ItemID] || !session.HasItem(r.ItemID) {
			continue
		}
		seen[r.ItemID] = true
		if r.AwardedScore.IsNegative() {
			continue
		}
		total = total.Add(r.AwardedScore)
	}
	return total
}
