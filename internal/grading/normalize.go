package grading

import (
	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/shopspring/decimal"
)

// Normalize maps raw grader output onto the rubric. Maxima always come from
// the rubric; raw groups and criteria are matched by key, then by position.
// Criterion scores are clamped to [0, max], a missing group score becomes the
// sum of its clamped criteria, group scores are clamped to [0, max] and the
// total is clamped to the rubric total.
func Normalize(rubric *models.Rubric, raw *RawResult) (models.EvaluationScores, decimal.Decimal) {
	rawGroups := raw.GroupList()
	groups := make([]models.GroupScore, 0, len(rubric.Groups))
	total := decimal.Zero

	for gi, rg := range rubric.Groups {
		src := matchGroup(rawGroups, rg.Key, gi)

		criteria := make([]models.CriterionScore, 0, len(rg.Criteria))
		criteriaSum := decimal.Zero
		for ci, rc := range rg.Criteria {
			var srcCriterion *RawCriterion
			if src != nil {
				srcCriterion = matchCriterion(src.Criteria, rc.Key, ci)
			}
			score := decimal.Zero
			deductions := ""
			if srcCriterion != nil {
				if srcCriterion.Score != nil {
					score = *srcCriterion.Score
				}
				deductions = string(srcCriterion.Deductions)
			}
			score = clamp(score, rc.Max)
			criteriaSum = criteriaSum.Add(score)
			criteria = append(criteria, models.CriterionScore{
				Key:        rc.Key,
				Title:      rc.Title,
				Max:        rc.Max,
				Score:      score,
				Deductions: deductions,
			})
		}

		groupScore := criteriaSum
		if src != nil && src.Score != nil {
			groupScore = *src.Score
		}
		groupScore = clamp(groupScore, rg.Max)
		total = total.Add(groupScore)

		groups = append(groups, models.GroupScore{
			Key:      rg.Key,
			Title:    rg.Title,
			Max:      rg.Max,
			Score:    groupScore,
			Criteria: criteria,
		})
	}

	if total.GreaterThan(rubric.TotalMax) {
		total = rubric.TotalMax
	}

	return models.EvaluationScores{
		Groups: groups,
		Rubric: models.RubricRef{
			Name:     rubric.Name,
			Version:  rubric.Version,
			TotalMax: rubric.TotalMax,
		},
	}, total
}

func clamp(v, max decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

func matchGroup(raw []RawGroup, key string, index int) *RawGroup {
	for i := range raw {
		if raw[i].Key == key {
			return &raw[i]
		}
	}
	if index < len(raw) && raw[index].Key == "" {
		return &raw[index]
	}
	return nil
}

func matchCriterion(raw []RawCriterion, key string, index int) *RawCriterion {
	for i := range raw {
		if raw[i].Key == key {
			return &raw[i]
		}
	}
	if index < len(raw) && raw[index].Key == "" {
		return &raw[index]
	}
	return nil
}
