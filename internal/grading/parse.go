package grading

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// RawResult is grader output before normalization. Any numeric field may be
// missing or out of range.
type RawResult struct {
	Total    *decimal.Decimal `json:"total"`
	Groups   []RawGroup       `json:"groups"`
	Feedback string           `json:"feedback"`
	// Scores is the nested layout some graders use: {"scores": {"groups": [...]}}.
	Scores *struct {
		Groups []RawGroup `json:"groups"`
	} `json:"scores,omitempty"`
}

type RawGroup struct {
	Key      string           `json:"key"`
	Title    string           `json:"title"`
	Max      *decimal.Decimal `json:"max"`
	Score    *decimal.Decimal `json:"score"`
	Criteria []RawCriterion   `json:"criteria"`
}

type RawCriterion struct {
	Key        string           `json:"key"`
	Title      string           `json:"title"`
	Max        *decimal.Decimal `json:"max"`
	Score      *decimal.Decimal `json:"score"`
	Deductions Deductions       `json:"deductions"`
}

// Deductions accepts a string or a list of strings.
type Deductions string

func (d *Deductions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*d = Deductions(strings.Join(items, "; "))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = Deductions(s)
	return nil
}

// GroupList returns the groups from whichever layout the grader used.
func (r *RawResult) GroupList() []RawGroup {
	if len(r.Groups) > 0 {
		return r.Groups
	}
	if r.Scores != nil {
		return r.Scores.Groups
	}
	return nil
}

// ParseLenient decodes grader text into a RawResult. Code fences are
// stripped; if the text still does not decode, the outermost brace pair
// is tried. Output without any group is rejected.
func ParseLenient(tier, text string) (*RawResult, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.Trim(s, "`\n ")
		if strings.HasPrefix(strings.ToLower(s), "json") {
			s = strings.TrimLeft(s[4:], " \t\r\n")
		}
	}

	var out RawResult
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start == -1 || end <= start {
			return nil, &ParseError{Tier: tier, Raw: text, Reason: "no JSON object in output"}
		}
		out = RawResult{}
		if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
			return nil, &ParseError{Tier: tier, Raw: text, Reason: "malformed JSON: " + err.Error()}
		}
	}

	if len(out.GroupList()) == 0 {
		return nil, &ParseError{Tier: tier, Raw: text, Reason: "output has no groups"}
	}
	return &out, nil
}
