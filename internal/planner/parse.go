package planner

import (
	"encoding/json"
	"strings"
)

// proposedPlan is the JSON structure the reasoning collaborator returns.
type proposedPlan struct {
	Plan       []string `json:"plan"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// parseResponse extracts the proposed plan from the collaborator's free-form
// text. Models wrap JSON in prose or code fences, so the parser takes the
// outermost object literal rather than requiring a clean document.
func parseResponse(response string) (*proposedPlan, error) {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		preview := response
		if len(preview) > 200 {
			preview = preview[:200] + "... (truncated)"
		}
		return nil, &PlannerParseError{Reason: "no JSON object found in " + strings.TrimSpace(preview)}
	}

	var proposed proposedPlan
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &proposed); err != nil {
		return nil, &PlannerParseError{Reason: err.Error()}
	}
	if len(proposed.Plan) == 0 {
		return nil, &PlannerParseError{Reason: "empty plan"}
	}
	for _, name := range proposed.Plan {
		if strings.TrimSpace(name) == "" {
			return nil, &PlannerParseError{Reason: "plan contains empty skill name"}
		}
	}
	if proposed.Confidence < 0 {
		proposed.Confidence = 0
	}
	if proposed.Confidence > 1 {
		proposed.Confidence = 1
	}
	return &proposed, nil
}
