package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/biologic-optimizer/internal/domain"
)

// systemPrompt pins the model to the advisory role and the bounded output
// contract. The response schema mirrors domain.Recommendation so both
// reasoning paths normalize to one output shape.
const systemPrompt = `You are a clinical pharmacy decision-support assistant. ` +
	`You recommend cheaper, clinically-equivalent alternatives to a patient's current biologic therapy: ` +
	`dose reduction, interval extension, biosimilar switch, or formulary tier switch. ` +
	`Your output is advisory only and is reviewed by a clinician. ` +
	`Respond with a single JSON object matching the schema in the user message. ` +
	`Propose at most 3 recommendations. Never invent drugs, costs, or citations that are not in the supplied context. ` +
	`If a candidate conflicts with a patient contraindication, keep it but set contraindicated=true with a reason.`

// AssessmentContext is the resolved reference data sent alongside the
// patient payload so the model reasons over the same facts as the
// deterministic path.
type AssessmentContext struct {
	CurrentEntry      *domain.FormularyEntry   `json:"current_formulary_entry,omitempty"`
	ClassAlternatives []domain.FormularyEntry  `json:"class_alternatives,omitempty"`
	CurrentLabel      *domain.DrugLabelFact    `json:"current_drug_label,omitempty"`
	CandidateLabels   []domain.DrugLabelFact   `json:"candidate_drug_labels,omitempty"`
	Findings          []domain.ClinicalFinding `json:"reviewed_findings,omitempty"`
	DosingStep        *domain.DosingStep       `json:"next_dosing_step,omitempty"`
}

// responseSchema is the JSON shape the model must return.
const responseSchema = `{
  "recommendations": [
    {
      "rank": 1,
      "type": "DOSE_REDUCTION|INTERVAL_EXTENSION|BIOSIMILAR_SWITCH|TIER_SWITCH",
      "drug_name": "string",
      "rationale": "string",
      "evidence_sources": ["citation from reviewed_findings"],
      "contraindicated": false,
      "contraindication_reason": null,
      "new_dose": null,
      "new_frequency": null,
      "current_annual_cost": null,
      "recommended_annual_cost": null,
      "annual_savings": null,
      "savings_percent": null,
      "current_monthly_oop": null,
      "recommended_monthly_oop": null,
      "monitoring_plan": null,
      "tier": null,
      "requires_pa": null
    }
  ]
}`

// BuildAssessmentPrompt synthesizes the single-call prompt from the patient
// payload and the resolved reference context.
func BuildAssessmentPrompt(input *domain.AssessmentInput, assessmentCtx *AssessmentContext) (string, error) {
	inputJSON, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling assessment input: %w", err)
	}
	contextJSON, err := json.MarshalIndent(assessmentCtx, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling assessment context: %w", err)
	}

	var b strings.Builder
	b.WriteString("PATIENT ASSESSMENT:\n")
	b.Write(inputJSON)
	b.WriteString("\n\nREFERENCE CONTEXT (formulary, labels, reviewed evidence):\n")
	b.Write(contextJSON)
	b.WriteString("\n\nReturn a JSON object with this exact schema:\n")
	b.WriteString(responseSchema)
	b.WriteString("\nRules:\n")
	b.WriteString("- De-escalation (dose reduction / interval extension) only for stable patients with a next_dosing_step.\n")
	b.WriteString("- Never recommend a drug on the failed_therapies list.\n")
	b.WriteString("- evidence_sources may only contain citations present in reviewed_findings.\n")
	b.WriteString("- Use null, not omission, for unknown optional fields.\n")
	return b.String(), nil
}

// llmResponse is the bounded response envelope.
type llmResponse struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
}

// ParseRecommendations decodes and schema-validates the model output.
// Any violation is an ErrLLMMalformed, which triggers rule-based fallback.
func ParseRecommendations(raw json.RawMessage) ([]domain.Recommendation, error) {
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.DisallowUnknownFields()

	var resp llmResponse
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLLMMalformed, err)
	}
	if resp.Recommendations == nil {
		return nil, fmt.Errorf("%w: missing recommendations field", domain.ErrLLMMalformed)
	}
	if len(resp.Recommendations) > 3 {
		return nil, fmt.Errorf("%w: %d recommendations exceeds bound", domain.ErrLLMMalformed, len(resp.Recommendations))
	}
	for i := range resp.Recommendations {
		// Ranks are reassigned during normalization; validate the rest.
		resp.Recommendations[i].Rank = i + 1
		if err := resp.Recommendations[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrLLMMalformed, err)
		}
	}
	return resp.Recommendations, nil
}
