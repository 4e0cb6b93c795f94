package domain

import "strings"

// FormularyEntry is one covered drug in a payer formulary. Entries are
// immutable for a formulary version and keyed by (plan ID, drug name).
type FormularyEntry struct {
	PlanID              string          `json:"plan_id"`
	DrugName            string          `json:"drug_name"`
	GenericName         string          `json:"generic_name,omitempty"`
	DrugClass           string          `json:"drug_class"`
	Tier                int             `json:"tier"`
	RequiresPA          bool            `json:"requires_pa"`
	StepTherapyRequired bool            `json:"step_therapy_required"`
	AnnualCostWAC       float64         `json:"annual_cost_wac"`
	MemberCopayByTier   map[int]float64 `json:"member_copay_by_tier,omitempty"`
	BiosimilarOf        string          `json:"biosimilar_of,omitempty"`
	ApprovedIndications []Diagnosis     `json:"approved_indications,omitempty"`
}

// Status maps the entry's tier to a formulary status. Tier 1-2 entries
// are payer-preferred.
func (e *FormularyEntry) Status() FormularyStatus {
	if e == nil {
		return UNKNOWN_FORMULARY
	}
	if e.Tier >= 1 && e.Tier <= 2 {
		return FORMULARY
	}
	return NON_FORMULARY
}

// MonthlyCopay returns the member's monthly out-of-pocket for this entry's
// tier, or nil when no copay schedule covers it.
func (e *FormularyEntry) MonthlyCopay() *float64 {
	if e == nil || e.MemberCopayByTier == nil {
		return nil
	}
	copay, ok := e.MemberCopayByTier[e.Tier]
	if !ok {
		return nil
	}
	return &copay
}

// CoversIndication reports whether the entry's approved indications
// include the given diagnosis.
func (e *FormularyEntry) CoversIndication(d Diagnosis) bool {
	for _, ind := range e.ApprovedIndications {
		if ind == d {
			return true
		}
	}
	return false
}

// DrugLabelFact holds FDA label reference data for a drug, keyed by brand
// or generic name. Read-only; AgeDays surfaces staleness without enforcing it.
type DrugLabelFact struct {
	Brand             string   `json:"brand"`
	Generic           string   `json:"generic,omitempty"`
	FDAIndications    []string `json:"fda_indications,omitempty"`
	Contraindications []string `json:"contraindications,omitempty"`
	BlackBoxWarnings  []string `json:"black_box_warnings,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
	AgeDays           int      `json:"age_days,omitempty"`
}

// ClinicalFinding is one piece of evidence from the clinical literature.
// Only reviewed findings are eligible evidence in production mode.
type ClinicalFinding struct {
	ID         int64       `json:"id,omitempty"`
	Finding    string      `json:"finding"`
	Drug       string      `json:"drug,omitempty"`
	DrugClass  string      `json:"drug_class,omitempty"`
	Indication string      `json:"indication,omitempty"`
	Type       FindingType `json:"finding_type"`
	Citation   string      `json:"citation"`
	Reviewed   bool        `json:"reviewed"`
}

// Specificity orders findings by how precisely they match a candidate:
// exact drug match beats drug-class match beats indication-only match.
func (f *ClinicalFinding) Specificity(drug, drugClass string) int {
	if f.Drug != "" && equalDrugNames(f.Drug, drug) {
		return 2
	}
	if f.DrugClass != "" && strings.EqualFold(f.DrugClass, drugClass) {
		return 1
	}
	return 0
}

// FindingQuery selects clinical findings from the evidence store.
// Implementations return reviewed findings only.
type FindingQuery struct {
	Drug         string
	DrugClass    string
	Indication   string
	FindingTypes []FindingType
}

// DosingStep is the next safe de-escalation step for a biologic from the
// reference dosing table: either a reduced dose or an extended interval,
// never both. FillRatio is annual fills under the new regimen divided by
// annual fills under the standard regimen, used for pro-rata cost math.
type DosingStep struct {
	DrugName     string        `json:"drug_name"`
	Type         CandidateType `json:"type"`
	NewDose      string        `json:"new_dose,omitempty"`
	NewFrequency string        `json:"new_frequency,omitempty"`
	FillRatio    float64       `json:"fill_ratio"`
}

// equalDrugNames compares drug names ignoring case and surrounding space.
func equalDrugNames(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// NormalizeDrugName canonicalizes a drug name for keying and comparisons.
func NormalizeDrugName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
