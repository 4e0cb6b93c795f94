package domain

import (
	"errors"
	"fmt"
	"time"
)

// DLQI score at or below this value is treated as clinically stable.
const StableDLQIThreshold = 5.0

// CurrentBiologic describes the therapy the patient is on today.
type CurrentBiologic struct {
	DrugName  string `json:"drug_name"`
	Dose      string `json:"dose,omitempty"`
	Frequency string `json:"frequency,omitempty"`
}

// AssessmentInput is the per-request payload the engine consumes. It is
// constructed by the caller and never retained after the run completes.
type AssessmentInput struct {
	PatientID            string                 `json:"patient_id,omitempty"`
	PlanID               string                 `json:"plan_id"`
	MedicationType       MedicationType         `json:"medication_type"`
	CurrentBiologic      CurrentBiologic        `json:"current_biologic"`
	Diagnosis            Diagnosis              `json:"diagnosis"`
	HasPsoriaticArthritis bool                  `json:"has_psoriatic_arthritis"`
	Contraindications    []ContraindicationType `json:"contraindications,omitempty"`
	FailedTherapies      []string               `json:"failed_therapies,omitempty"`
	IsStable             *bool                  `json:"is_stable,omitempty"`
	DLQIScore            *float64               `json:"dlqi_score,omitempty"`
	BMI                  *float64               `json:"bmi,omitempty"`
}

// Validate enforces the required-field contract. A failure here is the only
// hard error the caller ever sees; everything downstream degrades gracefully.
func (a *AssessmentInput) Validate() error {
	if a.PlanID == "" {
		return &ValidationError{Field: "plan_id", Message: "plan ID is required"}
	}
	if a.MedicationType == "" {
		return &ValidationError{Field: "medication_type", Message: "medication type is required"}
	}
	if !a.MedicationType.IsValid() {
		return &ValidationError{Field: "medication_type", Message: fmt.Sprintf("unknown medication type %q", a.MedicationType), Value: string(a.MedicationType)}
	}
	if a.Diagnosis == "" {
		return &ValidationError{Field: "diagnosis", Message: "diagnosis is required"}
	}
	if !a.Diagnosis.IsValid() {
		return &ValidationError{Field: "diagnosis", Message: fmt.Sprintf("unknown diagnosis %q", a.Diagnosis), Value: string(a.Diagnosis)}
	}
	for _, c := range a.Contraindications {
		if !c.IsValid() {
			return &ValidationError{Field: "contraindications", Message: fmt.Sprintf("unknown contraindication %q", c), Value: string(c)}
		}
	}
	return nil
}

// Stable is the canonical stability predicate. An explicit stability flag
// wins; otherwise a DLQI score at or below the threshold means stable.
// With neither signal present the patient is treated as unstable.
func (a *AssessmentInput) Stable() bool {
	if a.IsStable != nil {
		return *a.IsStable
	}
	if a.DLQIScore != nil {
		return *a.DLQIScore <= StableDLQIThreshold
	}
	return false
}

// HasFailed reports whether the named drug appears on the patient's
// failed-therapy list (case-insensitive).
func (a *AssessmentInput) HasFailed(drugName string) bool {
	for _, failed := range a.FailedTherapies {
		if equalDrugNames(failed, drugName) {
			return true
		}
	}
	return false
}

// PatientState is the output of the stability/formulary classifier.
type PatientState struct {
	Quadrant        Quadrant         `json:"quadrant"`
	FormularyStatus FormularyStatus  `json:"formulary_status"`
	Stable          bool             `json:"stable"`
	CurrentEntry    *FormularyEntry  `json:"current_entry,omitempty"`
}

// Candidate is a proposed therapy change flowing through the pipeline.
// Ownership passes linearly stage to stage; each stage enriches it in place.
type Candidate struct {
	Type                   CandidateType `json:"type"`
	DrugName               string        `json:"drug_name"`
	DrugClass              string        `json:"drug_class,omitempty"`
	NewDose                *string       `json:"new_dose"`
	NewFrequency           *string       `json:"new_frequency"`
	Tier                   *int          `json:"tier"`
	RequiresPA             *bool         `json:"requires_pa"`
	Contraindicated        bool          `json:"contraindicated"`
	ContraindicationReason *string       `json:"contraindication_reason"`

	// Populated by the cost calculator. All nullable: missing formulary
	// data is a normal condition, never an error.
	CurrentAnnualCost      *float64 `json:"current_annual_cost"`
	RecommendedAnnualCost  *float64 `json:"recommended_annual_cost"`
	AnnualSavings          *float64 `json:"annual_savings"`
	SavingsPercent         *float64 `json:"savings_percent"`
	CurrentMonthlyOOP      *float64 `json:"current_monthly_oop"`
	RecommendedMonthlyOOP  *float64 `json:"recommended_monthly_oop"`

	// Populated by the rationale composer.
	Rationale       string   `json:"rationale,omitempty"`
	EvidenceSources []string `json:"evidence_sources,omitempty"`

	// Populated by the dosing reference for same-drug changes: the ratio of
	// annual fills under the new regimen versus the current one.
	FillRatio *float64 `json:"-"`
}

// Recommendation is the final output unit. Optional fields are
// present-but-null on the wire so consumers can rely on key presence.
// The engine never mutates a Recommendation after returning it.
type Recommendation struct {
	Rank                   int           `json:"rank"`
	Type                   CandidateType `json:"type"`
	DrugName               string        `json:"drug_name"`
	Rationale              string        `json:"rationale"`
	EvidenceSources        []string      `json:"evidence_sources"`
	Contraindicated        bool          `json:"contraindicated"`
	ContraindicationReason *string       `json:"contraindication_reason"`
	NewDose                *string       `json:"new_dose"`
	NewFrequency           *string       `json:"new_frequency"`
	CurrentAnnualCost      *float64      `json:"current_annual_cost"`
	RecommendedAnnualCost  *float64      `json:"recommended_annual_cost"`
	AnnualSavings          *float64      `json:"annual_savings"`
	SavingsPercent         *float64      `json:"savings_percent"`
	CurrentMonthlyOOP      *float64      `json:"current_monthly_oop"`
	RecommendedMonthlyOOP  *float64      `json:"recommended_monthly_oop"`
	MonitoringPlan         *string       `json:"monitoring_plan"`
	Tier                   *int          `json:"tier"`
	RequiresPA             *bool         `json:"requires_pa"`
}

// Validate checks the invariants every recommendation must satisfy before
// it leaves the engine, regardless of which path produced it.
func (r *Recommendation) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("recommendation validation: unknown candidate type %q", r.Type)
	}
	if r.DrugName == "" {
		return fmt.Errorf("recommendation validation: %w", errors.New("drug name is required"))
	}
	if r.Rank < 1 || r.Rank > 3 {
		return fmt.Errorf("recommendation validation: rank %d out of range", r.Rank)
	}
	if r.Contraindicated && (r.ContraindicationReason == nil || *r.ContraindicationReason == "") {
		return fmt.Errorf("recommendation validation: %w", errors.New("contraindicated recommendation requires a reason"))
	}
	return nil
}

// AssessmentPath records which reasoning path produced a result. Internal
// telemetry only; callers cannot distinguish paths from the output schema.
type AssessmentPath string

const (
	PathLLM       AssessmentPath = "llm"
	PathRuleBased AssessmentPath = "rule_based"
)

// AssessmentResult is the normalized engine output.
type AssessmentResult struct {
	AssessmentID    string           `json:"assessment_id"`
	Recommendations []Recommendation `json:"recommendations"`
	Path            AssessmentPath   `json:"path"`
	GeneratedAt     time.Time        `json:"generated_at"`
	ProcessingTime  time.Duration    `json:"processing_time"`
}
