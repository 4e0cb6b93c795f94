// Package domain contains the core business entities and types for biologic
// therapy optimization: classifying a patient's clinical/financial state,
// enumerating cheaper clinically-equivalent therapy alternatives, and producing
// ranked, evidence-cited recommendations.
package domain

// Diagnosis represents the dermatologic diagnosis driving biologic therapy.
type Diagnosis string

const (
	PSORIASIS                Diagnosis = "PSORIASIS"
	ECZEMA                   Diagnosis = "ECZEMA"
	HIDRADENITIS_SUPPURATIVA Diagnosis = "HIDRADENITIS_SUPPURATIVA"
	OTHER_DIAGNOSIS          Diagnosis = "OTHER"
)

// MedicationType represents the category of the current therapy.
type MedicationType string

const (
	BIOLOGIC       MedicationType = "BIOLOGIC"
	SMALL_MOLECULE MedicationType = "SMALL_MOLECULE"
	TOPICAL        MedicationType = "TOPICAL"
)

// CandidateType represents the kind of therapy change being proposed.
type CandidateType string

const (
	DOSE_REDUCTION     CandidateType = "DOSE_REDUCTION"
	INTERVAL_EXTENSION CandidateType = "INTERVAL_EXTENSION"
	BIOSIMILAR_SWITCH  CandidateType = "BIOSIMILAR_SWITCH"
	TIER_SWITCH        CandidateType = "TIER_SWITCH"
)

// Quadrant represents the stability x formulary-alignment classification
// of a patient. Downstream candidate policy keys off this value.
type Quadrant string

const (
	STABLE_FORMULARY       Quadrant = "stable_formulary"
	STABLE_NON_FORMULARY   Quadrant = "stable_non_formulary"
	UNSTABLE_FORMULARY     Quadrant = "unstable_formulary"
	UNSTABLE_NON_FORMULARY Quadrant = "unstable_non_formulary"
	UNKNOWN_QUADRANT       Quadrant = "unknown"
)

// FormularyStatus represents whether the current drug is payer-preferred.
// Tier 1-2 entries are FORMULARY; tier 3+ are NON_FORMULARY. Drugs absent
// from the formulary are UNKNOWN and cost comparisons are skipped for them.
type FormularyStatus string

const (
	FORMULARY         FormularyStatus = "FORMULARY"
	NON_FORMULARY     FormularyStatus = "NON_FORMULARY"
	UNKNOWN_FORMULARY FormularyStatus = "UNKNOWN"
)

// FindingType categorizes clinical findings in the evidence store.
type FindingType string

const (
	EFFICACY                   FindingType = "EFFICACY"
	SAFETY                     FindingType = "SAFETY"
	DOSE_REDUCTION_FINDING     FindingType = "DOSE_REDUCTION"
	INTERVAL_EXTENSION_FINDING FindingType = "INTERVAL_EXTENSION"
	COST_EFFECTIVENESS         FindingType = "COST_EFFECTIVENESS"
	OTHER_FINDING              FindingType = "OTHER"
)

// ContraindicationType represents a patient-reported condition screened
// against drug label contraindications and black-box warnings.
type ContraindicationType string

const (
	ACTIVE_INFECTION      ContraindicationType = "ACTIVE_INFECTION"
	TUBERCULOSIS          ContraindicationType = "TUBERCULOSIS"
	HEART_FAILURE         ContraindicationType = "HEART_FAILURE"
	DEMYELINATING_DISEASE ContraindicationType = "DEMYELINATING_DISEASE"
	MALIGNANCY            ContraindicationType = "MALIGNANCY"
	HEPATITIS_B           ContraindicationType = "HEPATITIS_B"
	INFLAMMATORY_BOWEL    ContraindicationType = "INFLAMMATORY_BOWEL_DISEASE"
	HYPERSENSITIVITY      ContraindicationType = "HYPERSENSITIVITY"
)

// IsValid validates the diagnosis enum value.
func (d Diagnosis) IsValid() bool {
	switch d {
	case PSORIASIS, ECZEMA, HIDRADENITIS_SUPPURATIVA, OTHER_DIAGNOSIS:
		return true
	default:
		return false
	}
}

// String returns the string representation of the diagnosis.
func (d Diagnosis) String() string {
	return string(d)
}

// IsValid validates the medication type.
func (mt MedicationType) IsValid() bool {
	switch mt {
	case BIOLOGIC, SMALL_MOLECULE, TOPICAL:
		return true
	default:
		return false
	}
}

// String returns the string representation of the medication type.
func (mt MedicationType) String() string {
	return string(mt)
}

// IsValid validates the candidate type.
func (ct CandidateType) IsValid() bool {
	switch ct {
	case DOSE_REDUCTION, INTERVAL_EXTENSION, BIOSIMILAR_SWITCH, TIER_SWITCH:
		return true
	default:
		return false
	}
}

// String returns the string representation of the candidate type.
func (ct CandidateType) String() string {
	return string(ct)
}

// IsSameDrug reports whether the candidate keeps the patient on the
// current drug. Same-drug changes use pro-rata cost recomputation
// instead of a formulary lookup.
func (ct CandidateType) IsSameDrug() bool {
	return ct == DOSE_REDUCTION || ct == INTERVAL_EXTENSION
}

// Priority returns the ranking tie-break priority of the candidate type.
// Same-drug changes carry lower disruption risk than drug switches and
// therefore win ties; lower values sort first.
func (ct CandidateType) Priority() int {
	switch ct {
	case DOSE_REDUCTION:
		return 0
	case INTERVAL_EXTENSION:
		return 1
	case BIOSIMILAR_SWITCH:
		return 2
	case TIER_SWITCH:
		return 3
	default:
		return 4
	}
}

// IsValid validates the quadrant.
func (q Quadrant) IsValid() bool {
	switch q {
	case STABLE_FORMULARY, STABLE_NON_FORMULARY, UNSTABLE_FORMULARY, UNSTABLE_NON_FORMULARY, UNKNOWN_QUADRANT:
		return true
	default:
		return false
	}
}

// String returns the string representation of the quadrant.
func (q Quadrant) String() string {
	return string(q)
}

// IsStable reports whether the quadrant reflects a clinically stable patient.
// De-escalation candidates (dose reduction, interval extension) are only
// eligible for stable quadrants.
func (q Quadrant) IsStable() bool {
	return q == STABLE_FORMULARY || q == STABLE_NON_FORMULARY
}

// IsValid validates the formulary status.
func (fs FormularyStatus) IsValid() bool {
	switch fs {
	case FORMULARY, NON_FORMULARY, UNKNOWN_FORMULARY:
		return true
	default:
		return false
	}
}

// String returns the string representation of the formulary status.
func (fs FormularyStatus) String() string {
	return string(fs)
}

// IsValid validates the finding type.
func (ft FindingType) IsValid() bool {
	switch ft {
	case EFFICACY, SAFETY, DOSE_REDUCTION_FINDING, INTERVAL_EXTENSION_FINDING, COST_EFFECTIVENESS, OTHER_FINDING:
		return true
	default:
		return false
	}
}

// String returns the string representation of the finding type.
func (ft FindingType) String() string {
	return string(ft)
}

// IsValid validates the contraindication type.
func (c ContraindicationType) IsValid() bool {
	switch c {
	case ACTIVE_INFECTION, TUBERCULOSIS, HEART_FAILURE, DEMYELINATING_DISEASE,
		MALIGNANCY, HEPATITIS_B, INFLAMMATORY_BOWEL, HYPERSENSITIVITY:
		return true
	default:
		return false
	}
}

// String returns the string representation of the contraindication type.
func (c ContraindicationType) String() string {
	return string(c)
}
