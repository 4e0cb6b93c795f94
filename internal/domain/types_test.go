package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnosisIsValid(t *testing.T) {
	tests := []struct {
		name      string
		diagnosis Diagnosis
		want      bool
	}{
		{"psoriasis", PSORIASIS, true},
		{"eczema", ECZEMA, true},
		{"hidradenitis suppurativa", HIDRADENITIS_SUPPURATIVA, true},
		{"other", OTHER_DIAGNOSIS, true},
		{"empty", Diagnosis(""), false},
		{"unknown", Diagnosis("ROSACEA"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.diagnosis.IsValid())
		})
	}
}

func TestCandidateTypePriority(t *testing.T) {
	// Same-drug changes must outrank switches on equal savings.
	assert.Less(t, DOSE_REDUCTION.Priority(), BIOSIMILAR_SWITCH.Priority())
	assert.Less(t, INTERVAL_EXTENSION.Priority(), BIOSIMILAR_SWITCH.Priority())
	assert.Less(t, BIOSIMILAR_SWITCH.Priority(), TIER_SWITCH.Priority())
}

func TestCandidateTypeIsSameDrug(t *testing.T) {
	assert.True(t, DOSE_REDUCTION.IsSameDrug())
	assert.True(t, INTERVAL_EXTENSION.IsSameDrug())
	assert.False(t, BIOSIMILAR_SWITCH.IsSameDrug())
	assert.False(t, TIER_SWITCH.IsSameDrug())
}

func TestQuadrantIsStable(t *testing.T) {
	assert.True(t, STABLE_FORMULARY.IsStable())
	assert.True(t, STABLE_NON_FORMULARY.IsStable())
	assert.False(t, UNSTABLE_FORMULARY.IsStable())
	assert.False(t, UNSTABLE_NON_FORMULARY.IsStable())
	assert.False(t, UNKNOWN_QUADRANT.IsStable())
}

func TestFormularyEntryStatus(t *testing.T) {
	tests := []struct {
		name  string
		entry *FormularyEntry
		want  FormularyStatus
	}{
		{"tier 1", &FormularyEntry{Tier: 1}, FORMULARY},
		{"tier 2", &FormularyEntry{Tier: 2}, FORMULARY},
		{"tier 3", &FormularyEntry{Tier: 3}, NON_FORMULARY},
		{"tier 5", &FormularyEntry{Tier: 5}, NON_FORMULARY},
		{"nil entry", nil, UNKNOWN_FORMULARY},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Status())
		})
	}
}

func TestFormularyEntryMonthlyCopay(t *testing.T) {
	entry := &FormularyEntry{
		Tier:              2,
		MemberCopayByTier: map[int]float64{1: 10, 2: 45, 3: 120},
	}
	copay := entry.MonthlyCopay()
	assert.NotNil(t, copay)
	assert.Equal(t, 45.0, *copay)

	noSchedule := &FormularyEntry{Tier: 2}
	assert.Nil(t, noSchedule.MonthlyCopay())

	uncovered := &FormularyEntry{Tier: 4, MemberCopayByTier: map[int]float64{1: 10}}
	assert.Nil(t, uncovered.MonthlyCopay())
}

func TestClinicalFindingSpecificity(t *testing.T) {
	exact := &ClinicalFinding{Drug: "Humira", DrugClass: "TNF inhibitor"}
	classOnly := &ClinicalFinding{DrugClass: "TNF inhibitor"}
	indicationOnly := &ClinicalFinding{Indication: "PSORIASIS"}

	assert.Equal(t, 2, exact.Specificity("humira", "TNF inhibitor"))
	assert.Equal(t, 1, classOnly.Specificity("Humira", "tnf inhibitor"))
	assert.Equal(t, 0, indicationOnly.Specificity("Humira", "TNF inhibitor"))
	assert.Equal(t, 0, exact.Specificity("Enbrel", "IL-17 inhibitor"))
}
