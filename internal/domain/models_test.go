package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() *AssessmentInput {
	return &AssessmentInput{
		PlanID:         "plan-001",
		MedicationType: BIOLOGIC,
		Diagnosis:      PSORIASIS,
		CurrentBiologic: CurrentBiologic{
			DrugName:  "Humira",
			Dose:      "40mg",
			Frequency: "every 2 weeks",
		},
	}
}

func TestAssessmentInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AssessmentInput)
		wantErr string
	}{
		{"valid", func(a *AssessmentInput) {}, ""},
		{"missing plan", func(a *AssessmentInput) { a.PlanID = "" }, "plan_id"},
		{"missing medication type", func(a *AssessmentInput) { a.MedicationType = "" }, "medication_type"},
		{"bad medication type", func(a *AssessmentInput) { a.MedicationType = "INJECTABLE" }, "medication_type"},
		{"missing diagnosis", func(a *AssessmentInput) { a.Diagnosis = "" }, "diagnosis"},
		{"bad diagnosis", func(a *AssessmentInput) { a.Diagnosis = "ACNE" }, "diagnosis"},
		{"bad contraindication", func(a *AssessmentInput) {
			a.Contraindications = []ContraindicationType{"GLUTEN"}
		}, "contraindications"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)
			err := input.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantErr, ve.Field)
		})
	}
}

func TestAssessmentInputStable(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }
	floatPtr := func(f float64) *float64 { return &f }

	tests := []struct {
		name     string
		isStable *bool
		dlqi     *float64
		want     bool
	}{
		{"explicit stable", boolPtr(true), nil, true},
		{"explicit unstable", boolPtr(false), nil, false},
		{"explicit flag wins over dlqi", boolPtr(false), floatPtr(2), false},
		{"dlqi at threshold", nil, floatPtr(5), true},
		{"dlqi below threshold", nil, floatPtr(2), true},
		{"dlqi above threshold", nil, floatPtr(8), false},
		{"no signal defaults unstable", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			input.IsStable = tt.isStable
			input.DLQIScore = tt.dlqi
			assert.Equal(t, tt.want, input.Stable())
		})
	}
}

func TestAssessmentInputHasFailed(t *testing.T) {
	input := validInput()
	input.FailedTherapies = []string{"Enbrel", "Cosentyx "}

	assert.True(t, input.HasFailed("enbrel"))
	assert.True(t, input.HasFailed("Cosentyx"))
	assert.False(t, input.HasFailed("Humira"))
}

func TestRecommendationValidate(t *testing.T) {
	reason := "patient reported demyelinating disease"

	valid := &Recommendation{
		Rank:     1,
		Type:     BIOSIMILAR_SWITCH,
		DrugName: "Amjevita",
	}
	assert.NoError(t, valid.Validate())

	contraindicated := &Recommendation{
		Rank:            1,
		Type:            TIER_SWITCH,
		DrugName:        "Enbrel",
		Contraindicated: true,
	}
	assert.Error(t, contraindicated.Validate(), "contraindicated without reason must fail")

	contraindicated.ContraindicationReason = &reason
	assert.NoError(t, contraindicated.Validate())

	badRank := &Recommendation{Rank: 4, Type: DOSE_REDUCTION, DrugName: "Humira"}
	assert.Error(t, badRank.Validate())

	badType := &Recommendation{Rank: 1, Type: "UPGRADE", DrugName: "Humira"}
	assert.Error(t, badType.Validate())
}
