package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biologic-optimizer/internal/domain"
)

func TestContraindicationScreener_Screen_FailedTherapy(t *testing.T) {
	screener := NewContraindicationScreener(newTestLogger(), fixtureLabels())
	input := stablePsoriasisInput()
	input.FailedTherapies = []string{"Enbrel"}

	candidates := []domain.Candidate{
		{Type: domain.TIER_SWITCH, DrugName: "Enbrel", DrugClass: "TNF inhibitor"},
	}
	screened := screener.Screen(context.Background(), input, candidates)

	require.Len(t, screened, 1)
	assert.True(t, screened[0].Contraindicated)
	require.NotNil(t, screened[0].ContraindicationReason)
	assert.Contains(t, *screened[0].ContraindicationReason, "failed-therapy")
}

func TestContraindicationScreener_Screen_LabelWarningMatch(t *testing.T) {
	screener := NewContraindicationScreener(newTestLogger(), fixtureLabels())

	tests := []struct {
		name              string
		contraindications []domain.ContraindicationType
		drug              string
		wantFlagged       bool
	}{
		{
			name:              "Tuberculosis against TNF black box",
			contraindications: []domain.ContraindicationType{domain.TUBERCULOSIS},
			drug:              "Amjevita",
			wantFlagged:       true,
		},
		{
			name:              "Malignancy against TNF black box",
			contraindications: []domain.ContraindicationType{domain.MALIGNANCY},
			drug:              "Enbrel",
			wantFlagged:       true,
		},
		{
			name:              "Tuberculosis against IL-23 label",
			contraindications: []domain.ContraindicationType{domain.TUBERCULOSIS},
			drug:              "Skyrizi",
			wantFlagged:       false,
		},
		{
			name:              "No contraindications reported",
			contraindications: nil,
			drug:              "Amjevita",
			wantFlagged:       false,
		},
		{
			name:              "Hypersensitivity against explicit contraindication",
			contraindications: []domain.ContraindicationType{domain.HYPERSENSITIVITY},
			drug:              "Skyrizi",
			wantFlagged:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := stablePsoriasisInput()
			input.Contraindications = tt.contraindications

			candidates := []domain.Candidate{{Type: domain.TIER_SWITCH, DrugName: tt.drug}}
			screened := screener.Screen(context.Background(), input, candidates)

			require.Len(t, screened, 1)
			assert.Equal(t, tt.wantFlagged, screened[0].Contraindicated)
			if tt.wantFlagged {
				require.NotNil(t, screened[0].ContraindicationReason)
				assert.NotEmpty(t, *screened[0].ContraindicationReason)
			} else {
				assert.Nil(t, screened[0].ContraindicationReason)
			}
		})
	}
}

func TestContraindicationScreener_Screen_PsoriaticArthritisCoverage(t *testing.T) {
	screener := NewContraindicationScreener(newTestLogger(), fixtureLabels())
	input := stablePsoriasisInput()
	input.HasPsoriaticArthritis = true

	candidates := []domain.Candidate{
		{Type: domain.TIER_SWITCH, DrugName: "Enbrel"},   // PsA on label
		{Type: domain.TIER_SWITCH, DrugName: "Dupixent"}, // no PsA indication
	}
	screened := screener.Screen(context.Background(), input, candidates)

	require.Len(t, screened, 2)
	assert.False(t, screened[0].Contraindicated)
	assert.True(t, screened[1].Contraindicated)
	require.NotNil(t, screened[1].ContraindicationReason)
	assert.Contains(t, *screened[1].ContraindicationReason, "psoriatic arthritis")
}

func TestContraindicationScreener_Screen_LabelMissSkipsLabelChecks(t *testing.T) {
	screener := NewContraindicationScreener(newTestLogger(), fixtureLabels())
	input := stablePsoriasisInput()
	input.Contraindications = []domain.ContraindicationType{domain.TUBERCULOSIS}
	input.HasPsoriaticArthritis = true

	candidates := []domain.Candidate{{Type: domain.TIER_SWITCH, DrugName: "Remicade"}}
	screened := screener.Screen(context.Background(), input, candidates)

	require.Len(t, screened, 1)
	assert.False(t, screened[0].Contraindicated, "no label data means no label-based flag")
}

func TestContraindicationScreener_Screen_RetainsFlaggedCandidates(t *testing.T) {
	screener := NewContraindicationScreener(newTestLogger(), fixtureLabels())
	input := stablePsoriasisInput()
	input.Contraindications = []domain.ContraindicationType{domain.TUBERCULOSIS}

	candidates := []domain.Candidate{
		{Type: domain.BIOSIMILAR_SWITCH, DrugName: "Amjevita"},
		{Type: domain.TIER_SWITCH, DrugName: "Enbrel"},
	}
	screened := screener.Screen(context.Background(), input, candidates)

	assert.Len(t, screened, 2, "screening flags, it never drops")
}
