package service

import (
	"context"
	"errors"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/domain"
)

// CostCalculator fills in the monetary fields on each candidate. Every
// field is nullable: missing formulary cost data is a normal condition
// that never blocks the rest of the recommendation.
type CostCalculator struct {
	logger    *logrus.Logger
	formulary domain.FormularyService
}

// NewCostCalculator creates a new cost calculator.
func NewCostCalculator(logger *logrus.Logger, formulary domain.FormularyService) *CostCalculator {
	return &CostCalculator{
		logger:    logger,
		formulary: formulary,
	}
}

// Price computes annual cost, out-of-pocket, and savings for each candidate
// against the patient's current therapy. When the current drug does not
// resolve in the formulary all cost fields stay nil.
func (c *CostCalculator) Price(ctx context.Context, input *domain.AssessmentInput, state *domain.PatientState, candidates []domain.Candidate) []domain.Candidate {
	current := state.CurrentEntry
	if current == nil {
		c.logger.WithField("drug", input.CurrentBiologic.DrugName).Debug("Current drug absent from formulary, skipping cost comparison")
		return candidates
	}

	for i := range candidates {
		c.priceOne(ctx, input.PlanID, current, &candidates[i])
	}
	return candidates
}

func (c *CostCalculator) priceOne(ctx context.Context, planID string, current *domain.FormularyEntry, candidate *domain.Candidate) {
	currentAnnual := current.AnnualCostWAC
	candidate.CurrentAnnualCost = &currentAnnual
	candidate.CurrentMonthlyOOP = current.MonthlyCopay()

	var recommendedAnnual *float64
	switch {
	case candidate.Type.IsSameDrug():
		// Same-drug regimen change: the drug itself does not change, so
		// recompute pro-rata from the fill ratio instead of a lookup.
		if candidate.FillRatio != nil {
			adjusted := currentAnnual * *candidate.FillRatio
			recommendedAnnual = &adjusted
		}
		candidate.RecommendedMonthlyOOP = current.MonthlyCopay()
	default:
		entry, err := c.formulary.GetEntry(ctx, planID, candidate.DrugName)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				c.logger.WithError(err).WithField("drug", candidate.DrugName).Warn("Formulary lookup failed while pricing candidate")
			}
			return
		}
		annual := entry.AnnualCostWAC
		recommendedAnnual = &annual
		candidate.RecommendedMonthlyOOP = entry.MonthlyCopay()
	}

	if recommendedAnnual == nil {
		return
	}
	candidate.RecommendedAnnualCost = recommendedAnnual

	// Negative savings are retained: a costlier option can still be
	// clinically justified and must stay visible.
	savings := currentAnnual - *recommendedAnnual
	candidate.AnnualSavings = &savings
	candidate.SavingsPercent = savingsPercent(savings, currentAnnual)
}

// savingsPercent returns savings as a percentage of the current annual
// cost, rounded to one decimal. Nil rather than NaN/Inf on a zero base.
func savingsPercent(savings, currentAnnual float64) *float64 {
	if currentAnnual == 0 {
		return nil
	}
	pct := math.Round(savings/currentAnnual*1000) / 10
	return &pct
}
