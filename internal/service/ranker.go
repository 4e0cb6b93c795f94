package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/domain"
)

// Ranker orders the flagged/priced/cited candidates into the final
// recommendation set. Contraindicated candidates are dropped whenever a
// clean alternative exists; otherwise the best contraindicated candidate
// surfaces with its flag set so the clinician sees why, and the caller is
// responsible for not auto-applying it. An empty result is a legitimate
// terminal state, not an error.
type Ranker struct {
	logger *logrus.Logger
}

// NewRanker creates a new ranker.
func NewRanker(logger *logrus.Logger) *Ranker {
	return &Ranker{logger: logger}
}

// Rank sorts the candidates by (contraindicated, savings descending with
// nil as zero, type priority, drug name) and converts the survivors into
// ranked recommendations.
func (r *Ranker) Rank(candidates []domain.Candidate) []domain.Recommendation {
	if len(candidates) == 0 {
		return []domain.Recommendation{}
	}

	sorted := make([]domain.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessCandidate(&sorted[i], &sorted[j])
	})

	selected := sorted
	if hasClean(sorted) {
		selected = cleanOnly(sorted)
	} else {
		// No safe option: surface the top contraindicated candidate alone.
		selected = sorted[:1]
	}
	if len(selected) > maxRawCandidates {
		selected = selected[:maxRawCandidates]
	}

	recommendations := make([]domain.Recommendation, 0, len(selected))
	for i := range selected {
		recommendations = append(recommendations, toRecommendation(&selected[i], i+1))
	}

	r.logger.WithFields(logrus.Fields{
		"candidates":      len(candidates),
		"recommendations": len(recommendations),
	}).Debug("Ranked recommendation set")

	return recommendations
}

func lessCandidate(a, b *domain.Candidate) bool {
	if a.Contraindicated != b.Contraindicated {
		return !a.Contraindicated
	}
	aSavings, bSavings := savingsOrZero(a), savingsOrZero(b)
	if aSavings != bSavings {
		return aSavings > bSavings
	}
	if a.Type.Priority() != b.Type.Priority() {
		return a.Type.Priority() < b.Type.Priority()
	}
	return a.DrugName < b.DrugName
}

func savingsOrZero(c *domain.Candidate) float64 {
	if c.AnnualSavings == nil {
		return 0
	}
	return *c.AnnualSavings
}

func hasClean(candidates []domain.Candidate) bool {
	for i := range candidates {
		if !candidates[i].Contraindicated {
			return true
		}
	}
	return false
}

func cleanOnly(candidates []domain.Candidate) []domain.Candidate {
	clean := make([]domain.Candidate, 0, len(candidates))
	for i := range candidates {
		if !candidates[i].Contraindicated {
			clean = append(clean, candidates[i])
		}
	}
	return clean
}

func toRecommendation(c *domain.Candidate, rank int) domain.Recommendation {
	rec := domain.Recommendation{
		Rank:                   rank,
		Type:                   c.Type,
		DrugName:               c.DrugName,
		Rationale:              c.Rationale,
		EvidenceSources:        c.EvidenceSources,
		Contraindicated:        c.Contraindicated,
		ContraindicationReason: c.ContraindicationReason,
		NewDose:                c.NewDose,
		NewFrequency:           c.NewFrequency,
		CurrentAnnualCost:      c.CurrentAnnualCost,
		RecommendedAnnualCost:  c.RecommendedAnnualCost,
		AnnualSavings:          c.AnnualSavings,
		SavingsPercent:         c.SavingsPercent,
		CurrentMonthlyOOP:      c.CurrentMonthlyOOP,
		RecommendedMonthlyOOP:  c.RecommendedMonthlyOOP,
		Tier:                   c.Tier,
		RequiresPA:             c.RequiresPA,
	}
	if rec.EvidenceSources == nil {
		rec.EvidenceSources = []string{}
	}
	if plan := monitoringPlanFor(c.Type); plan != "" {
		rec.MonitoringPlan = &plan
	}
	return rec
}

// monitoringPlanFor returns the standard follow-up plan for a change type.
func monitoringPlanFor(t domain.CandidateType) string {
	switch t {
	case domain.DOSE_REDUCTION, domain.INTERVAL_EXTENSION:
		return "Reassess disease activity and DLQI at 12 weeks; revert to the prior regimen on loss of response."
	case domain.BIOSIMILAR_SWITCH:
		return "Review tolerability and disease control at the first two administrations after the switch."
	case domain.TIER_SWITCH:
		return "Confirm prior-authorization status and reassess disease activity at 12 weeks on the new agent."
	default:
		return ""
	}
}
