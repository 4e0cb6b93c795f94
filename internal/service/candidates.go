package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/domain"
)

// maxRawCandidates caps the candidate set before screening.
const maxRawCandidates = 3

// CandidateGenerator enumerates therapy-change candidates by policy:
// one de-escalation step for stable patients, biosimilar switches when a
// preferred-tier biosimilar of the current drug exists, and tier-preferred
// switches when the current drug is non-formulary.
type CandidateGenerator struct {
	logger    *logrus.Logger
	formulary domain.FormularyService
	dosing    domain.DosingReference
}

// NewCandidateGenerator creates a new candidate generator.
func NewCandidateGenerator(logger *logrus.Logger, formulary domain.FormularyService, dosing domain.DosingReference) *CandidateGenerator {
	return &CandidateGenerator{
		logger:    logger,
		formulary: formulary,
		dosing:    dosing,
	}
}

// Generate produces at most three raw candidates for the assessment. An
// OTHER or unmapped diagnosis yields an empty set rather than a guess.
func (g *CandidateGenerator) Generate(ctx context.Context, input *domain.AssessmentInput, state *domain.PatientState) []domain.Candidate {
	if input.Diagnosis == domain.OTHER_DIAGNOSIS || !input.Diagnosis.IsValid() {
		g.logger.WithField("diagnosis", input.Diagnosis.String()).Debug("Diagnosis outside candidate policy, returning empty set")
		return nil
	}

	candidates := make([]domain.Candidate, 0, maxRawCandidates)

	if deEscalation := g.deEscalationCandidate(input, state); deEscalation != nil {
		candidates = append(candidates, *deEscalation)
	}

	// Formulary-switch candidates need a resolved current entry; with an
	// UNKNOWN formulary status only clinical-only candidates are attempted.
	if state.CurrentEntry != nil {
		if biosimilar := g.biosimilarCandidate(ctx, input, state); biosimilar != nil {
			candidates = append(candidates, *biosimilar)
		}
		if state.FormularyStatus == domain.NON_FORMULARY {
			candidates = append(candidates, g.tierPreferredCandidates(ctx, input, state, maxRawCandidates-len(candidates))...)
		}
	}

	if len(candidates) > maxRawCandidates {
		candidates = candidates[:maxRawCandidates]
	}

	g.logger.WithFields(logrus.Fields{
		"plan_id":    input.PlanID,
		"drug":       input.CurrentBiologic.DrugName,
		"quadrant":   state.Quadrant.String(),
		"candidates": len(candidates),
	}).Info("Generated therapy-change candidates")

	return candidates
}

// deEscalationCandidate proposes the next safe dosing step for the current
// biologic. Eligible only for stable quadrants and drugs with a known entry
// in the reference dosing table; exactly one step is proposed.
func (g *CandidateGenerator) deEscalationCandidate(input *domain.AssessmentInput, state *domain.PatientState) *domain.Candidate {
	if !state.Quadrant.IsStable() {
		return nil
	}

	step, ok := g.dosing.NextStep(input.CurrentBiologic.DrugName)
	if !ok {
		return nil
	}

	newDose := step.NewDose
	newFrequency := step.NewFrequency
	fillRatio := step.FillRatio

	candidate := &domain.Candidate{
		Type:         step.Type,
		DrugName:     input.CurrentBiologic.DrugName,
		NewDose:      &newDose,
		NewFrequency: &newFrequency,
		FillRatio:    &fillRatio,
	}
	if state.CurrentEntry != nil {
		candidate.DrugClass = state.CurrentEntry.DrugClass
		tier := state.CurrentEntry.Tier
		requiresPA := state.CurrentEntry.RequiresPA
		candidate.Tier = &tier
		candidate.RequiresPA = &requiresPA
	}
	return candidate
}

// biosimilarCandidate looks for a preferred-tier formulary entry in the same
// drug class whose biosimilar linkage points at the current drug.
func (g *CandidateGenerator) biosimilarCandidate(ctx context.Context, input *domain.AssessmentInput, state *domain.PatientState) *domain.Candidate {
	entries, err := g.formulary.ListByClass(ctx, input.PlanID, state.CurrentEntry.DrugClass, 2)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.WithError(err).Warn("Formulary class listing failed, skipping biosimilar candidates")
		}
		return nil
	}

	current := input.CurrentBiologic.DrugName
	var matches []domain.FormularyEntry
	for _, entry := range entries {
		if entry.BiosimilarOf != "" && strings.EqualFold(entry.BiosimilarOf, current) &&
			!input.HasFailed(entry.DrugName) {
			matches = append(matches, entry)
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sortEntriesDeterministic(matches)
	return switchCandidate(domain.BIOSIMILAR_SWITCH, matches[0])
}

// tierPreferredCandidates lists same-class, tier<=2 entries approved for the
// patient's diagnosis, excluding failed therapies, the current drug, and
// biosimilars (those surface through the biosimilar path). Deterministic
// tie-break: tier, then annual WAC, then drug name.
func (g *CandidateGenerator) tierPreferredCandidates(ctx context.Context, input *domain.AssessmentInput, state *domain.PatientState, limit int) []domain.Candidate {
	if limit <= 0 {
		return nil
	}

	entries, err := g.formulary.ListByClass(ctx, input.PlanID, state.CurrentEntry.DrugClass, 2)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.WithError(err).Warn("Formulary class listing failed, skipping tier-preferred candidates")
		}
		return nil
	}

	current := input.CurrentBiologic.DrugName
	var eligible []domain.FormularyEntry
	for _, entry := range entries {
		if strings.EqualFold(entry.DrugName, current) {
			continue
		}
		if entry.BiosimilarOf != "" && strings.EqualFold(entry.BiosimilarOf, current) {
			continue
		}
		if input.HasFailed(entry.DrugName) {
			continue
		}
		if !entry.CoversIndication(input.Diagnosis) {
			continue
		}
		eligible = append(eligible, entry)
	}

	sortEntriesDeterministic(eligible)
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	candidates := make([]domain.Candidate, 0, len(eligible))
	for _, entry := range eligible {
		candidates = append(candidates, *switchCandidate(domain.TIER_SWITCH, entry))
	}
	return candidates
}

func switchCandidate(candidateType domain.CandidateType, entry domain.FormularyEntry) *domain.Candidate {
	tier := entry.Tier
	requiresPA := entry.RequiresPA
	return &domain.Candidate{
		Type:       candidateType,
		DrugName:   entry.DrugName,
		DrugClass:  entry.DrugClass,
		Tier:       &tier,
		RequiresPA: &requiresPA,
	}
}

// sortEntriesDeterministic imposes the total order used for switch
// tie-breaks: lower tier, then lower annual WAC, then alphabetical name.
func sortEntriesDeterministic(entries []domain.FormularyEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Tier != entries[j].Tier {
			return entries[i].Tier < entries[j].Tier
		}
		if entries[i].AnnualCostWAC != entries[j].AnnualCostWAC {
			return entries[i].AnnualCostWAC < entries[j].AnnualCostWAC
		}
		return entries[i].DrugName < entries[j].DrugName
	})
}
