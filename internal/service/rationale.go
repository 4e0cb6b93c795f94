package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/domain"
)

// maxCitedFindings bounds the evidence attached to one recommendation.
const maxCitedFindings = 2

// genericRationales back up candidates with no reviewed evidence on file.
// An empty evidence list is a valid, non-error state.
var genericRationales = map[domain.CandidateType]string{
	domain.DOSE_REDUCTION:     "Dose reduction is supported by standard dosing guidelines for patients with sustained disease control.",
	domain.INTERVAL_EXTENSION: "Interval extension is supported by standard dosing guidelines for patients with sustained disease control.",
	domain.BIOSIMILAR_SWITCH:  "Switching to an FDA-approved biosimilar preserves the active mechanism at lower cost per standard formulary guidance.",
	domain.TIER_SWITCH:        "Switching to a formulary-preferred agent in the same drug class is supported by standard formulary guidance.",
}

// relevantFindingTypes selects the evidence categories that speak to each
// candidate type.
var relevantFindingTypes = map[domain.CandidateType][]domain.FindingType{
	domain.DOSE_REDUCTION:     {domain.DOSE_REDUCTION_FINDING, domain.EFFICACY},
	domain.INTERVAL_EXTENSION: {domain.INTERVAL_EXTENSION_FINDING, domain.EFFICACY},
	domain.BIOSIMILAR_SWITCH:  {domain.COST_EFFECTIVENESS, domain.EFFICACY, domain.SAFETY},
	domain.TIER_SWITCH:        {domain.COST_EFFECTIVENESS, domain.EFFICACY, domain.SAFETY},
}

// RationaleComposer attaches evidence citations and a natural-language
// justification to each candidate.
type RationaleComposer struct {
	logger   *logrus.Logger
	evidence domain.EvidenceService
}

// NewRationaleComposer creates a new rationale composer.
func NewRationaleComposer(logger *logrus.Logger, evidence domain.EvidenceService) *RationaleComposer {
	return &RationaleComposer{
		logger:   logger,
		evidence: evidence,
	}
}

// Compose enriches each candidate with a rationale paragraph and up to two
// citations, preferring the most specific reviewed findings available.
func (r *RationaleComposer) Compose(ctx context.Context, input *domain.AssessmentInput, candidates []domain.Candidate) []domain.Candidate {
	for i := range candidates {
		r.composeOne(ctx, input, &candidates[i])
	}
	return candidates
}

func (r *RationaleComposer) composeOne(ctx context.Context, input *domain.AssessmentInput, candidate *domain.Candidate) {
	findings, err := r.evidence.FindFindings(ctx, domain.FindingQuery{
		Drug:         candidate.DrugName,
		DrugClass:    candidate.DrugClass,
		Indication:   input.Diagnosis.String(),
		FindingTypes: relevantFindingTypes[candidate.Type],
	})
	if err != nil {
		r.logger.WithError(err).WithField("drug", candidate.DrugName).Warn("Evidence lookup failed, using generic rationale")
		findings = nil
	}

	cited := selectMostSpecific(findings, candidate.DrugName, candidate.DrugClass)

	candidate.Rationale = r.buildParagraph(candidate, cited)
	candidate.EvidenceSources = make([]string, 0, len(cited))
	for _, finding := range cited {
		candidate.EvidenceSources = append(candidate.EvidenceSources, finding.Citation)
	}
}

// selectMostSpecific orders findings exact-drug > drug-class > indication-only
// and keeps the top two. Reviewed-only filtering is enforced here as well as
// in the store, so an over-permissive adapter cannot leak draft evidence.
func selectMostSpecific(findings []domain.ClinicalFinding, drug, drugClass string) []domain.ClinicalFinding {
	reviewed := make([]domain.ClinicalFinding, 0, len(findings))
	for _, finding := range findings {
		if finding.Reviewed {
			reviewed = append(reviewed, finding)
		}
	}

	sort.SliceStable(reviewed, func(i, j int) bool {
		return reviewed[i].Specificity(drug, drugClass) > reviewed[j].Specificity(drug, drugClass)
	})

	if len(reviewed) > maxCitedFindings {
		reviewed = reviewed[:maxCitedFindings]
	}
	return reviewed
}

func (r *RationaleComposer) buildParagraph(candidate *domain.Candidate, cited []domain.ClinicalFinding) string {
	if len(cited) == 0 {
		return genericRationales[candidate.Type]
	}

	var b strings.Builder
	switch candidate.Type {
	case domain.DOSE_REDUCTION:
		fmt.Fprintf(&b, "Reducing the %s dose is supported by published evidence. ", candidate.DrugName)
	case domain.INTERVAL_EXTENSION:
		fmt.Fprintf(&b, "Extending the %s dosing interval is supported by published evidence. ", candidate.DrugName)
	case domain.BIOSIMILAR_SWITCH:
		fmt.Fprintf(&b, "Switching to the biosimilar %s is supported by published evidence. ", candidate.DrugName)
	case domain.TIER_SWITCH:
		fmt.Fprintf(&b, "Switching to the formulary-preferred agent %s is supported by published evidence. ", candidate.DrugName)
	}

	for i, finding := range cited {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%s (%s).", strings.TrimRight(finding.Finding, "."), finding.Citation)
	}
	return b.String()
}
