package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/domain"
)

// contraindicationTerms maps each patient-reportable contraindication to the
// label vocabulary it is matched against (case-insensitive substring match
// over label contraindications and black-box warnings).
var contraindicationTerms = map[domain.ContraindicationType][]string{
	domain.ACTIVE_INFECTION:      {"active infection", "serious infection", "sepsis"},
	domain.TUBERCULOSIS:          {"tuberculosis", "latent tb", "mycobacteri"},
	domain.HEART_FAILURE:         {"heart failure", "congestive heart", "chf"},
	domain.DEMYELINATING_DISEASE: {"demyelinating", "multiple sclerosis", "optic neuritis"},
	domain.MALIGNANCY:            {"malignancy", "malignancies", "lymphoma", "cancer"},
	domain.HEPATITIS_B:           {"hepatitis b", "hbv reactivation"},
	domain.INFLAMMATORY_BOWEL:    {"inflammatory bowel", "crohn", "ulcerative colitis"},
	domain.HYPERSENSITIVITY:      {"hypersensitivity", "anaphyla"},
}

// psoriaticArthritisTerms identify a psoriatic-arthritis indication on a
// drug label.
var psoriaticArthritisTerms = []string{"psoriatic arthritis"}

// ContraindicationScreener flags candidates against patient-specific
// contraindications and FDA label data. Flagged candidates are retained,
// not dropped: the clinician always sees why an option was excluded.
type ContraindicationScreener struct {
	logger *logrus.Logger
	labels domain.DrugLabelService
}

// NewContraindicationScreener creates a new screener.
func NewContraindicationScreener(logger *logrus.Logger, labels domain.DrugLabelService) *ContraindicationScreener {
	return &ContraindicationScreener{
		logger: logger,
		labels: labels,
	}
}

// Screen checks every candidate in place and returns the same slice.
// A label lookup miss skips label-based checks for that candidate; the
// failed-therapy check still applies.
func (s *ContraindicationScreener) Screen(ctx context.Context, input *domain.AssessmentInput, candidates []domain.Candidate) []domain.Candidate {
	for i := range candidates {
		s.screenOne(ctx, input, &candidates[i])
	}

	flagged := 0
	for i := range candidates {
		if candidates[i].Contraindicated {
			flagged++
		}
	}
	s.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"flagged":    flagged,
	}).Debug("Completed contraindication screening")

	return candidates
}

func (s *ContraindicationScreener) screenOne(ctx context.Context, input *domain.AssessmentInput, candidate *domain.Candidate) {
	if input.HasFailed(candidate.DrugName) {
		flag(candidate, fmt.Sprintf("%s is on the patient's failed-therapy list", candidate.DrugName))
		return
	}

	facts, err := s.labels.GetLabelFacts(ctx, candidate.DrugName)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WithError(err).WithField("drug", candidate.DrugName).Warn("Drug label lookup failed, skipping label screening")
		}
		return
	}

	if reason := s.matchLabelContraindication(input.Contraindications, facts); reason != "" {
		flag(candidate, reason)
		return
	}

	if input.HasPsoriaticArthritis && !labelCoversPsA(facts) {
		flag(candidate, fmt.Sprintf("%s lacks an approved indication for psoriatic arthritis", candidate.DrugName))
	}
}

// matchLabelContraindication matches the patient's contraindication set
// against the label's contraindications and black-box warnings.
func (s *ContraindicationScreener) matchLabelContraindication(patient []domain.ContraindicationType, facts *domain.DrugLabelFact) string {
	labelText := make([]string, 0, len(facts.Contraindications)+len(facts.BlackBoxWarnings))
	labelText = append(labelText, facts.Contraindications...)
	labelText = append(labelText, facts.BlackBoxWarnings...)

	for _, contraindication := range patient {
		terms := contraindicationTerms[contraindication]
		for _, entry := range labelText {
			lower := strings.ToLower(entry)
			for _, term := range terms {
				if strings.Contains(lower, term) {
					return fmt.Sprintf("label warns against use with %s: %q", strings.ToLower(contraindication.String()), entry)
				}
			}
		}
	}
	return ""
}

func labelCoversPsA(facts *domain.DrugLabelFact) bool {
	for _, indication := range facts.FDAIndications {
		lower := strings.ToLower(indication)
		for _, term := range psoriaticArthritisTerms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

func flag(candidate *domain.Candidate, reason string) {
	candidate.Contraindicated = true
	candidate.ContraindicationReason = &reason
}
