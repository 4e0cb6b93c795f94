package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/domain"
)

// StateClassifier places a patient into one of four quadrants from clinical
// stability and formulary alignment of the current drug. It never fails:
// unresolved inputs collapse to UNKNOWN categories, which downstream stages
// treat conservatively.
type StateClassifier struct {
	logger    *logrus.Logger
	formulary domain.FormularyService
}

// NewStateClassifier creates a new stability/formulary classifier.
func NewStateClassifier(logger *logrus.Logger, formulary domain.FormularyService) *StateClassifier {
	return &StateClassifier{
		logger:    logger,
		formulary: formulary,
	}
}

// Classify resolves the patient's quadrant and formulary status. The current
// drug's formulary entry, when found, rides along on the returned state so
// later stages do not repeat the lookup.
func (c *StateClassifier) Classify(ctx context.Context, input *domain.AssessmentInput) *domain.PatientState {
	stable := input.Stable()

	entry, err := c.formulary.GetEntry(ctx, input.PlanID, input.CurrentBiologic.DrugName)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"plan_id": input.PlanID,
			"drug":    input.CurrentBiologic.DrugName,
		}).Warn("Formulary lookup failed, treating current drug as unknown")
		entry = nil
	}

	status := entry.Status()

	state := &domain.PatientState{
		Quadrant:        quadrantFor(stable, status),
		FormularyStatus: status,
		Stable:          stable,
		CurrentEntry:    entry,
	}

	c.logger.WithFields(logrus.Fields{
		"plan_id":          input.PlanID,
		"drug":             input.CurrentBiologic.DrugName,
		"stable":           stable,
		"formulary_status": status.String(),
		"quadrant":         state.Quadrant.String(),
	}).Debug("Classified patient state")

	return state
}

// quadrantFor maps stability and formulary status to a quadrant. An UNKNOWN
// formulary status keeps the stability half of the classification so that
// clinical-only candidates remain reachable.
func quadrantFor(stable bool, status domain.FormularyStatus) domain.Quadrant {
	switch status {
	case domain.FORMULARY:
		if stable {
			return domain.STABLE_FORMULARY
		}
		return domain.UNSTABLE_FORMULARY
	case domain.NON_FORMULARY:
		if stable {
			return domain.STABLE_NON_FORMULARY
		}
		return domain.UNSTABLE_NON_FORMULARY
	default:
		if stable {
			return domain.STABLE_FORMULARY
		}
		return domain.UNSTABLE_FORMULARY
	}
}
