package service

import (
	"github.com/biologic-optimizer/internal/domain"
)

// ReferenceDosingTable holds the standard maintenance regimen and the next
// safe de-escalation step for each supported biologic. Exactly one step is
// defined per drug; the generator proposes that step, never a parameter sweep.
//
// Fill ratios are annual fills under the extended/reduced regimen divided by
// annual fills under the standard regimen (52/interval-weeks for interval
// steps, dose fraction for dose steps).
type ReferenceDosingTable struct {
	steps map[string]domain.DosingStep
}

// NewReferenceDosingTable builds the built-in dosing reference. The table
// covers the biologics commonly used in dermatology; drugs absent from it
// simply produce no de-escalation candidate.
func NewReferenceDosingTable() *ReferenceDosingTable {
	table := &ReferenceDosingTable{steps: make(map[string]domain.DosingStep)}

	// Interval extensions: push the maintenance interval out one step.
	table.add(domain.DosingStep{
		DrugName:     "Humira",
		Type:         domain.INTERVAL_EXTENSION,
		NewDose:      "40mg",
		NewFrequency: "every 3 weeks",
		FillRatio:    2.0 / 3.0, // q2w -> q3w
	})
	table.add(domain.DosingStep{
		DrugName:     "Dupixent",
		Type:         domain.INTERVAL_EXTENSION,
		NewDose:      "300mg",
		NewFrequency: "every 3 weeks",
		FillRatio:    2.0 / 3.0, // q2w -> q3w
	})
	table.add(domain.DosingStep{
		DrugName:     "Stelara",
		Type:         domain.INTERVAL_EXTENSION,
		NewDose:      "45mg",
		NewFrequency: "every 16 weeks",
		FillRatio:    12.0 / 16.0, // q12w -> q16w
	})
	table.add(domain.DosingStep{
		DrugName:     "Tremfya",
		Type:         domain.INTERVAL_EXTENSION,
		NewDose:      "100mg",
		NewFrequency: "every 12 weeks",
		FillRatio:    8.0 / 12.0, // q8w -> q12w
	})
	table.add(domain.DosingStep{
		DrugName:     "Skyrizi",
		Type:         domain.INTERVAL_EXTENSION,
		NewDose:      "150mg",
		NewFrequency: "every 16 weeks",
		FillRatio:    12.0 / 16.0, // q12w -> q16w
	})
	table.add(domain.DosingStep{
		DrugName:     "Taltz",
		Type:         domain.INTERVAL_EXTENSION,
		NewDose:      "80mg",
		NewFrequency: "every 6 weeks",
		FillRatio:    4.0 / 6.0, // q4w -> q6w
	})

	// Dose reductions: keep the interval, drop the dose.
	table.add(domain.DosingStep{
		DrugName:     "Cosentyx",
		Type:         domain.DOSE_REDUCTION,
		NewDose:      "150mg",
		NewFrequency: "every 4 weeks",
		FillRatio:    0.5, // 300mg -> 150mg
	})
	table.add(domain.DosingStep{
		DrugName:     "Enbrel",
		Type:         domain.DOSE_REDUCTION,
		NewDose:      "25mg",
		NewFrequency: "weekly",
		FillRatio:    0.5, // 50mg -> 25mg
	})

	return table
}

func (t *ReferenceDosingTable) add(step domain.DosingStep) {
	t.steps[domain.NormalizeDrugName(step.DrugName)] = step
}

// NextStep returns the next safe de-escalation step for the drug, if the
// reference table knows one.
func (t *ReferenceDosingTable) NextStep(drugName string) (*domain.DosingStep, bool) {
	step, ok := t.steps[domain.NormalizeDrugName(drugName)]
	if !ok {
		return nil, false
	}
	return &step, true
}
