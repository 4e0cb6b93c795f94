package service

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/domain"
	"github.com/biologic-optimizer/internal/repository"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func boolPtr(b bool) *bool      { return &b }
func f64Ptr(f float64) *float64 { return &f }
func strPtr(s string) *string   { return &s }

const testPlanID = "plan-gold"

// fixtureFormulary models a dermatology slice of a commercial formulary:
// Humira on tier 3 with two biosimilars on preferred tiers, Enbrel as a
// same-class preferred alternative, and Skyrizi/Dupixent in other classes.
func fixtureFormulary() *repository.MemoryFormulary {
	f := repository.NewMemoryFormulary()
	f.Put(domain.FormularyEntry{
		PlanID: testPlanID, DrugName: "Humira", GenericName: "adalimumab",
		DrugClass: "TNF inhibitor", Tier: 3, RequiresPA: true,
		AnnualCostWAC:       72000,
		MemberCopayByTier:   map[int]float64{3: 250},
		ApprovedIndications: []domain.Diagnosis{domain.PSORIASIS, domain.HIDRADENITIS_SUPPURATIVA},
	})
	f.Put(domain.FormularyEntry{
		PlanID: testPlanID, DrugName: "Amjevita", GenericName: "adalimumab-atto",
		DrugClass: "TNF inhibitor", Tier: 1,
		AnnualCostWAC:       38000,
		MemberCopayByTier:   map[int]float64{1: 25},
		BiosimilarOf:        "Humira",
		ApprovedIndications: []domain.Diagnosis{domain.PSORIASIS},
	})
	f.Put(domain.FormularyEntry{
		PlanID: testPlanID, DrugName: "Hyrimoz", GenericName: "adalimumab-adaz",
		DrugClass: "TNF inhibitor", Tier: 2,
		AnnualCostWAC:       42000,
		MemberCopayByTier:   map[int]float64{2: 75},
		BiosimilarOf:        "Humira",
		ApprovedIndications: []domain.Diagnosis{domain.PSORIASIS},
	})
	f.Put(domain.FormularyEntry{
		PlanID: testPlanID, DrugName: "Enbrel", GenericName: "etanercept",
		DrugClass: "TNF inhibitor", Tier: 2,
		AnnualCostWAC:       60000,
		MemberCopayByTier:   map[int]float64{2: 75},
		ApprovedIndications: []domain.Diagnosis{domain.PSORIASIS},
	})
	f.Put(domain.FormularyEntry{
		PlanID: testPlanID, DrugName: "Skyrizi", GenericName: "risankizumab",
		DrugClass: "IL-23 inhibitor", Tier: 1,
		AnnualCostWAC:       65000,
		MemberCopayByTier:   map[int]float64{1: 25},
		ApprovedIndications: []domain.Diagnosis{domain.PSORIASIS},
	})
	f.Put(domain.FormularyEntry{
		PlanID: testPlanID, DrugName: "Dupixent", GenericName: "dupilumab",
		DrugClass: "IL-4/IL-13 inhibitor", Tier: 1,
		AnnualCostWAC:       44000,
		MemberCopayByTier:   map[int]float64{1: 25},
		ApprovedIndications: []domain.Diagnosis{domain.ECZEMA},
	})
	return f
}

func fixtureLabels() *repository.MemoryLabels {
	l := repository.NewMemoryLabels()
	l.Put(domain.DrugLabelFact{
		Brand: "Humira", Generic: "adalimumab",
		FDAIndications:   []string{"Plaque psoriasis", "Psoriatic arthritis", "Hidradenitis suppurativa"},
		BlackBoxWarnings: []string{"Serious infections including tuberculosis", "Lymphoma and other malignancies"},
	})
	l.Put(domain.DrugLabelFact{
		Brand: "Amjevita", Generic: "adalimumab-atto",
		FDAIndications:   []string{"Plaque psoriasis", "Psoriatic arthritis"},
		BlackBoxWarnings: []string{"Serious infections including tuberculosis", "Lymphoma and other malignancies"},
	})
	l.Put(domain.DrugLabelFact{
		Brand: "Hyrimoz", Generic: "adalimumab-adaz",
		FDAIndications:   []string{"Plaque psoriasis", "Psoriatic arthritis"},
		BlackBoxWarnings: []string{"Serious infections including tuberculosis"},
	})
	l.Put(domain.DrugLabelFact{
		Brand: "Enbrel", Generic: "etanercept",
		FDAIndications:    []string{"Plaque psoriasis", "Psoriatic arthritis"},
		Contraindications: []string{"Sepsis"},
		BlackBoxWarnings:  []string{"Serious infections", "Malignancies"},
	})
	l.Put(domain.DrugLabelFact{
		Brand: "Skyrizi", Generic: "risankizumab",
		FDAIndications:    []string{"Plaque psoriasis", "Psoriatic arthritis"},
		Contraindications: []string{"Hypersensitivity to risankizumab"},
	})
	l.Put(domain.DrugLabelFact{
		Brand: "Dupixent", Generic: "dupilumab",
		FDAIndications:    []string{"Atopic dermatitis", "Asthma"},
		Contraindications: []string{"Known hypersensitivity to dupilumab"},
	})
	return l
}

func fixtureEvidence() *repository.MemoryEvidence {
	e := repository.NewMemoryEvidence()
	e.Put(domain.ClinicalFinding{
		Finding:    "Interval extension of adalimumab maintained PASI75 response in 78% of stable psoriasis patients at one year",
		Drug:       "Humira",
		DrugClass:  "TNF inhibitor",
		Indication: "PSORIASIS",
		Type:       domain.INTERVAL_EXTENSION_FINDING,
		Citation:   "Br J Dermatol. 2020;182(4):880-888",
		Reviewed:   true,
	})
	e.Put(domain.ClinicalFinding{
		Finding:    "TNF inhibitor class efficacy was sustained after protocolized dose tapering in plaque psoriasis",
		DrugClass:  "TNF inhibitor",
		Indication: "PSORIASIS",
		Type:       domain.EFFICACY,
		Citation:   "J Am Acad Dermatol. 2019;80(5):1344-1352",
		Reviewed:   true,
	})
	e.Put(domain.ClinicalFinding{
		Finding:    "Switching from reference adalimumab to adalimumab-atto showed equivalent efficacy at 40% lower acquisition cost",
		Drug:       "Amjevita",
		DrugClass:  "TNF inhibitor",
		Indication: "PSORIASIS",
		Type:       domain.COST_EFFECTIVENESS,
		Citation:   "JAMA Dermatol. 2021;157(3):292-300",
		Reviewed:   true,
	})
	// Unreviewed draft; must never be cited.
	e.Put(domain.ClinicalFinding{
		Finding:    "Preliminary data on accelerated adalimumab taper",
		Drug:       "Humira",
		DrugClass:  "TNF inhibitor",
		Indication: "PSORIASIS",
		Type:       domain.INTERVAL_EXTENSION_FINDING,
		Citation:   "medRxiv preprint 2024.01.15",
		Reviewed:   false,
	})
	return e
}

func stablePsoriasisInput() *domain.AssessmentInput {
	return &domain.AssessmentInput{
		PatientID:      "pt-001",
		PlanID:         testPlanID,
		MedicationType: domain.BIOLOGIC,
		CurrentBiologic: domain.CurrentBiologic{
			DrugName: "Humira", Dose: "40mg", Frequency: "every 2 weeks",
		},
		Diagnosis: domain.PSORIASIS,
		DLQIScore: f64Ptr(3),
	}
}
