package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/domain"
	"github.com/biologic-optimizer/internal/llm"
)

const defaultLLMTimeout = 20 * time.Second

// Engine runs a full assessment through one of two reasoning paths. The
// model path is primary when a client is configured; any failure there
// falls back to the deterministic rule pipeline within the same request.
// Both paths emit the same output schema, so callers cannot tell which
// path produced a result.
type Engine struct {
	logger     *logrus.Logger
	classifier *StateClassifier
	generator  *CandidateGenerator
	screener   *ContraindicationScreener
	cost       *CostCalculator
	rationale  *RationaleComposer
	ranker     *Ranker

	formulary domain.FormularyService
	labels    domain.DrugLabelService
	evidence  domain.EvidenceService
	dosing    domain.DosingReference

	llmClient  domain.LLMClient // nil disables the model path entirely
	llmTimeout time.Duration
}

// NewEngine wires the assessment pipeline. Pass a nil llmClient to run
// rule-based only.
func NewEngine(
	logger *logrus.Logger,
	formulary domain.FormularyService,
	labels domain.DrugLabelService,
	evidence domain.EvidenceService,
	dosing domain.DosingReference,
	llmClient domain.LLMClient,
	llmTimeout time.Duration,
) *Engine {
	if llmTimeout <= 0 {
		llmTimeout = defaultLLMTimeout
	}
	return &Engine{
		logger:     logger,
		classifier: NewStateClassifier(logger, formulary),
		generator:  NewCandidateGenerator(logger, formulary, dosing),
		screener:   NewContraindicationScreener(logger, labels),
		cost:       NewCostCalculator(logger, formulary),
		rationale:  NewRationaleComposer(logger, evidence),
		ranker:     NewRanker(logger),
		formulary:  formulary,
		labels:     labels,
		evidence:   evidence,
		dosing:     dosing,
		llmClient:  llmClient,
		llmTimeout: llmTimeout,
	}
}

// Assess produces up to three ranked recommendations for the given patient.
// Input validation is the only hard failure; everything past it degrades to
// a (possibly empty) recommendation list.
func (e *Engine) Assess(ctx context.Context, input *domain.AssessmentInput) (*domain.AssessmentResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	assessmentID := uuid.New().String()
	log := e.logger.WithFields(logrus.Fields{
		"assessment_id": assessmentID,
		"plan_id":       input.PlanID,
		"drug":          input.CurrentBiologic.DrugName,
	})

	state := e.classifier.Classify(ctx, input)

	recommendations, path := e.runPaths(ctx, log, input, state)

	result := &domain.AssessmentResult{
		AssessmentID:    assessmentID,
		Recommendations: recommendations,
		Path:            path,
		GeneratedAt:     time.Now().UTC(),
		ProcessingTime:  time.Since(start),
	}
	log.WithFields(logrus.Fields{
		"path":            path,
		"recommendations": len(recommendations),
		"duration_ms":     result.ProcessingTime.Milliseconds(),
	}).Info("Assessment completed")
	return result, nil
}

func (e *Engine) runPaths(ctx context.Context, log *logrus.Entry, input *domain.AssessmentInput, state *domain.PatientState) ([]domain.Recommendation, domain.AssessmentPath) {
	if e.llmClient != nil {
		recs, err := e.runLLMPath(ctx, input, state)
		if err == nil {
			return recs, domain.PathLLM
		}
		log.WithError(err).Warn("Model path failed, falling back to rule-based path")
	}
	return e.runRulePath(ctx, input, state), domain.PathRuleBased
}

// runRulePath is the deterministic pipeline: generate, screen, price,
// compose, rank. Identical inputs always produce identical output.
func (e *Engine) runRulePath(ctx context.Context, input *domain.AssessmentInput, state *domain.PatientState) []domain.Recommendation {
	candidates := e.generator.Generate(ctx, input, state)
	candidates = e.screener.Screen(ctx, input, candidates)
	candidates = e.cost.Price(ctx, input, state, candidates)
	candidates = e.rationale.Compose(ctx, input, candidates)
	return e.ranker.Rank(candidates)
}

// runLLMPath makes exactly one bounded model call. Gathered reference data
// is the same data the rule path consults, so the model cannot cite or
// price anything the deterministic path could not.
func (e *Engine) runLLMPath(ctx context.Context, input *domain.AssessmentInput, state *domain.PatientState) ([]domain.Recommendation, error) {
	assessmentCtx := e.gatherContext(ctx, input, state)

	prompt, err := llm.BuildAssessmentPrompt(input, assessmentCtx)
	if err != nil {
		return nil, err
	}
	raw, err := e.llmClient.Complete(ctx, prompt, e.llmTimeout)
	if err != nil {
		return nil, err
	}
	recs, err := llm.ParseRecommendations(raw)
	if err != nil {
		return nil, err
	}
	return e.normalizeLLMRecommendations(input, assessmentCtx, recs), nil
}

// gatherContext resolves the reference data for the model prompt. Every
// lookup failure degrades to an absent section rather than an error.
func (e *Engine) gatherContext(ctx context.Context, input *domain.AssessmentInput, state *domain.PatientState) *llm.AssessmentContext {
	assessmentCtx := &llm.AssessmentContext{CurrentEntry: state.CurrentEntry}

	if step, ok := e.dosing.NextStep(input.CurrentBiologic.DrugName); ok && state.Stable {
		assessmentCtx.DosingStep = step
	}
	if label, err := e.labels.GetLabelFacts(ctx, input.CurrentBiologic.DrugName); err == nil {
		assessmentCtx.CurrentLabel = label
	}
	if state.CurrentEntry != nil {
		alternatives, err := e.formulary.ListByClass(ctx, input.PlanID, state.CurrentEntry.DrugClass, 0)
		if err == nil {
			for _, alt := range alternatives {
				if domain.NormalizeDrugName(alt.DrugName) == domain.NormalizeDrugName(input.CurrentBiologic.DrugName) {
					continue
				}
				assessmentCtx.ClassAlternatives = append(assessmentCtx.ClassAlternatives, alt)
				if label, err := e.labels.GetLabelFacts(ctx, alt.DrugName); err == nil {
					assessmentCtx.CandidateLabels = append(assessmentCtx.CandidateLabels, *label)
				}
			}
		}
		findings, err := e.evidence.FindFindings(ctx, domain.FindingQuery{
			DrugClass:  state.CurrentEntry.DrugClass,
			Indication: input.Diagnosis.String(),
		})
		if err == nil {
			assessmentCtx.Findings = findings
		}
	} else {
		findings, err := e.evidence.FindFindings(ctx, domain.FindingQuery{
			Drug:       input.CurrentBiologic.DrugName,
			Indication: input.Diagnosis.String(),
		})
		if err == nil {
			assessmentCtx.Findings = findings
		}
	}
	return assessmentCtx
}

// normalizeLLMRecommendations enforces engine invariants the parser cannot:
// drugs on the failed-therapy list are dropped, citations are restricted to
// the reviewed findings the prompt supplied, and ranks are reassigned to a
// dense 1..n after filtering.
func (e *Engine) normalizeLLMRecommendations(input *domain.AssessmentInput, assessmentCtx *llm.AssessmentContext, recs []domain.Recommendation) []domain.Recommendation {
	cited := make(map[string]struct{}, len(assessmentCtx.Findings))
	for _, f := range assessmentCtx.Findings {
		if f.Reviewed && f.Citation != "" {
			cited[f.Citation] = struct{}{}
		}
	}

	normalized := make([]domain.Recommendation, 0, len(recs))
	for _, rec := range recs {
		if input.HasFailed(rec.DrugName) {
			e.logger.WithField("drug", rec.DrugName).Warn("Dropping model recommendation for previously failed therapy")
			continue
		}
		sources := make([]string, 0, len(rec.EvidenceSources))
		for _, src := range rec.EvidenceSources {
			if _, ok := cited[src]; ok {
				sources = append(sources, src)
			}
		}
		rec.EvidenceSources = sources
		rec.Rank = len(normalized) + 1
		normalized = append(normalized, rec)
		if len(normalized) == 3 {
			break
		}
	}
	return normalized
}
