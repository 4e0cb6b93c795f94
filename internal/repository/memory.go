package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/biologic-optimizer/internal/domain"
)

// MemoryFormulary is an in-memory FormularyService keyed by plan ID and
// normalized drug name. It backs tests and no-database deployments.
type MemoryFormulary struct {
	mu      sync.RWMutex
	entries map[string]map[string]domain.FormularyEntry
}

// NewMemoryFormulary creates an empty in-memory formulary.
func NewMemoryFormulary() *MemoryFormulary {
	return &MemoryFormulary{entries: make(map[string]map[string]domain.FormularyEntry)}
}

// Put inserts or replaces an entry.
func (m *MemoryFormulary) Put(entry domain.FormularyEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.entries[entry.PlanID]
	if !ok {
		plan = make(map[string]domain.FormularyEntry)
		m.entries[entry.PlanID] = plan
	}
	plan[domain.NormalizeDrugName(entry.DrugName)] = entry
}

// GetEntry implements domain.FormularyService.
func (m *MemoryFormulary) GetEntry(ctx context.Context, planID, drugName string) (*domain.FormularyEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.entries[planID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	entry, ok := plan[domain.NormalizeDrugName(drugName)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// ListByClass implements domain.FormularyService. A maxTier of zero or less
// disables tier filtering. Results are sorted by tier, WAC, then name.
func (m *MemoryFormulary) ListByClass(ctx context.Context, planID, drugClass string, maxTier int) ([]domain.FormularyEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.entries[planID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	var matches []domain.FormularyEntry
	for _, entry := range plan {
		if !strings.EqualFold(entry.DrugClass, drugClass) {
			continue
		}
		if maxTier > 0 && entry.Tier > maxTier {
			continue
		}
		matches = append(matches, entry)
	}
	if len(matches) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Tier != matches[j].Tier {
			return matches[i].Tier < matches[j].Tier
		}
		if matches[i].AnnualCostWAC != matches[j].AnnualCostWAC {
			return matches[i].AnnualCostWAC < matches[j].AnnualCostWAC
		}
		return matches[i].DrugName < matches[j].DrugName
	})
	return matches, nil
}

// MemoryLabels is an in-memory DrugLabelService keyed by brand and generic
// name.
type MemoryLabels struct {
	mu    sync.RWMutex
	facts map[string]domain.DrugLabelFact
}

// NewMemoryLabels creates an empty in-memory label store.
func NewMemoryLabels() *MemoryLabels {
	return &MemoryLabels{facts: make(map[string]domain.DrugLabelFact)}
}

// Put indexes the fact under both its brand and generic names.
func (m *MemoryLabels) Put(fact domain.DrugLabelFact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[domain.NormalizeDrugName(fact.Brand)] = fact
	if fact.Generic != "" {
		m.facts[domain.NormalizeDrugName(fact.Generic)] = fact
	}
}

// GetLabelFacts implements domain.DrugLabelService.
func (m *MemoryLabels) GetLabelFacts(ctx context.Context, drugName string) (*domain.DrugLabelFact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fact, ok := m.facts[domain.NormalizeDrugName(drugName)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &fact, nil
}

// MemoryEvidence is an in-memory EvidenceService. Unreviewed findings are
// filtered out at query time, matching the persistent stores.
type MemoryEvidence struct {
	mu       sync.RWMutex
	findings []domain.ClinicalFinding
}

// NewMemoryEvidence creates an empty in-memory evidence store.
func NewMemoryEvidence() *MemoryEvidence {
	return &MemoryEvidence{}
}

// Put appends a finding.
func (m *MemoryEvidence) Put(finding domain.ClinicalFinding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	finding.ID = int64(len(m.findings) + 1)
	m.findings = append(m.findings, finding)
}

// FindFindings implements domain.EvidenceService. A finding matches when it
// is reviewed, its type is selected (or no types were given), and it matches
// the query's drug, drug class, or indication.
func (m *MemoryEvidence) FindFindings(ctx context.Context, query domain.FindingQuery) ([]domain.ClinicalFinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []domain.ClinicalFinding
	for _, finding := range m.findings {
		if !finding.Reviewed {
			continue
		}
		if len(query.FindingTypes) > 0 && !containsType(query.FindingTypes, finding.Type) {
			continue
		}
		if matchesQuery(finding, query) {
			matches = append(matches, finding)
		}
	}
	return matches, nil
}

func containsType(types []domain.FindingType, t domain.FindingType) bool {
	for _, ft := range types {
		if ft == t {
			return true
		}
	}
	return false
}

func matchesQuery(finding domain.ClinicalFinding, query domain.FindingQuery) bool {
	if query.Drug != "" && finding.Drug != "" &&
		domain.NormalizeDrugName(finding.Drug) == domain.NormalizeDrugName(query.Drug) {
		return true
	}
	if query.DrugClass != "" && strings.EqualFold(finding.DrugClass, query.DrugClass) {
		return true
	}
	if query.Indication != "" && strings.EqualFold(finding.Indication, query.Indication) {
		return true
	}
	return false
}
