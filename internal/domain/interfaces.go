package domain

import (
	"context"
	"encoding/json"
	"time"
)

// FormularyService is the read-only formulary collaborator. Lookups that
// find nothing return ErrNotFound, which the engine recovers from locally.
type FormularyService interface {
	GetEntry(ctx context.Context, planID, drugName string) (*FormularyEntry, error)
	ListByClass(ctx context.Context, planID, drugClass string, maxTier int) ([]FormularyEntry, error)
}

// DrugLabelService resolves FDA label facts by brand or generic name.
type DrugLabelService interface {
	GetLabelFacts(ctx context.Context, drugName string) (*DrugLabelFact, error)
}

// EvidenceService retrieves clinical findings relevant to a candidate.
// Implementations return reviewed findings only.
type EvidenceService interface {
	FindFindings(ctx context.Context, query FindingQuery) ([]ClinicalFinding, error)
}

// DosingReference is the standard-dosing lookup table collaborator.
type DosingReference interface {
	NextStep(drugName string) (*DosingStep, bool)
}

// LLMClient abstracts the model provider behind the primary reasoning path.
// Exactly one attempt per assessment; implementations bound the call by the
// supplied timeout and never retry.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, timeout time.Duration) (json.RawMessage, error)
}

// ConfigManager provides access to application configuration.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetLLMConfig() *LLMConfig
	Validate() error
	GetDatabaseConnectionString() string
	IsProduction() bool
}
