package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/biologic-optimizer/internal/domain"
)

// PostgresFormulary handles formulary reference-data access. Entries are
// immutable for a formulary version; writes happen only through migrations
// and the Upsert used by data loads.
type PostgresFormulary struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresFormulary creates a new formulary repository
func NewPostgresFormulary(db *pgxpool.Pool, logger *logrus.Logger) *PostgresFormulary {
	return &PostgresFormulary{
		db:  db,
		log: logger,
	}
}

const formularyColumns = `
	plan_id, drug_name, generic_name, drug_class, tier, requires_pa,
	step_therapy_required, annual_cost_wac, member_copay_by_tier,
	biosimilar_of, approved_indications`

// GetEntry retrieves one formulary entry by plan and drug name.
func (r *PostgresFormulary) GetEntry(ctx context.Context, planID, drugName string) (*domain.FormularyEntry, error) {
	query := `
		SELECT ` + formularyColumns + `
		FROM formulary_entries
		WHERE plan_id = $1 AND lower(drug_name) = lower($2)`

	entry, err := scanFormularyEntry(r.db.QueryRow(ctx, query, planID, drugName))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("formulary entry not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"plan_id": planID,
			"drug":    drugName,
			"error":   err,
		}).Error("Failed to get formulary entry")
		return nil, fmt.Errorf("getting formulary entry: %w", err)
	}
	return entry, nil
}

// ListByClass retrieves all entries for a plan and drug class, ordered by
// tier, annual WAC, then drug name. A maxTier of zero or less disables
// tier filtering.
func (r *PostgresFormulary) ListByClass(ctx context.Context, planID, drugClass string, maxTier int) ([]domain.FormularyEntry, error) {
	query := `
		SELECT ` + formularyColumns + `
		FROM formulary_entries
		WHERE plan_id = $1 AND lower(drug_class) = lower($2)
		  AND ($3 <= 0 OR tier <= $3)
		ORDER BY tier, annual_cost_wac, drug_name`

	rows, err := r.db.Query(ctx, query, planID, drugClass, maxTier)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"plan_id":    planID,
			"drug_class": drugClass,
			"error":      err,
		}).Error("Failed to list formulary entries by class")
		return nil, fmt.Errorf("listing formulary entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.FormularyEntry
	for rows.Next() {
		entry, err := scanFormularyEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning formulary entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating formulary entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no formulary entries for class %q: %w", drugClass, domain.ErrNotFound)
	}
	return entries, nil
}

// Upsert inserts or replaces a formulary entry. Used by data loads and
// tests, never by the assessment path.
func (r *PostgresFormulary) Upsert(ctx context.Context, entry *domain.FormularyEntry) error {
	copay, err := marshalCopay(entry.MemberCopayByTier)
	if err != nil {
		return fmt.Errorf("marshaling copay schedule: %w", err)
	}
	indications := make([]string, 0, len(entry.ApprovedIndications))
	for _, d := range entry.ApprovedIndications {
		indications = append(indications, d.String())
	}

	query := `
		INSERT INTO formulary_entries (` + formularyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (plan_id, drug_name) DO UPDATE SET
			generic_name = EXCLUDED.generic_name,
			drug_class = EXCLUDED.drug_class,
			tier = EXCLUDED.tier,
			requires_pa = EXCLUDED.requires_pa,
			step_therapy_required = EXCLUDED.step_therapy_required,
			annual_cost_wac = EXCLUDED.annual_cost_wac,
			member_copay_by_tier = EXCLUDED.member_copay_by_tier,
			biosimilar_of = EXCLUDED.biosimilar_of,
			approved_indications = EXCLUDED.approved_indications`

	_, err = r.db.Exec(ctx, query,
		entry.PlanID,
		entry.DrugName,
		entry.GenericName,
		entry.DrugClass,
		entry.Tier,
		entry.RequiresPA,
		entry.StepTherapyRequired,
		entry.AnnualCostWAC,
		copay,
		entry.BiosimilarOf,
		indications,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"plan_id": entry.PlanID,
			"drug":    entry.DrugName,
			"error":   err,
		}).Error("Failed to upsert formulary entry")
		return fmt.Errorf("upserting formulary entry: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFormularyEntry(row rowScanner) (*domain.FormularyEntry, error) {
	var entry domain.FormularyEntry
	var copay []byte
	var indications []string

	err := row.Scan(
		&entry.PlanID,
		&entry.DrugName,
		&entry.GenericName,
		&entry.DrugClass,
		&entry.Tier,
		&entry.RequiresPA,
		&entry.StepTherapyRequired,
		&entry.AnnualCostWAC,
		&copay,
		&entry.BiosimilarOf,
		&indications,
	)
	if err != nil {
		return nil, err
	}

	entry.MemberCopayByTier, err = unmarshalCopay(copay)
	if err != nil {
		return nil, fmt.Errorf("decoding copay schedule: %w", err)
	}
	for _, indication := range indications {
		entry.ApprovedIndications = append(entry.ApprovedIndications, domain.Diagnosis(indication))
	}
	return &entry, nil
}

// marshalCopay stores the copay schedule as a JSON object keyed by tier.
func marshalCopay(copay map[int]float64) ([]byte, error) {
	if copay == nil {
		return []byte("{}"), nil
	}
	keyed := make(map[string]float64, len(copay))
	for tier, amount := range copay {
		keyed[strconv.Itoa(tier)] = amount
	}
	return json.Marshal(keyed)
}

func unmarshalCopay(raw []byte) (map[int]float64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var keyed map[string]float64
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil, err
	}
	if len(keyed) == 0 {
		return nil, nil
	}
	copay := make(map[int]float64, len(keyed))
	for key, amount := range keyed {
		tier, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("copay tier key %q: %w", key, err)
		}
		copay[tier] = amount
	}
	return copay, nil
}
