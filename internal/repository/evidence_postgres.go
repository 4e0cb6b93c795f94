package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/biologic-optimizer/internal/domain"
)

// PostgresEvidence implements the EvidenceService interface using
// PostgreSQL, for deployments where findings are curated centrally rather
// than shipped as a local SQLite file.
type PostgresEvidence struct {
	db *sql.DB
}

// NewPostgresEvidence creates a new PostgreSQL evidence store.
// It expects the schema to already exist (created via migrations).
func NewPostgresEvidence(db *sql.DB) (*PostgresEvidence, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresEvidence{db: db}, nil
}

// NewPostgresEvidenceFromURL creates a new PostgreSQL evidence store from a
// connection URL.
func NewPostgresEvidenceFromURL(databaseURL string) (*PostgresEvidence, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresEvidence(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// FindFindings returns reviewed findings matching the query by exact drug,
// drug class, or indication. A query with no selector matches nothing.
func (s *PostgresEvidence) FindFindings(ctx context.Context, query domain.FindingQuery) ([]domain.ClinicalFinding, error) {
	var matchers []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if query.Drug != "" {
		matchers = append(matchers, "lower(drug) = lower("+arg(strings.TrimSpace(query.Drug))+")")
	}
	if query.DrugClass != "" {
		matchers = append(matchers, "lower(drug_class) = lower("+arg(query.DrugClass)+")")
	}
	if query.Indication != "" {
		matchers = append(matchers, "lower(indication) = lower("+arg(query.Indication)+")")
	}
	if len(matchers) == 0 {
		return nil, nil
	}

	where := "reviewed AND (" + strings.Join(matchers, " OR ") + ")"
	if len(query.FindingTypes) > 0 {
		placeholders := make([]string, len(query.FindingTypes))
		for i, t := range query.FindingTypes {
			placeholders[i] = arg(t.String())
		}
		where += " AND finding_type IN (" + strings.Join(placeholders, ", ") + ")"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, finding, drug, drug_class, indication, finding_type, citation, reviewed
		FROM clinical_findings
		WHERE `+where+`
		ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var result []domain.ClinicalFinding
	for rows.Next() {
		var finding domain.ClinicalFinding
		var findingType string
		if err := rows.Scan(
			&finding.ID, &finding.Finding, &finding.Drug, &finding.DrugClass,
			&finding.Indication, &findingType, &finding.Citation, &finding.Reviewed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		finding.Type = domain.FindingType(findingType)
		result = append(result, finding)
	}
	return result, rows.Err()
}

// Save stores or updates a finding by its (citation, finding) pair.
func (s *PostgresEvidence) Save(ctx context.Context, finding *domain.ClinicalFinding) error {
	query := `
		INSERT INTO clinical_findings (
			finding, drug, drug_class, indication, finding_type, citation, reviewed
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (citation, finding) DO UPDATE SET
			drug = EXCLUDED.drug,
			drug_class = EXCLUDED.drug_class,
			indication = EXCLUDED.indication,
			finding_type = EXCLUDED.finding_type,
			reviewed = EXCLUDED.reviewed
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		finding.Finding,
		finding.Drug,
		finding.DrugClass,
		finding.Indication,
		finding.Type.String(),
		finding.Citation,
		finding.Reviewed,
	).Scan(&finding.ID)
	if err != nil {
		return fmt.Errorf("failed to save finding: %w", err)
	}
	return nil
}

// Count returns the total number of findings.
func (s *PostgresEvidence) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clinical_findings").Scan(&count)
	return count, err
}

// Close closes the underlying connection pool.
func (s *PostgresEvidence) Close() error {
	return s.db.Close()
}
