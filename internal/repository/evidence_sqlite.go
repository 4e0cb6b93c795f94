package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/biologic-optimizer/internal/domain"
)

// SQLiteEvidence implements the EvidenceService interface using SQLite.
// Findings are curated clinical literature; the assessment path reads
// reviewed rows only, enforced in SQL.
type SQLiteEvidence struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteEvidence creates a new SQLite evidence store.
// It creates the database file and schema if they don't exist.
func NewSQLiteEvidence(dbPath string) (*SQLiteEvidence, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	// Create schema
	if err := createEvidenceSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteEvidence{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createEvidenceSchema creates the database tables and indexes.
func createEvidenceSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS clinical_findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		finding TEXT NOT NULL,
		drug TEXT DEFAULT '',
		drug_class TEXT DEFAULT '',
		indication TEXT DEFAULT '',
		finding_type TEXT NOT NULL,
		citation TEXT NOT NULL,
		reviewed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_findings_drug ON clinical_findings(drug);
	CREATE INDEX IF NOT EXISTS idx_findings_drug_class ON clinical_findings(drug_class);
	CREATE INDEX IF NOT EXISTS idx_findings_indication ON clinical_findings(indication);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_findings_citation_finding ON clinical_findings(citation, finding);
	`

	_, err := db.Exec(schema)
	return err
}

func scanFinding(s rowScanner) (*domain.ClinicalFinding, error) {
	finding := &domain.ClinicalFinding{}
	var findingType string
	var reviewed int

	err := s.Scan(
		&finding.ID, &finding.Finding, &finding.Drug, &finding.DrugClass,
		&finding.Indication, &findingType, &finding.Citation, &reviewed,
	)
	if err != nil {
		return nil, err
	}

	finding.Type = domain.FindingType(findingType)
	finding.Reviewed = reviewed != 0
	return finding, nil
}

// FindFindings returns reviewed findings matching the query by exact drug,
// drug class, or indication. A query with no selector matches nothing.
func (s *SQLiteEvidence) FindFindings(ctx context.Context, query domain.FindingQuery) ([]domain.ClinicalFinding, error) {
	var matchers []string
	var args []interface{}

	if query.Drug != "" {
		matchers = append(matchers, "lower(drug) = lower(?)")
		args = append(args, strings.TrimSpace(query.Drug))
	}
	if query.DrugClass != "" {
		matchers = append(matchers, "lower(drug_class) = lower(?)")
		args = append(args, query.DrugClass)
	}
	if query.Indication != "" {
		matchers = append(matchers, "lower(indication) = lower(?)")
		args = append(args, query.Indication)
	}
	if len(matchers) == 0 {
		return nil, nil
	}

	where := "reviewed = 1 AND (" + strings.Join(matchers, " OR ") + ")"
	if len(query.FindingTypes) > 0 {
		placeholders := make([]string, len(query.FindingTypes))
		for i, t := range query.FindingTypes {
			placeholders[i] = "?"
			args = append(args, t.String())
		}
		where += " AND finding_type IN (" + strings.Join(placeholders, ", ") + ")"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, finding, drug, drug_class, indication, finding_type, citation, reviewed
		FROM clinical_findings
		WHERE `+where+`
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var result []domain.ClinicalFinding
	for rows.Next() {
		finding, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		result = append(result, *finding)
	}
	return result, rows.Err()
}

// Save inserts a finding, or updates it when the (citation, finding) pair
// already exists.
func (s *SQLiteEvidence) Save(ctx context.Context, finding *domain.ClinicalFinding) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO clinical_findings (
			finding, drug, drug_class, indication, finding_type, citation, reviewed
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (citation, finding) DO UPDATE SET
			drug = excluded.drug,
			drug_class = excluded.drug_class,
			indication = excluded.indication,
			finding_type = excluded.finding_type,
			reviewed = excluded.reviewed
	`,
		finding.Finding,
		finding.Drug,
		finding.DrugClass,
		finding.Indication,
		finding.Type.String(),
		finding.Citation,
		boolToInt(finding.Reviewed),
	)
	if err != nil {
		return fmt.Errorf("failed to save finding: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil && id > 0 {
		finding.ID = id
	}
	return nil
}

// MarkReviewed flips the reviewed flag on a finding.
func (s *SQLiteEvidence) MarkReviewed(ctx context.Context, id int64, reviewed bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE clinical_findings SET reviewed = ? WHERE id = ?",
		boolToInt(reviewed), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update review flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns findings, reviewed or not, with pagination. Curation
// tooling only; the assessment path goes through FindFindings.
func (s *SQLiteEvidence) List(ctx context.Context, limit, offset int) ([]domain.ClinicalFinding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, finding, drug, drug_class, indication, finding_type, citation, reviewed
		FROM clinical_findings
		ORDER BY id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []domain.ClinicalFinding
	for rows.Next() {
		finding, err := scanFinding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, *finding)
	}
	return result, rows.Err()
}

// Count returns the total number of findings.
func (s *SQLiteEvidence) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clinical_findings").Scan(&count)
	return count, err
}

// findingsExport is the JSON envelope used by curation import/export.
type findingsExport struct {
	Version    string                   `json:"version"`
	ExportedAt time.Time                `json:"exported_at"`
	Count      int                      `json:"count"`
	Findings   []domain.ClinicalFinding `json:"findings"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all findings to a JSON writer.
func (s *SQLiteEvidence) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list findings: %w", err)
	}

	export := &findingsExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Findings:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports findings from a JSON reader. Existing (citation,
// finding) pairs are updated in place.
func (s *SQLiteEvidence) ImportJSON(ctx context.Context, reader io.Reader) (imported int, err error) {
	var export findingsExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for i := range export.Findings {
		if err := s.Save(ctx, &export.Findings[i]); err != nil {
			return imported, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}
	return imported, nil
}

// Close closes the store and releases resources.
func (s *SQLiteEvidence) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
