package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biologic-optimizer/internal/domain"
)

func newMockEvidence(t *testing.T) (*PostgresEvidence, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true),
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectPing()

	store, err := NewPostgresEvidence(db)
	require.NoError(t, err)
	return store, mock
}

func findingColumns() []string {
	return []string{"id", "finding", "drug", "drug_class", "indication", "finding_type", "citation", "reviewed"}
}

func TestPostgresEvidence_FindFindings_ByDrug(t *testing.T) {
	store, mock := newMockEvidence(t)

	mock.ExpectQuery(`SELECT id, finding, drug, drug_class, indication, finding_type, citation, reviewed\s+FROM clinical_findings`).
		WithArgs("Humira", "PSORIASIS").
		WillReturnRows(sqlmock.NewRows(findingColumns()).
			AddRow(1, "Interval extension maintained response", "Humira", "TNF inhibitor", "PSORIASIS",
				"INTERVAL_EXTENSION", "Br J Dermatol. 2020;182(4):880-888", true))

	findings, err := store.FindFindings(context.Background(), domain.FindingQuery{
		Drug:       "Humira",
		Indication: "PSORIASIS",
	})

	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, domain.INTERVAL_EXTENSION_FINDING, findings[0].Type)
	assert.Equal(t, "Br J Dermatol. 2020;182(4):880-888", findings[0].Citation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEvidence_FindFindings_TypeFilterArgs(t *testing.T) {
	store, mock := newMockEvidence(t)

	mock.ExpectQuery(`FROM clinical_findings`).
		WithArgs("TNF inhibitor", "EFFICACY", "SAFETY").
		WillReturnRows(sqlmock.NewRows(findingColumns()))

	findings, err := store.FindFindings(context.Background(), domain.FindingQuery{
		DrugClass:    "TNF inhibitor",
		FindingTypes: []domain.FindingType{domain.EFFICACY, domain.SAFETY},
	})

	require.NoError(t, err)
	assert.Empty(t, findings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEvidence_FindFindings_EmptyQueryShortCircuits(t *testing.T) {
	store, mock := newMockEvidence(t)

	findings, err := store.FindFindings(context.Background(), domain.FindingQuery{})

	require.NoError(t, err)
	assert.Nil(t, findings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEvidence_Save(t *testing.T) {
	store, mock := newMockEvidence(t)

	mock.ExpectQuery(`INSERT INTO clinical_findings`).
		WithArgs("finding text", "Amjevita", "TNF inhibitor", "PSORIASIS",
			"COST_EFFECTIVENESS", "JAMA Dermatol. 2021;157(3):292-300", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	finding := &domain.ClinicalFinding{
		Finding: "finding text", Drug: "Amjevita", DrugClass: "TNF inhibitor",
		Indication: "PSORIASIS", Type: domain.COST_EFFECTIVENESS,
		Citation: "JAMA Dermatol. 2021;157(3):292-300", Reviewed: true,
	}
	require.NoError(t, store.Save(context.Background(), finding))
	assert.Equal(t, int64(42), finding.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// getLiveEvidenceDB returns a live database connection for integration
// testing. Skip test if TEST_DATABASE_URL is not set.
func getLiveEvidenceDB(t *testing.T) *sql.DB {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS clinical_findings (
			id BIGSERIAL PRIMARY KEY,
			finding TEXT NOT NULL,
			drug TEXT NOT NULL DEFAULT '',
			drug_class TEXT NOT NULL DEFAULT '',
			indication TEXT NOT NULL DEFAULT '',
			finding_type TEXT NOT NULL,
			citation TEXT NOT NULL,
			reviewed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			CONSTRAINT clinical_findings_citation_finding_unique UNIQUE (citation, finding)
		)
	`)
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM clinical_findings")
	require.NoError(t, err)

	return db
}

func TestPostgresEvidence_Live_SaveAndFind(t *testing.T) {
	db := getLiveEvidenceDB(t)
	defer db.Close()

	store, err := NewPostgresEvidence(db)
	require.NoError(t, err)

	ctx := context.Background()
	finding := &domain.ClinicalFinding{
		Finding: "live round trip", Drug: "Humira", DrugClass: "TNF inhibitor",
		Indication: "PSORIASIS", Type: domain.EFFICACY,
		Citation: "cite-live-1", Reviewed: true,
	}
	require.NoError(t, store.Save(ctx, finding))
	assert.NotZero(t, finding.ID)

	// Upsert keeps a single row per (citation, finding).
	finding.Reviewed = false
	require.NoError(t, store.Save(ctx, finding))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	found, err := store.FindFindings(ctx, domain.FindingQuery{Drug: "Humira"})
	require.NoError(t, err)
	assert.Empty(t, found, "unreviewed rows are invisible to the assessment path")
}
