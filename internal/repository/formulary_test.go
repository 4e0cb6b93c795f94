package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/biologic-optimizer/internal/database"
	"github.com/biologic-optimizer/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	ctx := context.Background()

	testPassword := generateTestPassword()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	config := &domain.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "testdb",
		Username:        "testuser",
		Password:        testPassword,
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MinConns:        2,
		ConnMaxLifetime: time.Hour,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}

	// Run migrations
	migrationRunner, err := database.NewMigrationRunner(database.URL(config), "../../migrations", logger)
	if err != nil {
		t.Fatalf("Failed to create migration runner: %v", err)
	}
	if err := migrationRunner.Up(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

func testEntry(drug string, tier int, wac float64) *domain.FormularyEntry {
	return &domain.FormularyEntry{
		PlanID:              "plan-gold",
		DrugName:            drug,
		DrugClass:           "TNF inhibitor",
		Tier:                tier,
		AnnualCostWAC:       wac,
		MemberCopayByTier:   map[int]float64{tier: float64(tier) * 25},
		ApprovedIndications: []domain.Diagnosis{domain.PSORIASIS},
	}
}

func TestPostgresFormulary_UpsertAndGetEntry(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewPostgresFormulary(db.Pool, logger)
	ctx := context.Background()

	entry := testEntry("Humira", 3, 72000)
	entry.GenericName = "adalimumab"
	entry.RequiresPA = true
	require.NoError(t, repo.Upsert(ctx, entry))

	got, err := repo.GetEntry(ctx, "plan-gold", "humira")
	require.NoError(t, err)
	assert.Equal(t, "Humira", got.DrugName)
	assert.Equal(t, "adalimumab", got.GenericName)
	assert.Equal(t, 3, got.Tier)
	assert.True(t, got.RequiresPA)
	assert.Equal(t, 72000.0, got.AnnualCostWAC)
	require.NotNil(t, got.MemberCopayByTier)
	assert.Equal(t, 75.0, got.MemberCopayByTier[3])
	assert.Equal(t, []domain.Diagnosis{domain.PSORIASIS}, got.ApprovedIndications)

	// Upsert replaces in place.
	entry.Tier = 2
	require.NoError(t, repo.Upsert(ctx, entry))
	updated, err := repo.GetEntry(ctx, "plan-gold", "Humira")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Tier)
}

func TestPostgresFormulary_GetEntry_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPostgresFormulary(db.Pool, logrus.New())

	_, err := repo.GetEntry(context.Background(), "plan-gold", "Remicade")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresFormulary_ListByClass(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewPostgresFormulary(db.Pool, logger)
	ctx := context.Background()

	humira := testEntry("Humira", 3, 72000)
	amjevita := testEntry("Amjevita", 1, 38000)
	amjevita.BiosimilarOf = "Humira"
	enbrel := testEntry("Enbrel", 2, 60000)
	hyrimoz := testEntry("Hyrimoz", 2, 42000)
	hyrimoz.BiosimilarOf = "Humira"

	for _, entry := range []*domain.FormularyEntry{humira, amjevita, enbrel, hyrimoz} {
		require.NoError(t, repo.Upsert(ctx, entry))
	}

	preferred, err := repo.ListByClass(ctx, "plan-gold", "tnf inhibitor", 2)
	require.NoError(t, err)
	require.Len(t, preferred, 3)
	assert.Equal(t, "Amjevita", preferred[0].DrugName)
	assert.Equal(t, "Hyrimoz", preferred[1].DrugName)
	assert.Equal(t, "Enbrel", preferred[2].DrugName)
	assert.Equal(t, "Humira", preferred[1].BiosimilarOf)

	all, err := repo.ListByClass(ctx, "plan-gold", "TNF inhibitor", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = repo.ListByClass(ctx, "plan-gold", "IL-23 inhibitor", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
