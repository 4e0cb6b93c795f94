package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biologic-optimizer/internal/domain"
)

type countingFormulary struct {
	next      domain.FormularyService
	getCalls  int
	listCalls int
}

func (c *countingFormulary) GetEntry(ctx context.Context, planID, drugName string) (*domain.FormularyEntry, error) {
	c.getCalls++
	return c.next.GetEntry(ctx, planID, drugName)
}

func (c *countingFormulary) ListByClass(ctx context.Context, planID, drugClass string, maxTier int) ([]domain.FormularyEntry, error) {
	c.listCalls++
	return c.next.ListByClass(ctx, planID, drugClass, maxTier)
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestCachedFormulary_GetEntry_MemoryTier(t *testing.T) {
	counting := &countingFormulary{next: seededMemoryFormulary()}
	cached, err := NewCachedFormulary(counting, nil, time.Hour, discardLogger())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := cached.GetEntry(ctx, "p1", "Humira")
	require.NoError(t, err)
	second, err := cached.GetEntry(ctx, "p1", "Humira")
	require.NoError(t, err)

	assert.Equal(t, first.DrugName, second.DrugName)
	assert.Equal(t, 1, counting.getCalls, "second read must come from the memory tier")

	// Different casing hits the same normalized key.
	_, err = cached.GetEntry(ctx, "p1", "HUMIRA")
	require.NoError(t, err)
	assert.Equal(t, 1, counting.getCalls)
}

func TestCachedFormulary_GetEntry_MissesAreNotCached(t *testing.T) {
	counting := &countingFormulary{next: seededMemoryFormulary()}
	cached, err := NewCachedFormulary(counting, nil, time.Hour, discardLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cached.GetEntry(ctx, "p1", "Remicade")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = cached.GetEntry(ctx, "p1", "Remicade")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, 2, counting.getCalls)
}

func TestCachedFormulary_ListByClass_KeyIncludesTierBound(t *testing.T) {
	counting := &countingFormulary{next: seededMemoryFormulary()}
	cached, err := NewCachedFormulary(counting, nil, time.Hour, discardLogger())
	require.NoError(t, err)
	ctx := context.Background()

	preferred, err := cached.ListByClass(ctx, "p1", "TNF inhibitor", 2)
	require.NoError(t, err)
	assert.Len(t, preferred, 3)

	all, err := cached.ListByClass(ctx, "p1", "TNF inhibitor", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	assert.Equal(t, 2, counting.listCalls, "different tier bounds are distinct cache keys")

	_, err = cached.ListByClass(ctx, "p1", "TNF inhibitor", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, counting.listCalls)
}

func TestCachedFormulary_Invalidate(t *testing.T) {
	counting := &countingFormulary{next: seededMemoryFormulary()}
	cached, err := NewCachedFormulary(counting, nil, time.Hour, discardLogger())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cached.GetEntry(ctx, "p1", "Humira")
	require.NoError(t, err)

	cached.Invalidate(ctx, "p1", "Humira")

	_, err = cached.GetEntry(ctx, "p1", "Humira")
	require.NoError(t, err)
	assert.Equal(t, 2, counting.getCalls)
}
