package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keepitcity/proof/models"
	"github.com/Keepitcity/proof/repository"
)

func TestSeedDatabaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "seed.db"), models.DefaultTeamDomain)
	require.NoError(t, err)
	defer store.Close()

	seeder := NewDatabaseSeeder(store)
	require.NoError(t, seeder.SeedDatabase(ctx))
	require.NoError(t, seeder.SeedDatabase(ctx))

	users, err := store.GetTotalUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, len(seedUsers), users)

	team, err := store.GetTotalTeamMembers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, team)

	agg, err := store.GetAggregateStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7200, agg.TotalTimeSaved)

	waitlist, err := store.GetWaitlist(ctx)
	require.NoError(t, err)
	assert.Len(t, waitlist, len(seedWaitlist))
}
