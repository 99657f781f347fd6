package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/dispatch-feed-etl/internal/domain"
)

var t0 = time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC)

func testRecord(fp string, firstSeen time.Time) domain.IncidentRecord {
	return domain.IncidentRecord{
		Agency:       "SPD",
		Time:         "1150",
		Units:        2,
		Description:  "ACCIDENT",
		Street:       "MAIN ST",
		CrossStreets: "1ST AVE",
		Municipality: "SHREVEPORT",
		OccurredAt:   firstSeen.Add(-10 * time.Minute),
		Fingerprint:  fp,
		FirstSeen:    firstSeen,
		LastSeen:     firstSeen,
	}
}

func TestStore_InsertAndLatest(t *testing.T) {
	ctx := context.Background()
	store := New(openTestDB(t), DialectSQLite)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	p, err := uow.Partition(ctx, "agency_spd")
	require.NoError(t, err)

	rec := testRecord("fp-1", t0)
	rec.Location = &domain.Coordinate{Lat: 32.5, Lon: -93.75}
	id, err := p.Insert(ctx, rec)
	require.NoError(t, err)
	assert.Positive(t, id)
	require.NoError(t, uow.Commit())

	uow, err = store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	p, err = uow.Partition(ctx, "agency_spd")
	require.NoError(t, err)

	got, found, err := p.Latest(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, domain.PartitionKey("agency_spd"), got.PartitionKey)
	assert.Equal(t, "ACCIDENT", got.Description)
	assert.Equal(t, 2, got.Units)
	assert.True(t, got.FirstSeen.Equal(t0))
	assert.True(t, got.LastSeen.Equal(t0))
	assert.True(t, got.OccurredAt.Equal(t0.Add(-10*time.Minute)))
	assert.False(t, got.Resolved)
	require.NotNil(t, got.Location)
	assert.Equal(t, 32.5, got.Location.Lat)
	assert.Equal(t, domain.StateOpenNew, got.State())

	_, found, err = p.Latest(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_LatestPicksNewestFirstSeen(t *testing.T) {
	ctx := context.Background()
	store := New(openTestDB(t), DialectSQLite)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	p, err := uow.Partition(ctx, "agency_spd")
	require.NoError(t, err)

	newer := testRecord("fp-1", t0.Add(24*time.Hour))
	newerID, err := p.Insert(ctx, newer)
	require.NoError(t, err)
	_, err = p.Insert(ctx, testRecord("fp-1", t0))
	require.NoError(t, err)

	got, found, err := p.Latest(ctx, "fp-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, newerID, got.ID)
}

func TestStore_TouchListOpenResolve(t *testing.T) {
	ctx := context.Background()
	store := New(openTestDB(t), DialectSQLite)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()
	p, err := uow.Partition(ctx, "agency_spd")
	require.NoError(t, err)

	id1, err := p.Insert(ctx, testRecord("fp-1", t0))
	require.NoError(t, err)
	id2, err := p.Insert(ctx, testRecord("fp-2", t0))
	require.NoError(t, err)

	later := t0.Add(5 * time.Minute)
	require.NoError(t, p.Touch(ctx, id1, 4, later))

	got, _, err := p.Latest(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Units)
	assert.True(t, got.LastSeen.Equal(later))
	assert.True(t, got.FirstSeen.Equal(t0), "first-seen is immutable")
	assert.Equal(t, domain.StateOpenSeen, got.State())

	require.NoError(t, p.Resolve(ctx, id2))

	open, err := p.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, id1, open[0].ID)

	assert.ErrorIs(t, p.Touch(ctx, id2, 1, later), ErrNotFound, "resolved records are not touched")
	assert.ErrorIs(t, p.Resolve(ctx, 9999), ErrNotFound)
}

func TestStore_PartitionIsolation(t *testing.T) {
	ctx := context.Background()
	store := New(openTestDB(t), DialectSQLite)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()

	spd, err := uow.Partition(ctx, "agency_spd")
	require.NoError(t, err)
	cfd, err := uow.Partition(ctx, "agency_cfd")
	require.NoError(t, err)

	id, err := spd.Insert(ctx, testRecord("fp-1", t0))
	require.NoError(t, err)

	_, found, err := cfd.Latest(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, found)

	open, err := cfd.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	assert.ErrorIs(t, cfd.Resolve(ctx, id), ErrNotFound)
}

func TestStore_PartitionRegistry(t *testing.T) {
	ctx := context.Background()
	store := New(openTestDB(t), DialectSQLite)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	_, err = uow.Partition(ctx, "agency_spd")
	require.NoError(t, err)
	_, err = uow.Partition(ctx, "agency_cfd")
	require.NoError(t, err)
	_, err = uow.Partition(ctx, "agency_spd")
	require.NoError(t, err, "registering twice is a no-op")
	require.NoError(t, uow.Commit())

	uow, err = store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()

	keys, err := uow.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PartitionKey{"agency_cfd", "agency_spd"}, keys)
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := New(openTestDB(t), DialectSQLite)

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	p, err := uow.Partition(ctx, "agency_spd")
	require.NoError(t, err)
	_, err = p.Insert(ctx, testRecord("fp-1", t0))
	require.NoError(t, err)
	require.NoError(t, uow.Rollback())
	require.NoError(t, uow.Rollback(), "second rollback is a no-op")

	uow, err = store.Begin(ctx)
	require.NoError(t, err)
	defer uow.Rollback()

	keys, err := uow.Partitions(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStore_CheckReadiness(t *testing.T) {
	store := New(openTestDB(t), DialectSQLite)
	assert.NoError(t, store.CheckReadiness(context.Background()))
}
