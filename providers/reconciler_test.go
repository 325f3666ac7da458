package providers

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trilive/trilive-api/trimet"
)

type fakeCatalog struct {
	ids         map[int]struct{}
	applyCalls  int
	lastInserts []Stop
	lastDeletes []int
	idsErr      error
	applyErr    error
}

func newFakeCatalog(ids ...int) *fakeCatalog {
	c := &fakeCatalog{ids: make(map[int]struct{})}
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
	return c
}

func (f *fakeCatalog) IDs(ctx context.Context) (map[int]struct{}, error) {
	if f.idsErr != nil {
		return nil, f.idsErr
	}
	out := make(map[int]struct{}, len(f.ids))
	for id := range f.ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (f *fakeCatalog) Apply(ctx context.Context, inserts []Stop, deleteIDs []int) error {
	f.applyCalls++
	f.lastInserts = inserts
	f.lastDeletes = deleteIDs
	if f.applyErr != nil {
		return f.applyErr
	}
	for _, stop := range inserts {
		f.ids[stop.ID] = struct{}{}
	}
	for _, id := range deleteIDs {
		delete(f.ids, id)
	}
	return nil
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func upstreamStop(id int, name string) trimet.Location {
	return trimet.Location{
		ID:          intPtr(id),
		Description: name,
		Lng:         floatPtr(-122.6),
		Lat:         floatPtr(45.5),
	}
}

func staticFetcher(locations []trimet.Location, err error) StopFetcher {
	return func(ctx context.Context, bbox string) ([]trimet.Location, error) {
		return locations, err
	}
}

func TestRunInsertsMissingAndDeletesStale(t *testing.T) {
	catalog := newFakeCatalog(1, 2)
	upstream := []trimet.Location{upstreamStop(2, "kept"), upstreamStop(3, "new")}
	reconciler := NewReconciler(staticFetcher(upstream, nil), catalog, "bbox")

	require.NoError(t, reconciler.Run(context.Background()))

	require.Equal(t, 1, catalog.applyCalls)
	require.Len(t, catalog.lastInserts, 1)
	require.Equal(t, 3, catalog.lastInserts[0].ID)
	require.Equal(t, "new", catalog.lastInserts[0].Name)
	require.Equal(t, []int{1}, catalog.lastDeletes)
}

func TestRunIsIdempotentWhenCatalogMatches(t *testing.T) {
	catalog := newFakeCatalog(1)
	upstream := []trimet.Location{upstreamStop(1, "only"), upstreamStop(2, "new")}
	reconciler := NewReconciler(staticFetcher(upstream, nil), catalog, "bbox")

	require.NoError(t, reconciler.Run(context.Background()))
	require.Equal(t, 1, catalog.applyCalls)

	// Second run over the same upstream set changes nothing and never hits
	// the database.
	require.NoError(t, reconciler.Run(context.Background()))
	require.Equal(t, 1, catalog.applyCalls)

	gotIDs, err := catalog.IDs(context.Background())
	require.NoError(t, err)
	require.Len(t, gotIDs, 2)
}

func TestRunEmptyFetchNeverDeletes(t *testing.T) {
	catalog := newFakeCatalog(1, 2, 3)
	reconciler := NewReconciler(staticFetcher(nil, nil), catalog, "bbox")

	require.NoError(t, reconciler.Run(context.Background()))

	require.Zero(t, catalog.applyCalls)
	gotIDs, err := catalog.IDs(context.Background())
	require.NoError(t, err)
	require.Len(t, gotIDs, 3)
}

func TestRunFetchErrorLeavesCatalogUntouched(t *testing.T) {
	catalog := newFakeCatalog(1)
	wantErr := errors.New("upstream down")
	reconciler := NewReconciler(staticFetcher(nil, wantErr), catalog, "bbox")

	err := reconciler.Run(context.Background())
	require.ErrorIs(t, err, wantErr)
	require.Zero(t, catalog.applyCalls)
}

func TestRunSkipsListingsWithoutID(t *testing.T) {
	catalog := newFakeCatalog()
	upstream := []trimet.Location{
		{Description: "no id"},
		upstreamStop(5, "real"),
	}
	reconciler := NewReconciler(staticFetcher(upstream, nil), catalog, "bbox")

	require.NoError(t, reconciler.Run(context.Background()))

	require.Equal(t, 1, catalog.applyCalls)
	require.Len(t, catalog.lastInserts, 1)
	require.Equal(t, 5, catalog.lastInserts[0].ID)
}

func TestRunDeduplicatesUpstreamListings(t *testing.T) {
	catalog := newFakeCatalog()
	upstream := []trimet.Location{
		upstreamStop(7, "first listing"),
		upstreamStop(7, "duplicate listing"),
		upstreamStop(8, "other"),
	}
	reconciler := NewReconciler(staticFetcher(upstream, nil), catalog, "bbox")

	require.NoError(t, reconciler.Run(context.Background()))

	require.Len(t, catalog.lastInserts, 2)
	insertedIDs := []int{catalog.lastInserts[0].ID, catalog.lastInserts[1].ID}
	sort.Ints(insertedIDs)
	require.Equal(t, []int{7, 8}, insertedIDs)
	require.Equal(t, "first listing", catalog.lastInserts[0].Name)
}

func TestRunRejectsOverlappingRuns(t *testing.T) {
	catalog := newFakeCatalog()
	entered := make(chan struct{})
	release := make(chan struct{})
	reconciler := NewReconciler(func(ctx context.Context, bbox string) ([]trimet.Location, error) {
		close(entered)
		<-release
		return nil, nil
	}, catalog, "bbox")

	done := make(chan error, 1)
	go func() {
		done <- reconciler.Run(context.Background())
	}()

	<-entered
	require.ErrorIs(t, reconciler.Run(context.Background()), ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)
}
