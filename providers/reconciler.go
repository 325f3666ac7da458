package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/trilive/trilive-api/trimet"
)

// ErrSyncInProgress is returned when a reconciliation run is requested while
// another is still in flight.
var ErrSyncInProgress = errors.New("stop sync already running")

// Catalog is the subset of the stop catalog the reconciler touches.
type Catalog interface {
	IDs(ctx context.Context) (map[int]struct{}, error)
	Apply(ctx context.Context, inserts []Stop, deleteIDs []int) error
}

type StopFetcher func(ctx context.Context, bbox string) ([]trimet.Location, error)

// Reconciler aligns the local stop catalog with the upstream stop listing
// for the service-area bounding box. Each run is stateless; the diff is
// computed from the fresh fetch against current catalog contents.
type Reconciler struct {
	fetchStops StopFetcher
	catalog    Catalog
	bbox       string
	mu         sync.Mutex
}

func NewReconciler(fetchStops StopFetcher, catalog Catalog, bbox string) *Reconciler {
	return &Reconciler{fetchStops: fetchStops, catalog: catalog, bbox: bbox}
}

// Run fetches the full upstream stop set and applies the diff in one
// transaction: insert stops the catalog is missing, delete catalog rows the
// upstream no longer lists. Deletion is skipped entirely when the fetch
// comes back empty so a transient empty response cannot wipe the catalog.
// Overlapping runs are rejected with ErrSyncInProgress.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.mu.TryLock() {
		return ErrSyncInProgress
	}
	defer r.mu.Unlock()

	locations, err := r.fetchStops(ctx, r.bbox)
	if err != nil {
		return fmt.Errorf("fetch stops: %w", err)
	}

	existing, err := r.catalog.IDs(ctx)
	if err != nil {
		return fmt.Errorf("read catalog ids: %w", err)
	}

	fetched := make(map[int]struct{}, len(locations))
	var inserts []Stop
	for _, loc := range locations {
		station := stationFromLocation(loc)
		if station.StopID == missingStopID {
			// A listing entry without an id can't be cataloged.
			continue
		}
		if _, seen := fetched[station.StopID]; seen {
			continue
		}
		fetched[station.StopID] = struct{}{}

		if _, found := existing[station.StopID]; !found {
			inserts = append(inserts, Stop{
				ID:   station.StopID,
				Name: station.Name,
				Lat:  station.Lat,
				Lon:  station.Lon,
			})
		}
	}

	var deleteIDs []int
	if len(fetched) > 0 {
		for id := range existing {
			if _, found := fetched[id]; !found {
				deleteIDs = append(deleteIDs, id)
			}
		}
	}

	if len(inserts) == 0 && len(deleteIDs) == 0 {
		return nil
	}

	if err := r.catalog.Apply(ctx, inserts, deleteIDs); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"fetched":  len(fetched),
		"inserted": len(inserts),
		"deleted":  len(deleteIDs),
	}).Info("Stop catalog reconciled")
	return nil
}
