package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const catalogQueryTimeout = 5 * time.Second

// StopCatalog is the persistent stop table. The reconciler is its only
// writer; everything else reads.
type StopCatalog struct {
	db *sqlx.DB
}

func NewStopCatalog(databaseURL string) (*StopCatalog, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open stop catalog: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping stop catalog: %w", err)
	}

	catalog := &StopCatalog{db: db}

	ctx, cancel := context.WithTimeout(context.Background(), catalogQueryTimeout)
	defer cancel()

	if err := catalog.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return catalog, nil
}

func (s *StopCatalog) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *StopCatalog) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS stoptable (
        id integer PRIMARY KEY,
        name text NOT NULL,
        lat double precision NOT NULL,
        lon double precision NOT NULL
    );`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *StopCatalog) List(ctx context.Context) ([]Stop, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogQueryTimeout)
	defer cancel()

	stops := []Stop{}
	if err := s.db.SelectContext(ctx, &stops, `SELECT id, name, lat, lon FROM stoptable ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list stops: %w", err)
	}
	return stops, nil
}

func (s *StopCatalog) IDs(ctx context.Context) (map[int]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogQueryTimeout)
	defer cancel()

	var ids []int
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM stoptable`); err != nil {
		return nil, fmt.Errorf("list stop ids: %w", err)
	}

	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Apply commits the inserts and deletes of one reconciliation pass in a
// single transaction, so a failure partway through leaves the catalog in its
// prior state.
func (s *StopCatalog) Apply(ctx context.Context, inserts []Stop, deleteIDs []int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reconcile tx: %w", err)
	}
	defer tx.Rollback()

	for _, stop := range inserts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stoptable (id, name, lat, lon) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
			stop.ID, stop.Name, stop.Lat, stop.Lon); err != nil {
			return fmt.Errorf("insert stop %d: %w", stop.ID, err)
		}
	}

	if len(deleteIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM stoptable WHERE id = ANY($1)`, pq.Array(deleteIDs)); err != nil {
			return fmt.Errorf("delete stale stops: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconcile tx: %w", err)
	}
	return nil
}
