package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"k8s.io/utils/clock"
)

const eventColumns = "id, history_id, target, step, status, is_last, detail, created_at"

// DBStore keeps histories and events in Postgres. The schema lives in the database package.
type DBStore struct {
	pool  *pgxpool.Pool
	clock clock.PassiveClock
}

var _ Store = (*DBStore)(nil)

// NewDBStore creates a database-backed store
func NewDBStore(pool *pgxpool.Pool, opts ...Option) *DBStore {
	o := buildOptions(opts)
	return &DBStore{pool: pool, clock: o.clock}
}

// CreateHistory implements Store
func (d *DBStore) CreateHistory(ctx context.Context, h *History) (*History, error) {
	if err := validateHistory(h); err != nil {
		return nil, err
	}

	out := *h
	if out.CreatedAt.IsZero() {
		out.CreatedAt = d.clock.Now()
	}
	err := d.pool.QueryRow(ctx,
		`INSERT INTO release_history (kind, gateway_id, stage_id, resource_version_id, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		string(out.Kind), out.GatewayID, out.StageID, out.ResourceVersionID, out.CreatedAt,
	).Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert history: %w", err)
	}
	return &out, nil
}

// GetHistory implements Store
func (d *DBStore) GetHistory(ctx context.Context, id int64) (*History, error) {
	row := d.pool.QueryRow(ctx,
		`SELECT id, kind, gateway_id, stage_id, resource_version_id, created_at
		 FROM release_history WHERE id = $1`, id)
	h, err := scanHistory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("history %d: %w", id, ErrHistoryNotFound)
		}
		return nil, fmt.Errorf("failed to get history %d: %w", id, err)
	}
	return h, nil
}

// ListHistories implements Store
func (d *DBStore) ListHistories(ctx context.Context, gatewayID, stageID int64) ([]*History, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT id, kind, gateway_id, stage_id, resource_version_id, created_at
		 FROM release_history WHERE gateway_id = $1 AND stage_id = $2
		 ORDER BY created_at DESC, id DESC`, gatewayID, stageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list histories: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*History, error) {
		return scanHistory(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list histories: %w", err)
	}
	return out, nil
}

// AppendEvent implements Store. The history row is locked so appends to one history serialize.
func (d *DBStore) AppendEvent(ctx context.Context, e *Event) (*Event, error) {
	if e.Target == "" {
		return nil, fmt.Errorf("%w: event target is required", ErrInvalidTransition)
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM release_history WHERE id = $1 FOR UPDATE`, e.HistoryID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("history %d: %w", e.HistoryID, ErrHistoryNotFound)
		}
		return nil, fmt.Errorf("failed to lock history %d: %w", e.HistoryID, err)
	}

	row := tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM publish_event
		 WHERE history_id = $1 AND target = $2 ORDER BY id DESC LIMIT 1`, e.HistoryID, e.Target)
	latest, err := scanEvent(row)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read latest event: %w", err)
	}
	if err := ValidateTransition(latest, e); err != nil {
		return nil, err
	}

	out := *e
	if out.CreatedAt.IsZero() {
		out.CreatedAt = d.clock.Now()
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO publish_event (history_id, target, step, status, is_last, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		out.HistoryID, out.Target, int16(out.Step), string(out.Status), out.IsLast, out.Detail, out.CreatedAt,
	).Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListEvents implements Store
func (d *DBStore) ListEvents(ctx context.Context, historyID int64) ([]*Event, error) {
	if _, err := d.GetHistory(ctx, historyID); err != nil {
		return nil, err
	}

	rows, err := d.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM publish_event WHERE history_id = $1 ORDER BY id`, historyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Event, error) {
		return scanEvent(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return out, nil
}

// DeleteEventsBefore implements Store
func (d *DBStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	// the newest event of each (history, target) chain survives
	tag, err := d.pool.Exec(ctx, `
		DELETE FROM publish_event e
		WHERE e.created_at < $1
		  AND e.id <> (
		    SELECT max(l.id) FROM publish_event l
		    WHERE l.history_id = e.history_id AND l.target = e.target
		  )`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanHistory(row pgx.Row) (*History, error) {
	var (
		h    History
		kind string
	)
	if err := row.Scan(&h.ID, &kind, &h.GatewayID, &h.StageID, &h.ResourceVersionID, &h.CreatedAt); err != nil {
		return nil, err
	}
	h.Kind = Kind(kind)
	return &h, nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var (
		e      Event
		step   int16
		status string
	)
	if err := row.Scan(&e.ID, &e.HistoryID, &e.Target, &step, &status, &e.IsLast, &e.Detail, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Step = Step(step)
	e.Status = Status(status)
	return &e, nil
}
