package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"arbsig/internal/application/port"
	"arbsig/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS signals (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL DEFAULT '',
  instrument TEXT NOT NULL,
  primary_venue TEXT NOT NULL,
  hedge_venue TEXT NOT NULL,
  strategy TEXT NOT NULL,
  min_price_spread REAL NOT NULL,
  min_funding_spread REAL,
  primary_side TEXT NOT NULL DEFAULT '',
  hedge_side TEXT NOT NULL DEFAULT '',
  order_params TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  triggered_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status);
CREATE INDEX IF NOT EXISTS idx_signals_user ON signals(user_id);

CREATE TABLE IF NOT EXISTS signal_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  signal_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signal_events_signal ON signal_events(signal_id);
CREATE INDEX IF NOT EXISTS idx_signal_events_ts ON signal_events(created_at);
`)
	return err
}

func (r *Repo) Create(ctx context.Context, sig *model.Signal) error {
	var minFunding sql.NullFloat64
	if sig.MinFundingSpreadPct != nil {
		minFunding = sql.NullFloat64{Float64: *sig.MinFundingSpreadPct, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signals(id, user_id, instrument, primary_venue, hedge_venue, strategy,
			min_price_spread, min_funding_spread, primary_side, hedge_side, order_params, status, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status
	`, sig.ID, sig.UserID, sig.Instrument, sig.PrimaryVenue, sig.HedgeVenue, string(sig.Strategy),
		sig.MinPriceSpreadPct, minFunding, string(sig.PrimarySide), string(sig.HedgeSide),
		string(sig.OrderParams), string(sig.Status), sig.CreatedAt.UnixMilli())
	return err
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, status model.SignalStatus, triggeredAtMs int64) error {
	var triggered sql.NullInt64
	if triggeredAtMs > 0 {
		triggered = sql.NullInt64{Int64: triggeredAtMs, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `UPDATE signals SET status=?, triggered_at=? WHERE id=?`,
		string(status), triggered, id)
	return err
}

func (r *Repo) ListByStatus(ctx context.Context, status model.SignalStatus) ([]*model.Signal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, instrument, primary_venue, hedge_venue, strategy,
			min_price_spread, min_funding_spread, primary_side, hedge_side, order_params, status, created_at, triggered_at
		FROM signals WHERE status=? ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func scanSignal(rows *sql.Rows) (*model.Signal, error) {
	var (
		sig         model.Signal
		strategy    string
		pSide       string
		hSide       string
		status      string
		orderParams string
		minFunding  sql.NullFloat64
		createdMs   int64
		triggeredMs sql.NullInt64
	)
	if err := rows.Scan(&sig.ID, &sig.UserID, &sig.Instrument, &sig.PrimaryVenue, &sig.HedgeVenue,
		&strategy, &sig.MinPriceSpreadPct, &minFunding, &pSide, &hSide, &orderParams, &status,
		&createdMs, &triggeredMs); err != nil {
		return nil, err
	}
	sig.Strategy = model.Strategy(strategy)
	sig.PrimarySide = model.Side(pSide)
	sig.HedgeSide = model.Side(hSide)
	sig.Status = model.SignalStatus(status)
	if orderParams != "" {
		sig.OrderParams = json.RawMessage(orderParams)
	}
	if minFunding.Valid {
		v := minFunding.Float64
		sig.MinFundingSpreadPct = &v
	}
	sig.CreatedAt = time.UnixMilli(createdMs)
	if triggeredMs.Valid {
		t := time.UnixMilli(triggeredMs.Int64)
		sig.TriggeredAt = &t
	}
	return &sig, nil
}

func (r *Repo) AppendEvent(ctx context.Context, signalID string, eventType model.EventType, payload string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signal_events(signal_id, event_type, payload, created_at) VALUES(?, ?, ?, ?)
	`, signalID, string(eventType), payload, time.Now().UnixMilli())
	return err
}

var _ port.SignalRepository = (*Repo)(nil)
