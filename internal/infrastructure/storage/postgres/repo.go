package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"arbsig/internal/application/port"
	"arbsig/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS signals (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL DEFAULT '',
  instrument TEXT NOT NULL,
  primary_venue TEXT NOT NULL,
  hedge_venue TEXT NOT NULL,
  strategy TEXT NOT NULL,
  min_price_spread DOUBLE PRECISION NOT NULL,
  min_funding_spread DOUBLE PRECISION,
  primary_side TEXT NOT NULL DEFAULT '',
  hedge_side TEXT NOT NULL DEFAULT '',
  order_params TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  triggered_at BIGINT
);
CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status);
CREATE INDEX IF NOT EXISTS idx_signals_user ON signals(user_id);

CREATE TABLE IF NOT EXISTS signal_events (
  id BIGSERIAL PRIMARY KEY,
  signal_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signal_events_signal ON signal_events(signal_id);
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
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
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
	_, err := r.db.ExecContext(ctx, `UPDATE signals SET status=$1, triggered_at=$2 WHERE id=$3`,
		string(status), triggered, id)
	return err
}

func (r *Repo) ListByStatus(ctx context.Context, status model.SignalStatus) ([]*model.Signal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, instrument, primary_venue, hedge_venue, strategy,
			min_price_spread, min_funding_spread, primary_side, hedge_side, order_params, status, created_at, triggered_at
		FROM signals WHERE status=$1 ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Signal
	for rows.Next() {
		var (
			sig         model.Signal
			strategy    string
			pSide       string
			hSide       string
			st          string
			orderParams string
			minFunding  sql.NullFloat64
			createdMs   int64
			triggeredMs sql.NullInt64
		)
		if err := rows.Scan(&sig.ID, &sig.UserID, &sig.Instrument, &sig.PrimaryVenue, &sig.HedgeVenue,
			&strategy, &sig.MinPriceSpreadPct, &minFunding, &pSide, &hSide, &orderParams, &st,
			&createdMs, &triggeredMs); err != nil {
			return nil, err
		}
		sig.Strategy = model.Strategy(strategy)
		sig.PrimarySide = model.Side(pSide)
		sig.HedgeSide = model.Side(hSide)
		sig.Status = model.SignalStatus(st)
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
		out = append(out, &sig)
	}
	return out, rows.Err()
}

func (r *Repo) AppendEvent(ctx context.Context, signalID string, eventType model.EventType, payload string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signal_events(signal_id, event_type, payload, created_at) VALUES($1, $2, $3, $4)
	`, signalID, string(eventType), payload, time.Now().UnixMilli())
	return err
}

var _ port.SignalRepository = (*Repo)(nil)
