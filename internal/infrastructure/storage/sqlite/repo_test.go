package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"arbsig/internal/domain/model"
)

func newTestSignal(id string) *model.Signal {
	funding := 0.01
	return &model.Signal{
		ID:                  id,
		UserID:              "u1",
		Instrument:          "BTCUSDT",
		PrimaryVenue:        "BINANCE",
		HedgeVenue:          "BYBIT",
		Strategy:            model.StrategyCombined,
		MinPriceSpreadPct:   0.5,
		MinFundingSpreadPct: &funding,
		PrimarySide:         model.SideLong,
		HedgeSide:           model.SideShort,
		Status:              model.StatusActive,
		CreatedAt:           time.UnixMilli(1700000000000),
	}
}

func TestSQLiteRepoCreateAndList(t *testing.T) {
	dbPath := "test.db"
	defer os.Remove(dbPath)

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if err := repo.Create(ctx, newTestSignal("sig-1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, newTestSignal("sig-2")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sigs, err := repo.ListByStatus(ctx, model.StatusActive)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 active signals, got %d", len(sigs))
	}

	got := sigs[0]
	if got.ID != "sig-1" || got.Instrument != "BTCUSDT" || got.PrimaryVenue != "BINANCE" {
		t.Errorf("unexpected signal: %+v", got)
	}
	if got.Strategy != model.StrategyCombined || got.PrimarySide != model.SideLong {
		t.Errorf("enum fields not restored: %+v", got)
	}
	if got.MinFundingSpreadPct == nil || *got.MinFundingSpreadPct != 0.01 {
		t.Errorf("funding threshold not restored: %v", got.MinFundingSpreadPct)
	}
	if got.CreatedAt.UnixMilli() != 1700000000000 {
		t.Errorf("created_at not restored: %v", got.CreatedAt)
	}
}

func TestSQLiteRepoUpdateStatus(t *testing.T) {
	dbPath := "test_status.db"
	defer os.Remove(dbPath)

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if err := repo.Create(ctx, newTestSignal("sig-1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	trigMs := int64(1700000100000)
	if err := repo.UpdateStatus(ctx, "sig-1", model.StatusTriggered, trigMs); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	// active 列表应为空
	active, err := repo.ListByStatus(ctx, model.StatusActive)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active signals, got %d", len(active))
	}

	triggered, err := repo.ListByStatus(ctx, model.StatusTriggered)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(triggered) != 1 {
		t.Fatalf("expected 1 triggered signal, got %d", len(triggered))
	}
	if triggered[0].TriggeredAt == nil || triggered[0].TriggeredAt.UnixMilli() != trigMs {
		t.Errorf("triggered_at not restored: %v", triggered[0].TriggeredAt)
	}
}

func TestSQLiteRepoCancelledHasNoTriggeredAt(t *testing.T) {
	dbPath := "test_cancel.db"
	defer os.Remove(dbPath)

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if err := repo.Create(ctx, newTestSignal("sig-1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.UpdateStatus(ctx, "sig-1", model.StatusCancelled, 0); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	cancelled, err := repo.ListByStatus(ctx, model.StatusCancelled)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(cancelled) != 1 {
		t.Fatalf("expected 1 cancelled signal, got %d", len(cancelled))
	}
	if cancelled[0].TriggeredAt != nil {
		t.Errorf("cancelled signal should not have triggered_at, got %v", cancelled[0].TriggeredAt)
	}
}

func TestSQLiteRepoAppendEvent(t *testing.T) {
	dbPath := "test_event.db"
	defer os.Remove(dbPath)

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	payload := `{"signal_id":"sig-1","reason":"manual"}`
	if err := repo.AppendEvent(ctx, "sig-1", model.EventSignalStopped, payload); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}

	var count int
	err = repo.GetDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM signal_events WHERE signal_id=?`, "sig-1").Scan(&count)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 event row, got %d", count)
	}
}
