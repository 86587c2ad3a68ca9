package main

import (
	"context"
	"errors"
	"testing"
	"time"

	constants "hintwheel/internal/constants"
	models "hintwheel/internal/models"
	selection "hintwheel/internal/selection"
	store "hintwheel/internal/store"
	testutil "hintwheel/internal/testutil"
)

func newTestEngine(t *testing.T) (*selection.Engine, *store.HintStore, *store.HistoryStore) {
	db := testutil.OpenTestDB(t)
	hints := store.NewHintStore(db)
	history := store.NewHistoryStore(db)
	return selection.NewEngine(hints, history, 6*time.Hour), hints, history
}

func TestPickRandomEmptyStore(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	_, err := engine.PickRandom(context.Background(), "u1", 0, time.Now().UnixMilli())
	if !errors.Is(err, selection.ErrNoEligibleHints) {
		t.Fatalf("err = %v, want ErrNoEligibleHints", err)
	}
}

func TestPickRandomSingletonEligibleSet(t *testing.T) {
	engine, hints, _ := newTestEngine(t)
	ctx := context.Background()

	hint, err := hints.Create(ctx, "General", "Cafeteria")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	picked, err := engine.PickRandom(ctx, "u1", 0, time.Now().UnixMilli())
	if err != nil {
		t.Fatalf("PickRandom error: %v", err)
	}
	if picked.ID != hint.ID {
		t.Errorf("picked id = %d, want %d", picked.ID, hint.ID)
	}
}

func TestPickRandomNeverReturnsOwnContribution(t *testing.T) {
	engine, hints, history := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	mine, err := hints.Create(ctx, "General", "Cafeteria")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	other, err := hints.Create(ctx, "General", "Central library")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// contribution far outside the lookback: self-exclusion is permanent
	windowMs := (6 * time.Hour).Milliseconds()
	if err := history.Append(ctx, &models.Activity{
		UserID: "u1", HintID: mine.ID, HintText: mine.Text,
		ActivityType: constants.ActivityAdd, Timestamp: now - 100*windowMs, OwnerUserID: "u1",
	}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	for i := 0; i < 20; i++ {
		picked, err := engine.PickRandom(ctx, "u1", 0, now)
		if err != nil {
			t.Fatalf("PickRandom error: %v", err)
		}
		if picked.ID != other.ID {
			t.Fatalf("picked id = %d, contributor must never see their own hint", picked.ID)
		}
	}

	// a different user may be served the same hint
	picked, err := engine.PickRandom(ctx, "u2", 0, now)
	if err != nil {
		t.Fatalf("PickRandom error: %v", err)
	}
	if picked.ID != mine.ID && picked.ID != other.ID {
		t.Errorf("picked id = %d, want a member of the eligible set", picked.ID)
	}
}

func TestPickRandomRecentPickExclusionExpires(t *testing.T) {
	engine, hints, history := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()
	windowMs := (6 * time.Hour).Milliseconds()

	hint, err := hints.Create(ctx, "General", "Cafeteria")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := history.Append(ctx, &models.Activity{
		UserID: "u1", HintID: hint.ID, HintText: hint.Text,
		ActivityType: constants.ActivitySpin, Timestamp: now - 1000,
	}); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	_, err = engine.PickRandom(ctx, "u1", 0, now)
	if !errors.Is(err, selection.ErrNoEligibleHints) {
		t.Fatalf("err = %v, want ErrNoEligibleHints while the pick is fresh", err)
	}

	// the lookback cut is inclusive, so a pick aged exactly one window
	// is still excluded
	boundary := now - 1000 + windowMs
	_, err = engine.PickRandom(ctx, "u1", 0, boundary)
	if !errors.Is(err, selection.ErrNoEligibleHints) {
		t.Fatalf("err = %v, want ErrNoEligibleHints exactly at the lookback boundary", err)
	}

	picked, err := engine.PickRandom(ctx, "u1", 0, boundary+1)
	if err != nil {
		t.Fatalf("PickRandom after lookback error: %v", err)
	}
	if picked.ID != hint.ID {
		t.Errorf("picked id = %d, want %d once the lookback has passed", picked.ID, hint.ID)
	}
}

func TestPickRandomClientExclude(t *testing.T) {
	engine, hints, _ := newTestEngine(t)
	ctx := context.Background()

	hint, err := hints.Create(ctx, "General", "Cafeteria")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err = engine.PickRandom(ctx, "u1", hint.ID, time.Now().UnixMilli())
	if !errors.Is(err, selection.ErrNoEligibleHints) {
		t.Fatalf("err = %v, want ErrNoEligibleHints when the only hint is client-excluded", err)
	}
}
