package store

import (
	"context"
	"testing"
	"time"

	"lethai-bot/internal/models"
)

func TestRecordAndCommitIntent(t *testing.T) {
	users, _ := newTestStore(t)
	ctx := context.Background()

	intentID := users.RecordIntent(ctx, 12345)
	if intentID == "" {
		t.Fatal("expected a non-empty intent id")
	}

	pending := users.PendingIntents(ctx, 0)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending intent, got %d", len(pending))
	}
	if pending[0].ID != intentID || pending[0].TelegramID != 12345 {
		t.Errorf("unexpected pending intent: %+v", pending[0])
	}

	if !users.CommitIntent(ctx, intentID) {
		t.Fatal("expected commit to succeed")
	}
	if pending := users.PendingIntents(ctx, 0); len(pending) != 0 {
		t.Errorf("committed intent must not be pending, got %d", len(pending))
	}
}

func TestCommitIntentMissing(t *testing.T) {
	users, _ := newTestStore(t)
	ctx := context.Background()

	if users.CommitIntent(ctx, "") {
		t.Error("expected empty intent id to fail")
	}
	if users.CommitIntent(ctx, "no-such-intent") {
		t.Error("expected unknown intent id to fail")
	}
}

func TestPendingIntentsGracePeriod(t *testing.T) {
	users, _ := newTestStore(t)
	ctx := context.Background()

	users.RecordIntent(ctx, 12345)

	if pending := users.PendingIntents(ctx, time.Hour); len(pending) != 0 {
		t.Errorf("fresh intent must be inside the grace period, got %d", len(pending))
	}
	if pending := users.PendingIntents(ctx, 0); len(pending) != 1 {
		t.Errorf("expected the intent without a grace period, got %d", len(pending))
	}
}

func TestPendingIntentsOrder(t *testing.T) {
	users, db := newTestStore(t)
	ctx := context.Background()

	first := users.RecordIntent(ctx, 1)
	second := users.RecordIntent(ctx, 2)

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{second, first} {
		err := db.Model(&models.ApprovalIntent{}).Where("id = ?", id).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error
		if err != nil {
			t.Fatalf("failed to backdate intent: %v", err)
		}
	}

	pending := users.PendingIntents(ctx, 0)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending intents, got %d", len(pending))
	}
	if pending[0].ID != second || pending[1].ID != first {
		t.Error("pending intents must be oldest first")
	}
}
