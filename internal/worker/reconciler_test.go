package worker

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lethai-bot/internal/models"
	"lethai-bot/internal/store"
)

type ledgerCall struct {
	partnercode, name, contact, username, source string
}

type fakeLedger struct {
	fail  bool
	calls []ledgerCall
}

func (f *fakeLedger) RegisterPartner(_ context.Context, partnercode, name, contact, username, referralSource string) bool {
	f.calls = append(f.calls, ledgerCall{partnercode, name, contact, username, referralSource})
	return !f.fail
}

func newTestReconciler(t *testing.T) (*Reconciler, *store.Users, *fakeLedger) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.ApprovalIntent{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	users := store.NewUsers(db)
	ledger := &fakeLedger{}
	r := NewReconciler(users, ledger, nil, nil, -1001, 0)
	r.Grace = 0
	return r, users, ledger
}

func TestReconcileRetriesAndCommits(t *testing.T) {
	r, users, ledger := newTestReconciler(t)
	ctx := context.Background()

	users.Create(ctx, 12345, "Test User", "+1234567890")
	users.SetApproval(ctx, 12345, true)
	users.RecordIntent(ctx, 12345)

	r.reconcile(ctx)

	want := ledgerCall{"12345", "Test User", "+1234567890", "", ""}
	if len(ledger.calls) != 1 || ledger.calls[0] != want {
		t.Errorf("ledger calls = %v, want one call %v", ledger.calls, want)
	}
	if pending := users.PendingIntents(ctx, 0); len(pending) != 0 {
		t.Errorf("reconciled intent must be committed, got %d pending", len(pending))
	}
}

func TestReconcileKeepsIntentOnFailure(t *testing.T) {
	r, users, ledger := newTestReconciler(t)
	ledger.fail = true
	ctx := context.Background()

	users.Create(ctx, 12345, "Test User", "+1")
	users.SetApproval(ctx, 12345, true)
	users.RecordIntent(ctx, 12345)

	r.reconcile(ctx)

	if pending := users.PendingIntents(ctx, 0); len(pending) != 1 {
		t.Errorf("failed registration must leave the intent pending, got %d", len(pending))
	}
}

func TestReconcileCommitsIntentForDeletedUser(t *testing.T) {
	r, users, ledger := newTestReconciler(t)
	ctx := context.Background()

	users.RecordIntent(ctx, 404)

	r.reconcile(ctx)

	if len(ledger.calls) != 0 {
		t.Errorf("missing user must not reach the ledger, got %v", ledger.calls)
	}
	if pending := users.PendingIntents(ctx, 0); len(pending) != 0 {
		t.Errorf("intent for a deleted user must be settled, got %d pending", len(pending))
	}
}
