package health

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lethai-bot/internal/models"
	"lethai-bot/internal/sheets"
	"lethai-bot/internal/store"
)

type fakeProbe struct {
	connOK  bool
	stats   sheets.Stats
	statsOK bool
}

func (f *fakeProbe) TestConnection(context.Context) bool { return f.connOK }

func (f *fakeProbe) WorksheetStats(context.Context) (sheets.Stats, bool) {
	return f.stats, f.statsOK
}

func newTestUsers(t *testing.T) *store.Users {
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
	return store.NewUsers(db)
}

func findCheck(t *testing.T, report Report, name string) Check {
	t.Helper()
	for _, check := range report.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("check %q missing from report", name)
	return Check{}
}

func TestRunAllHealthy(t *testing.T) {
	users := newTestUsers(t)
	ctx := context.Background()

	users.Create(ctx, 1, "Alice", "+1")
	users.Create(ctx, 2, "Bob", "+2")
	users.SetApproval(ctx, 2, true)

	probe := &fakeProbe{connOK: true, stats: sheets.Stats{RowCount: 3, PartnerCount: 2}, statsOK: true}
	report := NewChecker(users, probe, nil).Run(ctx)

	if report.Status != StatusHealthy {
		t.Errorf("report status = %s, want healthy", report.Status)
	}
	if report.Total != 2 || report.Healthy != 2 {
		t.Errorf("counts = %d/%d, want 2/2 with redis skipped", report.Healthy, report.Total)
	}

	db := findCheck(t, report, "database")
	if db.Details["pending_users"] != "1" || db.Details["approved_users"] != "1" || db.Details["total_users"] != "2" {
		t.Errorf("unexpected database details: %v", db.Details)
	}

	ledger := findCheck(t, report, "google_sheets")
	if ledger.Status != StatusHealthy || ledger.Details["partner_count"] != "2" {
		t.Errorf("unexpected ledger check: %+v", ledger)
	}

	if redis := findCheck(t, report, "redis"); redis.Status != StatusSkipped {
		t.Errorf("redis check status = %s, want skipped", redis.Status)
	}
}

func TestRunLedgerDown(t *testing.T) {
	users := newTestUsers(t)

	probe := &fakeProbe{connOK: false}
	report := NewChecker(users, probe, nil).Run(context.Background())

	if report.Status != StatusError {
		t.Errorf("report status = %s, want error", report.Status)
	}
	if ledger := findCheck(t, report, "google_sheets"); ledger.Status != StatusError {
		t.Errorf("ledger check status = %s, want error", ledger.Status)
	}
	if report.Healthy != 1 || report.Total != 2 {
		t.Errorf("counts = %d/%d, want 1/2", report.Healthy, report.Total)
	}
}
