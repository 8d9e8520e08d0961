package sheets

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"
)

// fakeBackend is an in-memory worksheet.
type fakeBackend struct {
	rows      [][]interface{}
	appended  [][]interface{}
	getErr    error
	appendErr error
}

func (f *fakeBackend) Get(_ context.Context, readRange string) ([][]interface{}, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if strings.HasSuffix(readRange, "!A:A") {
		col := make([][]interface{}, 0, len(f.rows))
		for _, row := range f.rows {
			if len(row) > 0 {
				col = append(col, []interface{}{row[0]})
			} else {
				col = append(col, []interface{}{})
			}
		}
		return col, nil
	}
	if strings.HasSuffix(readRange, "!A1") {
		if len(f.rows) > 0 && len(f.rows[0]) > 0 {
			return [][]interface{}{{f.rows[0][0]}}, nil
		}
		return nil, nil
	}
	return f.rows, nil
}

func (f *fakeBackend) Append(_ context.Context, _ string, row []interface{}) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.rows = append(f.rows, row)
	f.appended = append(f.appended, row)
	return nil
}

func headerRow() []interface{} {
	return []interface{}{"ID", "Имя", "Контакт", "Username", "Взносы"}
}

func newTestClient(backend *fakeBackend) *Client {
	return NewClientWithBackend(backend, "Лист1", time.Second, nil, 0)
}

func assertBalance(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("balance = %v, want %v", got, want)
	}
}

func TestGetBalanceSumsContributionCells(t *testing.T) {
	backend := &fakeBackend{rows: [][]interface{}{
		headerRow(),
		{"100500", "Test User", "+1234567890", "@testuser", "100.50", "200.75", "50.25"},
	}}
	client := newTestClient(backend)

	assertBalance(t, client.GetBalance(context.Background(), "100500"), 351.50)
}

func TestGetBalanceSkipsMalformedCells(t *testing.T) {
	backend := &fakeBackend{rows: [][]interface{}{
		headerRow(),
		{"12345", "Test", "+1", "@u", "100,50", "text", "200.75", ""},
	}}
	client := newTestClient(backend)

	assertBalance(t, client.GetBalance(context.Background(), "12345"), 301.25)
}

func TestGetBalanceNegativeCells(t *testing.T) {
	backend := &fakeBackend{rows: [][]interface{}{
		headerRow(),
		{"12345", "Test", "+1", "@u", "500", "-150.25"},
	}}
	client := newTestClient(backend)

	assertBalance(t, client.GetBalance(context.Background(), "12345"), 349.75)
}

func TestGetBalanceMetadataOnly(t *testing.T) {
	backend := &fakeBackend{rows: [][]interface{}{
		headerRow(),
		{"12345", "Test", "+1", "@u"},
	}}
	client := newTestClient(backend)

	assertBalance(t, client.GetBalance(context.Background(), "12345"), 0.0)
}

func TestGetBalanceUnknownPartner(t *testing.T) {
	backend := &fakeBackend{rows: [][]interface{}{headerRow()}}
	client := newTestClient(backend)

	assertBalance(t, client.GetBalance(context.Background(), "404"), 0.0)
}

func TestGetBalanceBackendError(t *testing.T) {
	backend := &fakeBackend{getErr: errors.New("worksheet unavailable")}
	client := newTestClient(backend)

	assertBalance(t, client.GetBalance(context.Background(), "12345"), 0.0)
}

func TestRegisterPartnerAppendsRow(t *testing.T) {
	backend := &fakeBackend{rows: [][]interface{}{headerRow()}}
	client := newTestClient(backend)

	if !client.RegisterPartner(context.Background(), "12345", "Test User", "+1234567890", "testuser", "") {
		t.Fatal("expected registration to succeed")
	}

	want := []interface{}{"12345", "Test User", "+1234567890", "@testuser", "-"}
	if len(backend.appended) != 1 || !reflect.DeepEqual(backend.appended[0], want) {
		t.Errorf("appended rows = %v, want one row %v", backend.appended, want)
	}
}

func TestRegisterPartnerIdempotent(t *testing.T) {
	backend := &fakeBackend{rows: [][]interface{}{headerRow()}}
	client := newTestClient(backend)
	ctx := context.Background()

	if !client.RegisterPartner(ctx, "12345", "Test User", "+1", "u", "") {
		t.Fatal("expected first registration to succeed")
	}
	if !client.RegisterPartner(ctx, "12345", "Other Name", "+2", "other", "") {
		t.Fatal("expected repeat registration to report success")
	}

	if len(backend.appended) != 1 {
		t.Errorf("expected a single appended row, got %d", len(backend.appended))
	}
}

func TestRegisterPartnerPlaceholders(t *testing.T) {
	backend := &fakeBackend{rows: [][]interface{}{headerRow()}}
	client := newTestClient(backend)

	if !client.RegisterPartner(context.Background(), "777", "", " ", "", "") {
		t.Fatal("expected registration to succeed")
	}

	want := []interface{}{"777", "-", "-", "-", "-"}
	if !reflect.DeepEqual(backend.appended[0], want) {
		t.Errorf("appended row = %v, want %v", backend.appended[0], want)
	}
}

func TestRegisterPartnerKeepsUsernamePrefix(t *testing.T) {
	backend := &fakeBackend{rows: [][]interface{}{headerRow()}}
	client := newTestClient(backend)

	client.RegisterPartner(context.Background(), "777", "N", "+1", "@already", "site")

	got := backend.appended[0][3]
	if got != "@already" {
		t.Errorf("username cell = %v, want @already", got)
	}
	if backend.appended[0][4] != "site" {
		t.Errorf("source cell = %v, want site", backend.appended[0][4])
	}
}

func TestRegisterPartnerBackendErrors(t *testing.T) {
	client := newTestClient(&fakeBackend{getErr: errors.New("read failed")})
	if client.RegisterPartner(context.Background(), "1", "N", "+1", "u", "") {
		t.Error("expected failure when the key column cannot be read")
	}

	client = newTestClient(&fakeBackend{
		rows:      [][]interface{}{headerRow()},
		appendErr: errors.New("append failed"),
	})
	if client.RegisterPartner(context.Background(), "1", "N", "+1", "u", "") {
		t.Error("expected failure when the append fails")
	}
}

func TestTestConnection(t *testing.T) {
	client := newTestClient(&fakeBackend{rows: [][]interface{}{headerRow()}})
	if !client.TestConnection(context.Background()) {
		t.Error("expected probe to succeed")
	}

	client = newTestClient(&fakeBackend{getErr: errors.New("unreachable")})
	if client.TestConnection(context.Background()) {
		t.Error("expected probe to fail")
	}
}

func TestWorksheetStats(t *testing.T) {
	backend := &fakeBackend{rows: [][]interface{}{
		headerRow(),
		{"1", "Alice"},
		{"2", "Bob"},
		{""},
		{},
	}}
	client := newTestClient(backend)

	stats, ok := client.WorksheetStats(context.Background())
	if !ok {
		t.Fatal("expected stats to be available")
	}
	if stats.RowCount != 5 {
		t.Errorf("row count = %d, want 5", stats.RowCount)
	}
	if stats.PartnerCount != 2 {
		t.Errorf("partner count = %d, want 2", stats.PartnerCount)
	}

	client = newTestClient(&fakeBackend{getErr: errors.New("unreachable")})
	if _, ok := client.WorksheetStats(context.Background()); ok {
		t.Error("expected stats to fail on backend error")
	}
}
