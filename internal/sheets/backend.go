package sheets

import (
	"context"
	"fmt"

	gsheets "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"
)

// ValuesBackend is the slice of the Sheets API the client needs. Tests swap
// in an in-memory worksheet.
type ValuesBackend interface {
	Get(ctx context.Context, readRange string) ([][]interface{}, error)
	Append(ctx context.Context, writeRange string, row []interface{}) error
}

type googleBackend struct {
	svc           *gsheets.Service
	spreadsheetID string
}

func newGoogleBackend(ctx context.Context, credentialsPath, spreadsheetID string) (*googleBackend, error) {
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &googleBackend{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (g *googleBackend) Get(ctx context.Context, readRange string) ([][]interface{}, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("values get %q: %w", readRange, err)
	}
	return resp.Values, nil
}

func (g *googleBackend) Append(ctx context.Context, writeRange string, row []interface{}) error {
	body := &gsheets.ValueRange{Values: [][]interface{}{row}}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, writeRange, body).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("values append %q: %w", writeRange, err)
	}
	return nil
}
