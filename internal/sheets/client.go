// Package sheets adapts the shared partner spreadsheet into two operations:
// register a partner row and compute a partner's balance. The worksheet is
// human-edited, so every read is defensive: malformed rows are skipped and
// every failure degrades to a safe default instead of propagating.
//
// Worksheet layout (a compatibility contract, do not renumber):
// row 1 is the header; column 1 is the partner key; columns 2-4 are
// metadata; columns 5 and beyond are open-ended numeric contribution cells.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lethai-bot/internal/config"
)

// metadataColumns is the number of reserved leading columns (key + name +
// contact + username); contribution cells start right after them.
const metadataColumns = 4

const placeholder = "-"

type Stats struct {
	RowCount     int
	PartnerCount int
}

type Client struct {
	backend   ValuesBackend
	sheetName string
	timeout   time.Duration

	cache    *redis.Client
	cacheTTL time.Duration

	// One lock per partner code serializes the find-or-append pair in
	// RegisterPartner; without it two concurrent registrations could both
	// miss the existence check and append duplicate rows.
	locks sync.Map
}

// NewClient builds a client backed by the Google Sheets API. cache may be
// nil; balances are then always read from the worksheet.
func NewClient(ctx context.Context, cfg *config.Config, cache *redis.Client) (*Client, error) {
	backend, err := newGoogleBackend(ctx, cfg.CredentialsPath, cfg.SheetsID)
	if err != nil {
		return nil, err
	}
	return NewClientWithBackend(backend, cfg.SheetName, cfg.SheetsTimeout, cache, cfg.BalanceCacheTTL), nil
}

// NewClientWithBackend builds a client over an arbitrary values backend.
func NewClientWithBackend(backend ValuesBackend, sheetName string, timeout time.Duration, cache *redis.Client, cacheTTL time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		backend:   backend,
		sheetName: sheetName,
		timeout:   timeout,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

// RegisterPartner appends a partner row unless the code already has one;
// registering twice is not an error. Missing optional fields become "-" and
// the username carries a leading "@" exactly once.
func (c *Client) RegisterPartner(ctx context.Context, partnercode, name, contact, username, referralSource string) bool {
	mu := c.lockFor(partnercode)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	keys, err := c.backend.Get(ctx, c.sheetName+"!A:A")
	if err != nil {
		zap.L().Error("Failed to read partner column", zap.String("partnercode", partnercode), zap.Error(err))
		return false
	}
	for i, row := range keys {
		if len(row) > 0 && cellString(row[0]) == partnercode {
			zap.L().Info("Partnercode already registered",
				zap.String("partnercode", partnercode), zap.Int("row", i+1))
			return true
		}
	}

	row := []interface{}{
		partnercode,
		safeValue(name),
		safeValue(contact),
		formatUsername(username),
		safeValue(referralSource),
	}
	if err := c.backend.Append(ctx, c.sheetName, row); err != nil {
		zap.L().Error("Failed to append partner row", zap.String("partnercode", partnercode), zap.Error(err))
		return false
	}

	zap.L().Info("Partner registered in worksheet", zap.String("partnercode", partnercode))
	return true
}

// GetBalance sums the contribution cells of the partner's row. Any failure
// (absent code, unreachable worksheet, timeout) yields 0.0. A cell counts
// iff it parses as a number after normalizing a comma decimal separator;
// everything else is skipped silently. Negative cells subtract.
func (c *Client) GetBalance(ctx context.Context, partnercode string) float64 {
	if balance, ok := c.cachedBalance(ctx, partnercode); ok {
		return balance
	}

	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.backend.Get(tctx, c.sheetName)
	if err != nil {
		zap.L().Error("Failed to read worksheet", zap.String("partnercode", partnercode), zap.Error(err))
		return 0.0
	}

	for _, row := range rows {
		if len(row) == 0 || cellString(row[0]) != partnercode {
			continue
		}
		balance := 0.0
		if len(row) > metadataColumns {
			for _, cell := range row[metadataColumns:] {
				if v, ok := parseAmount(cellString(cell)); ok {
					balance += v
				}
			}
		}
		zap.L().Info("Balance computed", zap.String("partnercode", partnercode), zap.Float64("balance", balance))
		c.storeBalance(ctx, partnercode, balance)
		return balance
	}

	zap.L().Warn("Partnercode not found in worksheet", zap.String("partnercode", partnercode))
	return 0.0
}

// TestConnection probes read access with a single fixed cell. Health signal
// only.
func (c *Client) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.backend.Get(ctx, c.sheetName+"!A1"); err != nil {
		zap.L().Error("Worksheet connection test failed", zap.Error(err))
		return false
	}
	return true
}

// WorksheetStats counts rows (header included) and partners (non-empty key
// cells below the header).
func (c *Client) WorksheetStats(ctx context.Context) (Stats, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rows, err := c.backend.Get(ctx, c.sheetName)
	if err != nil {
		zap.L().Error("Failed to read worksheet stats", zap.Error(err))
		return Stats{}, false
	}

	stats := Stats{RowCount: len(rows)}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) > 0 && cellString(row[0]) != "" {
			stats.PartnerCount++
		}
	}
	return stats, true
}

func (c *Client) lockFor(partnercode string) *sync.Mutex {
	v, _ := c.locks.LoadOrStore(partnercode, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (c *Client) cachedBalance(ctx context.Context, partnercode string) (float64, bool) {
	if c.cache == nil {
		return 0, false
	}
	raw, err := c.cache.Get(ctx, balanceKey(partnercode)).Result()
	if err != nil {
		return 0, false
	}
	balance, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return balance, true
}

func (c *Client) storeBalance(ctx context.Context, partnercode string, balance float64) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	if err := c.cache.Set(ctx, balanceKey(partnercode), strconv.FormatFloat(balance, 'f', -1, 64), c.cacheTTL).Err(); err != nil {
		zap.L().Warn("Failed to cache balance", zap.String("partnercode", partnercode), zap.Error(err))
	}
}

func balanceKey(partnercode string) string {
	return "balance_" + partnercode
}

// parseAmount reports whether a cell holds a contribution value. A single
// comma decimal separator is normalized to a period before parsing.
func parseAmount(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func safeValue(val string) string {
	val = strings.TrimSpace(val)
	if val == "" {
		return placeholder
	}
	return val
}

func formatUsername(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return placeholder
	}
	if !strings.HasPrefix(username, "@") {
		return "@" + username
	}
	return username
}

func cellString(cell interface{}) string {
	if cell == nil {
		return ""
	}
	switch v := cell.(type) {
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
