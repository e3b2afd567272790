// Package google appends bill registers to a Google Sheets spreadsheet using
// a service account or a stored OAuth user token.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"accounting/internal/core"
	"accounting/internal/export"
	"accounting/internal/log"
)

var _ export.BillWriter = (*Client)(nil)

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base name without year (e.g. "Bills"); the year of the export is prefixed.
	sheetBase string
	now       func() time.Time
	logger    *log.Logger
}

// New creates a Sheets client. Service account credentials are preferred,
// inline JSON over the file; otherwise a stored OAuth user token is used.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentExport)

	var auth goption.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		auth = goption.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	case cfg.CredentialsFile != "":
		logger.InfoContext(ctx, "Reading service account credentials", "path", cfg.CredentialsFile)
		credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		auth = goption.WithCredentialsJSON(credentialsJSON)
	case cfg.OAuthClientFile != "" && cfg.OAuthTokenFile != "":
		logger.InfoContext(ctx, "Using stored OAuth token", "path", cfg.OAuthTokenFile)
		ts, err := TokenSourceFromFiles(ctx, cfg.OAuthClientFile, cfg.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		auth = goption.WithTokenSource(ts)
	default:
		return nil, errors.New("missing credentials (set GOOGLE_CREDENTIALS_JSON, GOOGLE_CREDENTIALS_FILE or an OAuth client and token)")
	}

	svc, err := gsheet.NewService(ctx, auth, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Bills"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetBase:     base,
		now:           time.Now,
		logger:        logger,
	}
}

func (c *Client) sheetName() string {
	return yearPrefixedName(c.sheetBase, c.now().Year())
}

// AppendBills writes the bills below the last used row. An empty sheet gets
// the header first.
func (c *Client) AppendBills(ctx context.Context, bills []core.Bill) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(bills) == 0 {
		return "", nil
	}
	sheet := c.sheetName()

	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get sheet dimensions for %s: %w", sheet, err)
	}

	values := make([][]any, 0, len(bills)+1)
	nextRow := len(resp.Values) + 1
	if len(resp.Values) == 0 {
		header := make([]any, len(export.Header))
		for i, h := range export.Header {
			header[i] = h
		}
		values = append(values, header)
	}
	for _, b := range bills {
		values = append(values, export.Row(b))
	}

	lastRow := nextRow + len(values) - 1
	dataRange := fmt.Sprintf("%s!A%d:H%d", sheet, nextRow, lastRow)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", dataRange, err)
	}

	firstBillRow := lastRow - len(bills) + 1
	ref := fmt.Sprintf("%s!A%d:H%d", sheet, firstBillRow, lastRow)
	c.logger.InfoContext(ctx, "Bills exported to sheet", "range", ref, "count", len(bills))
	return ref, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
