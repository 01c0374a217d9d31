package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cashbook/internal/core"
	ports "cashbook/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	alertsSheet   string
	// Base name without year; the posting's year is prefixed.
	postingsBase string
	ratesSheet   string
}

var (
	_ ports.AlertWriter   = (*Client)(nil)
	_ ports.PostingWriter = (*Client)(nil)
	_ ports.RateReader    = (*Client)(nil)
)

// Config selects the spreadsheet, its sheets and the service account.
type Config struct {
	SpreadsheetID   string
	AlertsSheet     string
	PostingsSheet   string
	RatesSheet      string
	CredentialsJSON string
	CredentialsFile string

	// OAuth user credentials, used instead of the service account when
	// OAuthTokenFile is set.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

// ConfigFromEnv reads GOOGLE_SPREADSHEET_ID, the optional sheet names
// GOOGLE_ALERTS_SHEET_NAME (default "Alerts"), GOOGLE_POSTINGS_SHEET_NAME
// (default "Postings") and GOOGLE_RATES_SHEET_NAME (default "Rates"), and the
// service account from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS. A user token saved by
// "cashbookctl sheets-auth" is picked up from GOOGLE_OAUTH_TOKEN_FILE.
func ConfigFromEnv() Config {
	cfg := Config{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		AlertsSheet:     strings.TrimSpace(os.Getenv("GOOGLE_ALERTS_SHEET_NAME")),
		PostingsSheet:   strings.TrimSpace(os.Getenv("GOOGLE_POSTINGS_SHEET_NAME")),
		RatesSheet:      strings.TrimSpace(os.Getenv("GOOGLE_RATES_SHEET_NAME")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
		OAuthClientJSON: strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON")),
		OAuthClientFile: strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE")),
		OAuthTokenFile:  strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")),
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" {
		cfg.CredentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return cfg
}

func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, ConfigFromEnv())
}

// New creates a Sheets client authenticated with a saved OAuth user token
// when one is configured, otherwise with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	var auth goption.ClientOption
	if cfg.OAuthTokenFile != "" {
		ts, err := oauthTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		auth = goption.WithTokenSource(ts)
	} else {
		credentials, err := readCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		auth = goption.WithCredentialsJSON(credentials)
	}
	svc, err := gsheet.NewService(ctx, auth, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(svc, cfg), nil
}

func newClient(svc *gsheet.Service, cfg Config) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		alertsSheet:   orDefault(cfg.AlertsSheet, "Alerts"),
		postingsBase:  orDefault(cfg.PostingsSheet, "Postings"),
		ratesSheet:    orDefault(cfg.RatesSheet, "Rates"),
	}
}

func readCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	switch {
	case cfg.CredentialsJSON != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", cfg.CredentialsFile)
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendAlert adds one row to the alerts sheet.
func (c *Client) AppendAlert(ctx context.Context, a ports.AlertRow) (string, error) {
	if a.BudgetID == "" {
		return "", errors.New("alert without budget id")
	}
	return c.append(ctx, c.alertsSheet, "A:I", alertValues(a))
}

// AppendPosting adds one row to the postings sheet of the posting's year.
func (c *Client) AppendPosting(ctx context.Context, p ports.PostingRow) (string, error) {
	if p.TransactionID == "" {
		return "", errors.New("posting without transaction id")
	}
	if err := p.Date.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	sheet := yearPrefixedName(c.postingsBase, p.Date.Year())
	return c.append(ctx, sheet, "A:J", postingValues(p))
}

func (c *Client) append(ctx context.Context, sheet, cols string, row []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", sheet, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// ReadRates reads the rates sheet. Rows that do not hold a valid rate are
// skipped with a warning.
func (c *Client) ReadRates(ctx context.Context, ownerID string) ([]core.FxRate, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:C", c.ratesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	rates, skipped, err := parseRates(resp.Values, ownerID)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped invalid rate rows", "sheet", c.ratesSheet, "skipped", skipped)
	}
	return rates, nil
}

func alertValues(a ports.AlertRow) []any {
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	return []any{
		at.UTC().Format(time.RFC3339),
		a.Month,
		a.OwnerID,
		a.Category,
		a.Spent,
		a.Limit,
		a.Currency,
		a.Pct,
		a.BudgetID,
	}
}

func postingValues(p ports.PostingRow) []any {
	return []any{
		p.Date.String(),
		p.Kind,
		p.Amount,
		p.Currency,
		p.CategoryID,
		p.Note,
		p.OwnerID,
		p.AccountID,
		p.Source,
		p.TransactionID,
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
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
