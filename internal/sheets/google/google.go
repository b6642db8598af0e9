// Package google reads transaction records from a Google Sheets spreadsheet
// holding one tab per year.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"previsioni/internal/core"
	ports "previsioni/internal/sheets"
)

// Settings configures the client.
type Settings struct {
	SpreadsheetID string
	// SheetName is the tab base name without year, e.g. "Transactions".
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	// YearsBack is how many years before the current one are read.
	YearsBack int
}

// rangeReader fetches the values of an A1 range.
type rangeReader func(ctx context.Context, rng string) ([][]interface{}, error)

type Client struct {
	read          rangeReader
	spreadsheetID string
	sheetBase     string
	yearsBack     int
	now           func() time.Time
}

var (
	_ ports.TransactionSource = (*Client)(nil)
	_ ports.Pinger            = (*Client)(nil)
)

// New creates a client authenticated with a service account.
func New(ctx context.Context, s Settings) (*Client, error) {
	if strings.TrimSpace(s.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	svc, err := newSheetsService(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	id := strings.TrimSpace(s.SpreadsheetID)
	read := func(ctx context.Context, rng string) ([][]interface{}, error) {
		resp, err := svc.Spreadsheets.Values.Get(id, rng).
			ValueRenderOption("UNFORMATTED_VALUE").
			DateTimeRenderOption("FORMATTED_STRING").
			Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return resp.Values, nil
	}
	return newClient(read, s), nil
}

func newClient(read rangeReader, s Settings) *Client {
	base := strings.TrimSpace(s.SheetName)
	if base == "" {
		base = "Transactions"
	}
	yearsBack := s.YearsBack
	if yearsBack < 0 {
		yearsBack = 0
	}
	return &Client{
		read:          read,
		spreadsheetID: strings.TrimSpace(s.SpreadsheetID),
		sheetBase:     base,
		yearsBack:     yearsBack,
		now:           time.Now,
	}
}

func newSheetsService(ctx context.Context, s Settings) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(s.ServiceAccountJSON) != "":
		credentialsJSON = []byte(s.ServiceAccountJSON)
	case strings.TrimSpace(s.ServiceAccountFile) != "":
		data, err := os.ReadFile(s.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsReadonlyScope)

	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
}

func (c *Client) Name() string {
	return "sheets"
}

// Records reads every year tab in range concurrently. A tab that does not
// exist contributes no records.
func (c *Client) Records(ctx context.Context) ([]core.Record, error) {
	tabs := c.tabNames()
	results := make([][]core.Record, len(tabs))

	g, gctx := errgroup.WithContext(ctx)
	for i, tab := range tabs {
		g.Go(func() error {
			values, err := c.read(gctx, fmt.Sprintf("'%s'!A:F", tab))
			if err != nil {
				if isMissingRange(err) {
					slog.WarnContext(gctx, "Sheet tab not found, skipping", "tab", tab)
					return nil
				}
				return fmt.Errorf("read %s: %w", tab, err)
			}
			recs, err := parseRecords(values, tab)
			if err != nil {
				return err
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []core.Record
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out, nil
}

// Ping reads the header row of the current year tab.
func (c *Client) Ping(ctx context.Context) error {
	tab := yearPrefixedName(c.sheetBase, c.now().Year())
	if _, err := c.read(ctx, fmt.Sprintf("'%s'!A1:F1", tab)); err != nil && !isMissingRange(err) {
		return fmt.Errorf("read %s: %w", tab, err)
	}
	return nil
}

// tabNames lists the year tabs to read, oldest first.
func (c *Client) tabNames() []string {
	year := c.now().Year()
	names := make([]string, 0, c.yearsBack+1)
	for y := year - c.yearsBack; y <= year; y++ {
		names = append(names, yearPrefixedName(c.sheetBase, y))
	}
	// A base that already carries a year yields a single tab.
	sort.Strings(names)
	return dedupe(names)
}

func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
		return strings.Contains(strings.ToLower(gerr.Message), "unable to parse range")
	}
	return false
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

func dedupe(in []string) []string {
	out := in[:0]
	for i, v := range in {
		if i > 0 && v == in[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}
