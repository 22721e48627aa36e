package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/angelmondragon/rentals-backend/pkg/config"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
)

var errSpreadsheetIDRequired = errors.New("spreadsheet id is required")

// Client reads cell values from one spreadsheet with read-only scope.
type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
}

// NewClient builds a Sheets v4 client bound to cfg.SpreadsheetID.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.SheetsConfig, logg *logger.Logger) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errSpreadsheetIDRequired
	}
	svc, err := gsheets.NewService(ctx, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "spreadsheetId", id), "sheets client initialized")
	}
	return &Client{svc: svc, spreadsheetID: id}, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsReadonlyScope)}
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	return opts
}

// SheetTitles lists the tab names in display order.
func (c *Client) SheetTitles(ctx context.Context) ([]string, error) {
	doc, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get spreadsheet: %w", err)
	}
	titles := make([]string, 0, len(doc.Sheets))
	for _, sheet := range doc.Sheets {
		if sheet.Properties != nil {
			titles = append(titles, sheet.Properties.Title)
		}
	}
	return titles, nil
}

// Values returns the formatted cells of a whole tab, row by row.
func (c *Client) Values(ctx context.Context, sheet string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quoteSheet(sheet)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get values %q: %w", sheet, err)
	}
	return stringRows(resp.Values), nil
}

// quoteSheet renders a tab name as an A1 range; names with spaces or quotes
// need single quotes.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func stringRows(values [][]interface{}) [][]string {
	rows := make([][]string, 0, len(values))
	for _, raw := range values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			if cell == nil {
				row = append(row, "")
				continue
			}
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows
}
