package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/models"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheets is a Table backed by one Google spreadsheet; each table name is a
// sheet (tab) inside it.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewSheets authenticates with a service account: inline JSON credentials
// win over the credentials file.
func NewSheets(ctx context.Context, cfg config.SheetConfig) (*Sheets, error) {
	var cred option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		cred = option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	case cfg.CredentialsFile != "":
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, models.NewMonitorError(models.ErrCodeSinkAuth, "credentials file not found: "+cfg.CredentialsFile, err)
		}
		cred = option.WithCredentialsFile(cfg.CredentialsFile)
	default:
		return nil, models.NewMonitorError(models.ErrCodeSinkAuth, "no sheets credentials configured", nil)
	}
	return newSheets(ctx, cfg.SpreadsheetID, cred, option.WithScopes(sheets.SpreadsheetsScope))
}

func newSheets(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Sheets, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, models.NewMonitorError(models.ErrCodeSinkAuth, "sheets authentication failed", err)
	}
	return &Sheets{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// EnsureTable adds the sheet when it is missing and writes the header when
// its first cell is empty.
func (s *Sheets) EnsureTable(ctx context.Context, name string, header []any) error {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return apiError("read spreadsheet", err)
	}

	exists := false
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == name {
			exists = true
			break
		}
	}
	if !exists {
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			}},
		}
		if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return apiError("add sheet "+name, err)
		}
		slog.Info("sheet created", "sheet", name)
	}

	first, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, a1(name, "A1:A1")).Context(ctx).Do()
	if err != nil {
		return apiError("read header", err)
	}
	if len(first.Values) > 0 && len(first.Values[0]) > 0 {
		return nil
	}

	vr := &sheets.ValueRange{Values: [][]any{header}}
	if _, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, a1(name, "A1"), vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return apiError("write header", err)
	}
	slog.Info("sheet header written", "sheet", name)
	return nil
}

// AppendRow inserts values as a new row after the last non-empty one.
func (s *Sheets) AppendRow(ctx context.Context, name string, values []any) error {
	vr := &sheets.ValueRange{Values: [][]any{values}}
	if _, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, a1(name, ""), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do(); err != nil {
		return apiError("append row", err)
	}
	return nil
}

// a1 builds an A1 range on a quoted sheet name. An empty cells part
// addresses the whole sheet, which spans every column of the row.
func a1(sheet, cells string) string {
	q := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	if cells == "" {
		return q
	}
	return q + "!" + cells
}

// apiError classifies Sheets API failures: rejected credentials are auth
// errors, everything else is a write error.
func apiError(op string, err error) *models.MonitorError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		return models.NewMonitorError(models.ErrCodeSinkAuth, op, err)
	}
	return models.NewMonitorError(models.ErrCodeSinkWrite, fmt.Sprintf("sheets: %s", op), err)
}
