/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package records

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrSpreadsheetNotFound is returned when no spreadsheet with the configured
// name is shared with the service account.
var ErrSpreadsheetNotFound = errors.New("spreadsheet not found")

const (
	newSheetRows    = 100
	newSheetColumns = 20
	spreadsheetMIME = "application/vnd.google-apps.spreadsheet"
)

type SheetsConfig struct {
	// CredentialsFile is a service account key in JSON form.
	CredentialsFile string
	// Spreadsheet is looked up by name through Drive unless SpreadsheetID
	// is set.
	Spreadsheet   string
	SpreadsheetID string
	// Options are appended to the client options, mostly for tests.
	Options []option.ClientOption
}

// Sheets connects to a Google Sheets spreadsheet.
type Sheets struct {
	cfg SheetsConfig
}

func NewSheets(cfg SheetsConfig) *Sheets {
	return &Sheets{cfg: cfg}
}

func (g *Sheets) Connect(ctx context.Context) (Container, error) {
	if g.cfg.CredentialsFile == "" && len(g.cfg.Options) == 0 {
		return nil, ErrNotConfigured
	}

	var opts []option.ClientOption
	if g.cfg.CredentialsFile != "" {
		key, err := os.ReadFile(g.cfg.CredentialsFile)
		if err != nil {
			return nil, errors.Wrap(err, "could not read credentials")
		}
		opts = append(opts,
			option.WithCredentialsJSON(key),
			option.WithScopes(sheets.SpreadsheetsScope, drive.DriveMetadataReadonlyScope),
		)
	}
	opts = append(opts, g.cfg.Options...)

	// The services outlive the request that dials them.
	svcCtx := context.WithoutCancel(ctx)

	svc, err := sheets.NewService(svcCtx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "could not create sheets client")
	}

	id := g.cfg.SpreadsheetID
	if id == "" {
		id, err = g.lookup(ctx, svcCtx, opts)
		if err != nil {
			return nil, err
		}
	}

	if _, err := svc.Spreadsheets.Get(id).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return nil, errors.Wrapf(err, "could not open spreadsheet %s", id)
	}

	return &spreadsheet{svc: svc, id: id}, nil
}

func (g *Sheets) lookup(ctx, svcCtx context.Context, opts []option.ClientOption) (string, error) {
	if g.cfg.Spreadsheet == "" {
		return "", errors.New("no spreadsheet name or id configured")
	}

	dsvc, err := drive.NewService(svcCtx, opts...)
	if err != nil {
		return "", errors.Wrap(err, "could not create drive client")
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		driveQuote.Replace(g.cfg.Spreadsheet), spreadsheetMIME)

	list, err := dsvc.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", errors.Wrapf(err, "could not search for spreadsheet %q", g.cfg.Spreadsheet)
	}
	if len(list.Files) == 0 {
		return "", errors.Wrapf(ErrSpreadsheetNotFound, "%q", g.cfg.Spreadsheet)
	}

	return list.Files[0].Id, nil
}

var driveQuote = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// a1 quotes a sheet title for use in A1 notation.
func a1(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

type spreadsheet struct {
	svc *sheets.Service
	id  string
}

func (s *spreadsheet) Sheet(ctx context.Context, name string, create bool, header []string) (Sheet, bool, error) {
	resp, err := s.svc.Spreadsheets.Get(s.id).
		Fields("sheets.properties(sheetId,title,gridProperties)").
		Context(ctx).Do()
	if err != nil {
		return nil, false, errors.Wrapf(err, "could not list sheets of %s", s.id)
	}

	for _, sh := range resp.Sheets {
		if sh.Properties == nil || sh.Properties.Title != name {
			continue
		}
		return s.newTab(sh.Properties), false, nil
	}

	if !create {
		return nil, false, ErrSheetNotFound
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{
					Title: name,
					GridProperties: &sheets.GridProperties{
						RowCount:    newSheetRows,
						ColumnCount: newSheetColumns,
					},
				},
			},
		}},
	}

	added, err := s.svc.Spreadsheets.BatchUpdate(s.id, req).Context(ctx).Do()
	if err != nil {
		return nil, false, errors.Wrapf(err, "could not add sheet %q", name)
	}

	props := &sheets.SheetProperties{
		Title:          name,
		GridProperties: &sheets.GridProperties{RowCount: newSheetRows, ColumnCount: newSheetColumns},
	}
	if len(added.Replies) > 0 && added.Replies[0].AddSheet != nil && added.Replies[0].AddSheet.Properties != nil {
		props = added.Replies[0].AddSheet.Properties
	}

	t := s.newTab(props)
	if len(header) > 0 {
		if err := t.Write(ctx, [][]string{header}); err != nil {
			return nil, false, err
		}
	}

	return t, true, nil
}

func (s *spreadsheet) newTab(props *sheets.SheetProperties) *tab {
	t := &tab{svc: s.svc, spreadsheetID: s.id, sheetID: props.SheetId, title: props.Title}
	if props.GridProperties != nil {
		t.rows = props.GridProperties.RowCount
		t.columns = props.GridProperties.ColumnCount
	}
	return t
}

type tab struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetID       int64
	title         string
	rows          int64
	columns       int64
}

func (t *tab) Rows(ctx context.Context) ([][]string, error) {
	resp, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, a1(t.title)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	rows := make([][]string, len(resp.Values))
	for i, values := range resp.Values {
		row := make([]string, len(values))
		for j, v := range values {
			row[j] = text(v)
		}
		rows[i] = row
	}

	return rows, nil
}

func (t *tab) Clear(ctx context.Context) error {
	_, err := t.svc.Spreadsheets.Values.Clear(t.spreadsheetID, a1(t.title), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// Write puts rows at A1 in one call, growing the grid first when needed.
func (t *tab) Write(ctx context.Context, rows [][]string) error {
	width := 0
	values := make([][]any, len(rows))
	for i, row := range rows {
		width = max(width, len(row))
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		values[i] = cells
	}

	if err := t.grow(ctx, int64(len(rows)), int64(width)); err != nil {
		return err
	}

	_, err := t.svc.Spreadsheets.Values.Update(t.spreadsheetID, a1(t.title)+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()

	return err
}

func (t *tab) grow(ctx context.Context, rows, columns int64) error {
	var reqs []*sheets.Request

	if t.rows > 0 && rows > t.rows {
		reqs = append(reqs, &sheets.Request{AppendDimension: &sheets.AppendDimensionRequest{
			SheetId:   t.sheetID,
			Dimension: "ROWS",
			Length:    rows - t.rows,
		}})
	}
	if t.columns > 0 && columns > t.columns {
		reqs = append(reqs, &sheets.Request{AppendDimension: &sheets.AppendDimensionRequest{
			SheetId:   t.sheetID,
			Dimension: "COLUMNS",
			Length:    columns - t.columns,
		}})
	}
	if len(reqs) == 0 {
		return nil
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}
	if _, err := t.svc.Spreadsheets.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return errors.Wrapf(err, "could not grow sheet %q", t.title)
	}

	t.rows = max(t.rows, rows)
	t.columns = max(t.columns, columns)

	return nil
}
