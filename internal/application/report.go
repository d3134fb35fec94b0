package application

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	reportPlacesSheet  = "Places"
	reportHistorySheet = "History"
)

// moderationReport is the data rendered into the moderation workbook.
type moderationReport struct {
	places  []Place
	records []ModerationRecord
	owners  map[string]User
	names   map[string]string
	format  func(Place) []string
	zone    *time.Location
}

func (r moderationReport) render() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportPlacesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(reportHistorySheet); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, fmt.Errorf("create wrap style: %w", err)
	}

	placeHeader := []any{"Name", "Category", "City", "Owner", "Status", "Submitted", "Schedules"}
	if err := r.writeHeader(f, reportPlacesSheet, placeHeader, headerStyle); err != nil {
		return nil, err
	}
	for i, p := range r.places {
		row := []any{
			p.Name,
			string(p.Category),
			p.City,
			r.ownerLabel(p.OwnerID),
			string(p.Status),
			r.timestamp(p.CreatedAt),
			strings.Join(r.format(p), "\n"),
		}
		if err := f.SetSheetRow(reportPlacesSheet, cell("A", i+2), &row); err != nil {
			return nil, fmt.Errorf("write place row: %w", err)
		}
		if err := f.SetCellStyle(reportPlacesSheet, cell("G", i+2), cell("G", i+2), wrapStyle); err != nil {
			return nil, fmt.Errorf("style place row: %w", err)
		}
	}
	for col, width := range map[string]float64{"A": 32, "B": 14, "C": 18, "D": 28, "E": 12, "F": 20, "G": 48} {
		if err := f.SetColWidth(reportPlacesSheet, col, col, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	historyHeader := []any{"Place", "Decision", "Reason", "Moderator", "Decided"}
	if err := r.writeHeader(f, reportHistorySheet, historyHeader, headerStyle); err != nil {
		return nil, err
	}
	for i, rec := range r.records {
		reason := ""
		if rec.Reason != nil {
			reason = *rec.Reason
		}
		placeName := r.names[rec.PlaceID]
		if placeName == "" {
			placeName = rec.PlaceID
		}
		row := []any{placeName, string(rec.Decision), reason, r.ownerLabel(rec.ModeratorID), r.timestamp(rec.CreatedAt)}
		if err := f.SetSheetRow(reportHistorySheet, cell("A", i+2), &row); err != nil {
			return nil, fmt.Errorf("write history row: %w", err)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (r moderationReport) writeHeader(f *excelize.File, sheet string, header []any, style int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (r moderationReport) ownerLabel(id string) string {
	if id == "" {
		return ""
	}
	if u, ok := r.owners[id]; ok {
		return fmt.Sprintf("%s <%s>", u.DisplayName, u.Email)
	}
	return id
}

func (r moderationReport) timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	zone := r.zone
	if zone == nil {
		zone = time.UTC
	}
	return t.In(zone).Format("2006-01-02 15:04")
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
