// Package export renders record lists as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"CrmAPI/internal/model"

	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Filename is the attachment name for an entity export.
func Filename(e *model.Entity, now time.Time) string {
	return fmt.Sprintf("%s-%s.xlsx", e.Route, now.UTC().Format("20060102-150405"))
}

// WriteXLSX writes a single sheet named after the entity label: a bold header row
// with columns, then one row per record.
func WriteXLSX(w io.Writer, e *model.Entity, columns []string, items []model.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := e.Label
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = excelize.Cell{StyleID: bold, Value: c}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, item := range items {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = cellValue(item[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case model.Record, []model.Record, map[string]any:
		return fmt.Sprint(x)
	}
	return v
}
