package attendance

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{"User", "Class", "Schedule", "Status", "Logged at"}

// ExportToday renders today's attendance as an .xlsx workbook and returns it
// with a suggested filename.
func (r *Recorder) ExportToday(ctx context.Context) (*bytes.Buffer, string, error) {
	rows, err := r.Status(ctx)
	if err != nil {
		return nil, "", err
	}
	day := r.Today()
	buf, err := renderWorkbook(day, rows, r.clock.Now().Location())
	if err != nil {
		return nil, "", err
	}
	return buf, fmt.Sprintf("attendance-%s.xlsx", day), nil
}

func renderWorkbook(day string, rows []StatusRow, loc *time.Location) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := day
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	for i, row := range rows {
		values := []any{
			row.UserID,
			row.ClassCode,
			row.ScheduleID,
			row.Status,
			row.LogTime.In(loc).Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	_ = f.SetColWidth(sheet, "A", "E", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &buf, nil
}
