// Package export renders booking reports as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"learnhub/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Bookings"

var columns = []struct {
	title string
	width float64
}{
	{"Booking ID", 12},
	{"Kind", 18},
	{"Session", 30},
	{"Date", 14},
	{"Start", 10},
	{"End", 10},
	{"Name", 25},
	{"Email", 30},
	{"Phone", 18},
	{"Status", 14},
	{"Booked At", 20},
}

// WriteBookingsXLSX writes one row per booking, in the order given, under a
// styled period header.
func WriteBookingsXLSX(w io.Writer, from, to time.Time, bookings []*models.BookingWithSlot) error {
	f, err := build(from, to, bookings)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveBookingsXLSX stores the report under dir and returns its path.
func SaveBookingsXLSX(dir string, from, to time.Time, bookings []*models.BookingWithSlot) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := build(from, to, bookings)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(from, to))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

// FileName is the download name for a report covering from..to.
func FileName(from, to time.Time) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", from.Format(models.DateLayout), to.Format(models.DateLayout))
}

func build(from, to time.Time, bookings []*models.BookingWithSlot) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format(models.DateLayout), to.Format(models.DateLayout)))
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, c := range columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "2"
		_ = f.SetCellValue(sheetName, cell, c.title)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
		_ = f.SetColWidth(sheetName, col, col, c.width)
	}

	for i, b := range bookings {
		row := []interface{}{
			b.ID,
			string(b.Slot.Kind),
			b.Slot.Title,
			b.Slot.Date.Format(models.DateLayout),
			b.Slot.StartTime,
			b.Slot.EndTime,
			b.Name,
			b.Email,
			b.Phone,
			string(b.Status),
			b.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", i+3, err)
		}
	}

	return f, nil
}
