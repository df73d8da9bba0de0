package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"staybook/internal/models"

	"github.com/xuri/excelize/v2"
)

// SheetName лист с бронированиями в выгрузке
const SheetName = "Reservations"

var headers = []string{
	"ID", "User ID", "Accommodation ID", "Room ID", "Room Type",
	"Price", "Start", "End", "Nights", "Status", "Created At",
}

var columnWidths = map[string]float64{
	"A": 8, "B": 10, "C": 16, "D": 10, "E": 18,
	"F": 10, "G": 18, "H": 18, "I": 8, "J": 12, "K": 20,
}

// Build renders reservation views into a single-sheet workbook. The
// caller owns the returned file and must Close it.
func Build(views []*models.ReservationView) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	canceledStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle)

	for i, v := range views {
		row := i + 2
		values := []interface{}{
			v.ID, v.UserID, v.AccommodationID, v.RoomID, v.RoomType,
			v.RoomPrice,
			v.StartDate.Format(models.DateTimeLayout),
			v.EndDate.Format(models.DateTimeLayout),
			nights(v.StartDate, v.EndDate),
			v.Status,
			v.CreatedAt.Format("02.01.2006 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("error writing row %d: %w", row, err)
		}
		if v.IsCanceled() {
			_ = f.SetCellStyle(SheetName, cell, fmt.Sprintf("%s%d", lastCol, row), canceledStyle)
		}
	}

	for col, width := range columnWidths {
		_ = f.SetColWidth(SheetName, col, col, width)
	}

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, views []*models.ReservationView) error {
	f, err := Build(views)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteTo(w)
	return err
}

// Save writes the workbook into dir and returns the file path.
func Save(dir string, views []*models.ReservationView, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := Build(views)
	if err != nil {
		return "", err
	}
	defer f.Close()

	filePath := filepath.Join(dir, fmt.Sprintf("reservations_%s.xlsx", now.Format("2006-01-02_15-04-05")))
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}

func nights(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}
