package export

import (
	"bytes"
	"os"
	"testing"
	"time"

	"staybook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleViews() []*models.ReservationView {
	start := time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC)
	return []*models.ReservationView{
		{
			Reservation: models.Reservation{
				ID: 1, UserID: 7, AccommodationID: 1, RoomID: 3,
				StartDate: start, EndDate: start.AddDate(0, 0, 45),
				Status: models.StatusConfirmed, CreatedAt: start,
			},
			RoomType:  "suite",
			RoomPrice: 12000,
		},
		{
			Reservation: models.Reservation{
				ID: 2, UserID: 8, AccommodationID: 1, RoomID: 4,
				StartDate: start, EndDate: start.AddDate(0, 0, 30),
				Status: models.StatusCanceled, CreatedAt: start,
			},
			RoomType:  "single",
			RoomPrice: 6000,
		},
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleViews()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "suite", rows[1][4])
	assert.Equal(t, "2025-01-01 14:00", rows[1][6])
	assert.Equal(t, "45", rows[1][8])
	assert.Equal(t, "canceled", rows[2][9])
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := Save(dir, sampleViews(), now)
	require.NoError(t, err)
	assert.Contains(t, path, "reservations_2025-03-04_05-06-07.xlsx")

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNights(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 30, nights(start, start.AddDate(0, 0, 30)))
	assert.Equal(t, 0, nights(start, start))
	assert.Equal(t, 0, nights(start, start.Add(-time.Hour)))
}
