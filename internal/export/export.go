package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"campsite/internal/domain"
	"campsite/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Reservations"

// Exporter writes an xlsx occupancy sheet, one row per date.
type Exporter struct {
	store  domain.Tables
	dir    string
	logger *zerolog.Logger
}

func NewExporter(store domain.Tables, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{store: store, dir: dir, logger: logger}
}

type occupant struct {
	reservationID uuid.UUID
	guest         *models.Guest
}

// Export writes the sheet for r and returns the file path.
func (e *Exporter) Export(ctx context.Context, r models.DateRange) (string, error) {
	allocs, err := e.store.AllocationsInRange(ctx, r.Start, r.End)
	if err != nil {
		return "", fmt.Errorf("error getting allocations: %w", err)
	}

	byDate := make(map[string]occupant, len(allocs))
	guests := make(map[uuid.UUID]*models.Guest)
	for _, a := range allocs {
		guest, ok := guests[a.ReservationID]
		if !ok {
			guest, err = e.guestFor(ctx, a.ReservationID)
			if err != nil {
				return "", err
			}
			guests[a.ReservationID] = guest
		}
		byDate[a.Date.Format(models.DateLayout)] = occupant{reservationID: a.ReservationID, guest: guest}
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		r.Start.Format(models.DateLayout), r.End.Format(models.DateLayout)))
	_ = f.MergeCell(sheetName, "A1", "E1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err := f.SetSheetRow(sheetName, "A2", &[]any{"Date", "Status", "Reservation", "Guest", "Email"}); err != nil {
		return "", fmt.Errorf("error writing header: %w", err)
	}
	_ = f.SetCellStyle(sheetName, "A2", "E2", headerStyle)

	bookedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FFC7CE"}, Pattern: 1},
	})

	for i, d := range r.Dates() {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		date := d.Format(models.DateLayout)

		values := []any{date, "free", "", "", ""}
		if occ, ok := byDate[date]; ok {
			values[1] = "booked"
			values[2] = occ.reservationID.String()
			if occ.guest != nil {
				values[3] = occ.guest.Name
				values[4] = occ.guest.Email
			}
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return "", fmt.Errorf("error writing row %d: %w", row, err)
		}
		if values[1] == "booked" {
			last, _ := excelize.CoordinatesToCellName(5, row)
			_ = f.SetCellStyle(sheetName, cell, last, bookedStyle)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 14)
	_ = f.SetColWidth(sheetName, "C", "C", 38)
	_ = f.SetColWidth(sheetName, "D", "E", 25)
	_ = f.DeleteSheet("Sheet1")

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}
	fileName := fmt.Sprintf("reservations_%s_to_%s.xlsx",
		r.Start.Format(models.DateLayout), r.End.Format(models.DateLayout))
	filePath := filepath.Join(e.dir, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("allocations", len(allocs)).Msg("Excel file created")
	return filePath, nil
}

// guestFor tolerates a missing link or guest; the row then has no guest.
func (e *Exporter) guestFor(ctx context.Context, reservationID uuid.UUID) (*models.Guest, error) {
	link, err := e.store.FindLink(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("error getting link: %w", err)
	}
	if link == nil {
		e.logger.Warn().Str("reservation_id", reservationID.String()).Msg("export: reservation has no link")
		return nil, nil
	}
	guest, err := e.store.FindGuestByID(ctx, link.GuestID)
	if err != nil {
		return nil, fmt.Errorf("error getting guest: %w", err)
	}
	return guest, nil
}
