package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campsite/internal/models"

	"github.com/google/uuid"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTables implements domain.Tables over a connection or a transaction.
type sqliteTables struct {
	q execer
}

func (t sqliteTables) AllocationsInRange(ctx context.Context, start, end time.Time) ([]*models.Allocation, error) {
	query := `SELECT date, reservation_id FROM allocations WHERE date BETWEEN ? AND ? ORDER BY date`
	rows, err := t.q.QueryContext(ctx, query, start.Format(models.DateLayout), end.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	return scanAllocations(rows)
}

func (t sqliteTables) AllocationsByReservation(ctx context.Context, reservationID uuid.UUID) ([]*models.Allocation, error) {
	query := `SELECT date, reservation_id FROM allocations WHERE reservation_id = ? ORDER BY date`
	rows, err := t.q.QueryContext(ctx, query, reservationID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	return scanAllocations(rows)
}

func scanAllocations(rows *sql.Rows) ([]*models.Allocation, error) {
	defer rows.Close()

	var out []*models.Allocation
	for rows.Next() {
		var (
			date string
			a    models.Allocation
		)
		if err := rows.Scan(&date, &a.ReservationID); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		d, err := models.ParseDate(date)
		if err != nil {
			return nil, err
		}
		a.Date = d
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (t sqliteTables) InsertAllocations(ctx context.Context, allocs []*models.Allocation) error {
	query := `INSERT INTO allocations (date, reservation_id) VALUES (?, ?)`
	for _, a := range allocs {
		if _, err := t.q.ExecContext(ctx, query, a.Date.Format(models.DateLayout), a.ReservationID.String()); err != nil {
			return fmt.Errorf("failed to insert allocation %s: %w", a.Date.Format(models.DateLayout), translateError(err))
		}
	}
	return nil
}

func (t sqliteTables) DeleteAllocationsByReservation(ctx context.Context, reservationID uuid.UUID) (int64, error) {
	res, err := t.q.ExecContext(ctx, `DELETE FROM allocations WHERE reservation_id = ?`, reservationID.String())
	if err != nil {
		return 0, fmt.Errorf("failed to delete allocations: %w", err)
	}
	return res.RowsAffected()
}

func (t sqliteTables) FindGuestByEmail(ctx context.Context, email string) (*models.Guest, error) {
	row := t.q.QueryRowContext(ctx, `SELECT id, email, name FROM guests WHERE email = ? LIMIT 1`, email)
	return scanGuest(row)
}

func (t sqliteTables) FindGuestByID(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	row := t.q.QueryRowContext(ctx, `SELECT id, email, name FROM guests WHERE id = ?`, id.String())
	return scanGuest(row)
}

func scanGuest(row *sql.Row) (*models.Guest, error) {
	var g models.Guest
	if err := row.Scan(&g.ID, &g.Email, &g.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan guest: %w", err)
	}
	return &g, nil
}

func (t sqliteTables) InsertGuest(ctx context.Context, guest *models.Guest) error {
	if guest.ID == uuid.Nil {
		guest.ID = uuid.New()
	}
	_, err := t.q.ExecContext(ctx, `INSERT INTO guests (id, email, name) VALUES (?, ?, ?)`,
		guest.ID.String(), guest.Email, guest.Name)
	if err != nil {
		return fmt.Errorf("failed to insert guest: %w", err)
	}
	return nil
}

func (t sqliteTables) UpdateGuest(ctx context.Context, guest *models.Guest) error {
	_, err := t.q.ExecContext(ctx, `UPDATE guests SET email = ?, name = ? WHERE id = ?`,
		guest.Email, guest.Name, guest.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update guest: %w", err)
	}
	return nil
}

func (t sqliteTables) DeleteGuest(ctx context.Context, id uuid.UUID) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM guests WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete guest: %w", err)
	}
	return nil
}

func (t sqliteTables) FindLink(ctx context.Context, reservationID uuid.UUID) (*models.Link, error) {
	var l models.Link
	err := t.q.QueryRowContext(ctx, `SELECT reservation_id, guest_id FROM links WHERE reservation_id = ?`,
		reservationID.String()).Scan(&l.ReservationID, &l.GuestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return &l, nil
}

func (t sqliteTables) InsertLink(ctx context.Context, link *models.Link) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO links (reservation_id, guest_id) VALUES (?, ?)`,
		link.ReservationID.String(), link.GuestID.String())
	if err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	return nil
}

func (t sqliteTables) DeleteLink(ctx context.Context, reservationID uuid.UUID) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM links WHERE reservation_id = ?`, reservationID.String()); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}
