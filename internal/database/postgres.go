package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campsite/internal/config"
	"campsite/internal/domain"
	"campsite/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/rs/zerolog"
)

// PostgresStore is the Postgres-backed reservation store.
type PostgresStore struct {
	*sqlx.DB
	pgTables
	logger *zerolog.Logger
}

var _ domain.Store = (*PostgresStore)(nil)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS allocations (
		date DATE NOT NULL,
		reservation_id UUID NOT NULL,
		CONSTRAINT ` + pgAllocationConstraint + ` UNIQUE (date)
	)`,
	`CREATE TABLE IF NOT EXISTS guests (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		reservation_id UUID PRIMARY KEY,
		guest_id UUID NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_allocations_reservation ON allocations(reservation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_guests_email ON guests(email)`,
}

// PostgresDSN builds a lib/pq connection string.
func PostgresDSN(cfg config.PostgresConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		sslMode,
	)
}

func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig, logger *zerolog.Logger) (*PostgresStore, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	conn, err := sqlx.Open("postgres", PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 25
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, query := range postgresSchema {
		if _, err := conn.ExecContext(ctx, query); err != nil {
			conn.Close()
			return nil, fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	logger.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("Postgres store initialized")
	return &PostgresStore{DB: conn, pgTables: pgTables{q: conn}, logger: logger}, nil
}

// WithTx runs fn in a single transaction and commits when fn returns nil.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx domain.Tables) error) error {
	tx, err := s.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(pgTables{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translateError(err))
	}
	return nil
}

type pgTables struct {
	q sqlx.ExtContext
}

func (t pgTables) AllocationsInRange(ctx context.Context, start, end time.Time) ([]*models.Allocation, error) {
	var out []*models.Allocation
	query := `SELECT date, reservation_id FROM allocations WHERE date BETWEEN $1 AND $2 ORDER BY date`
	if err := sqlx.SelectContext(ctx, t.q, &out, query, start, end); err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	return normalizeDates(out), nil
}

func (t pgTables) AllocationsByReservation(ctx context.Context, reservationID uuid.UUID) ([]*models.Allocation, error) {
	var out []*models.Allocation
	query := `SELECT date, reservation_id FROM allocations WHERE reservation_id = $1 ORDER BY date`
	if err := sqlx.SelectContext(ctx, t.q, &out, query, reservationID); err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	return normalizeDates(out), nil
}

func normalizeDates(allocs []*models.Allocation) []*models.Allocation {
	for _, a := range allocs {
		a.Date = models.Day(a.Date)
	}
	return allocs
}

func (t pgTables) InsertAllocations(ctx context.Context, allocs []*models.Allocation) error {
	query := `INSERT INTO allocations (date, reservation_id) VALUES ($1, $2)`
	for _, a := range allocs {
		if _, err := t.q.ExecContext(ctx, query, a.Date, a.ReservationID); err != nil {
			return fmt.Errorf("failed to insert allocation %s: %w", a.Date.Format(models.DateLayout), translateError(err))
		}
	}
	return nil
}

func (t pgTables) DeleteAllocationsByReservation(ctx context.Context, reservationID uuid.UUID) (int64, error) {
	res, err := t.q.ExecContext(ctx, `DELETE FROM allocations WHERE reservation_id = $1`, reservationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete allocations: %w", err)
	}
	return res.RowsAffected()
}

func (t pgTables) getGuest(ctx context.Context, query string, arg any) (*models.Guest, error) {
	var g models.Guest
	if err := sqlx.GetContext(ctx, t.q, &g, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get guest: %w", err)
	}
	return &g, nil
}

func (t pgTables) FindGuestByEmail(ctx context.Context, email string) (*models.Guest, error) {
	return t.getGuest(ctx, `SELECT id, email, name FROM guests WHERE email = $1 LIMIT 1`, email)
}

func (t pgTables) FindGuestByID(ctx context.Context, id uuid.UUID) (*models.Guest, error) {
	return t.getGuest(ctx, `SELECT id, email, name FROM guests WHERE id = $1`, id)
}

func (t pgTables) InsertGuest(ctx context.Context, guest *models.Guest) error {
	if guest.ID == uuid.Nil {
		guest.ID = uuid.New()
	}
	_, err := sqlx.NamedExecContext(ctx, t.q, `INSERT INTO guests (id, email, name) VALUES (:id, :email, :name)`, guest)
	if err != nil {
		return fmt.Errorf("failed to insert guest: %w", err)
	}
	return nil
}

func (t pgTables) UpdateGuest(ctx context.Context, guest *models.Guest) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `UPDATE guests SET email = :email, name = :name WHERE id = :id`, guest)
	if err != nil {
		return fmt.Errorf("failed to update guest: %w", err)
	}
	return nil
}

func (t pgTables) DeleteGuest(ctx context.Context, id uuid.UUID) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM guests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete guest: %w", err)
	}
	return nil
}

func (t pgTables) FindLink(ctx context.Context, reservationID uuid.UUID) (*models.Link, error) {
	var l models.Link
	err := sqlx.GetContext(ctx, t.q, &l, `SELECT reservation_id, guest_id FROM links WHERE reservation_id = $1`, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return &l, nil
}

func (t pgTables) InsertLink(ctx context.Context, link *models.Link) error {
	_, err := sqlx.NamedExecContext(ctx, t.q, `INSERT INTO links (reservation_id, guest_id) VALUES (:reservation_id, :guest_id)`, link)
	if err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	return nil
}

func (t pgTables) DeleteLink(ctx context.Context, reservationID uuid.UUID) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM links WHERE reservation_id = $1`, reservationID); err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return nil
}
