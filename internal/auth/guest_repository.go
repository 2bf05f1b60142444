package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GuestRepository defines the interface for invitation persistence.
type GuestRepository interface {
	Create(ctx context.Context, guest *Guest) error
	GetByToken(ctx context.Context, token string) (*Guest, error)
	MarkConsumed(ctx context.Context, id string) error
}

// SQLiteGuestRepository implements GuestRepository using SQLite.
type SQLiteGuestRepository struct {
	db *sql.DB
}

// NewGuestRepository creates a new SQLite-backed guest repository.
func NewGuestRepository(db *sql.DB) *SQLiteGuestRepository {
	return &SQLiteGuestRepository{db: db}
}

// Create inserts a new invitation. ID and token are generated if empty.
func (r *SQLiteGuestRepository) Create(ctx context.Context, guest *Guest) error {
	if guest.ID == "" {
		guest.ID = "gst-" + uuid.NewString()[:8]
	}
	if guest.Token == "" {
		guest.Token = uuid.NewString()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	guest.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO guests (id, token, email, company, access_level, consumed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		guest.ID, guest.Token, guest.Email, guest.Company,
		guest.AccessLevel, boolToInt(guest.Consumed), now,
	)
	if err != nil {
		return fmt.Errorf("creating guest: %w", err)
	}

	return nil
}

// GetByToken retrieves an invitation by its opaque token.
func (r *SQLiteGuestRepository) GetByToken(ctx context.Context, token string) (*Guest, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, token, email, company, access_level, consumed, created_at FROM guests WHERE token = ?",
		token)

	var g Guest
	var consumed int
	var createdAt string
	err := row.Scan(&g.ID, &g.Token, &g.Email, &g.Company, &g.AccessLevel, &consumed, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGuestNotFound
		}
		return nil, fmt.Errorf("scanning guest: %w", err)
	}

	g.Consumed = consumed != 0
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &g, nil
}

// MarkConsumed flags an invitation as used.
func (r *SQLiteGuestRepository) MarkConsumed(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE guests SET consumed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking guest consumed: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrGuestNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
