// Package directory is the narrow interface to identity lookup: mapping
// authenticated principals to client/staff ids and back. The booking core
// consumes it without depending on how identities are managed.
package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/salonbook/salonbook/internal/apperr"
	"github.com/salonbook/salonbook/libs/db"
)

type Directory interface {
	// ResolveClientID maps an authenticated user to their client record.
	ResolveClientID(ctx context.Context, userID string) (string, error)
	// ResolveStaffID maps an authenticated user to their staff record.
	ResolveStaffID(ctx context.Context, userID string) (string, error)

	// UserIDForClient / UserIDForStaff resolve notification recipients.
	UserIDForClient(ctx context.Context, clientID string) (string, error)
	UserIDForStaff(ctx context.Context, staffID string) (string, error)

	ServiceExists(ctx context.Context, serviceID string) (bool, error)
}

type PostgresDirectory struct {
	pool *db.Pool
}

func NewPostgresDirectory(pool *db.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

var _ Directory = (*PostgresDirectory)(nil)

func (d *PostgresDirectory) ResolveClientID(ctx context.Context, userID string) (string, error) {
	var id string
	err := d.pool.QueryRow(ctx, `SELECT id FROM clients WHERE user_id = $1`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.Forbidden("no client record for this account")
	}
	if err != nil {
		return "", apperr.Persistence("resolve client", false, err)
	}
	return id, nil
}

func (d *PostgresDirectory) ResolveStaffID(ctx context.Context, userID string) (string, error) {
	var id string
	err := d.pool.QueryRow(ctx, `SELECT id FROM staff WHERE user_id = $1`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.Forbidden("no staff record for this account")
	}
	if err != nil {
		return "", apperr.Persistence("resolve staff", false, err)
	}
	return id, nil
}

func (d *PostgresDirectory) UserIDForClient(ctx context.Context, clientID string) (string, error) {
	var userID string
	err := d.pool.QueryRow(ctx, `SELECT user_id FROM clients WHERE id = $1`, clientID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("client", clientID)
	}
	if err != nil {
		return "", apperr.Persistence("lookup client user", false, err)
	}
	return userID, nil
}

func (d *PostgresDirectory) UserIDForStaff(ctx context.Context, staffID string) (string, error) {
	var userID string
	err := d.pool.QueryRow(ctx, `SELECT user_id FROM staff WHERE id = $1`, staffID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.NotFound("staff", staffID)
	}
	if err != nil {
		return "", apperr.Persistence("lookup staff user", false, err)
	}
	return userID, nil
}

func (d *PostgresDirectory) ServiceExists(ctx context.Context, serviceID string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM services WHERE id = $1)`, serviceID).Scan(&exists)
	if err != nil {
		return false, apperr.Persistence("lookup service", false, err)
	}
	return exists, nil
}

// StaticDirectory serves fixed mappings. Used in tests and local setups
// without the identity tables populated.
type StaticDirectory struct {
	ClientsByUser map[string]string
	StaffByUser   map[string]string
	UsersByClient map[string]string
	UsersByStaff  map[string]string
	Services      map[string]struct{}
}

var _ Directory = (*StaticDirectory)(nil)

func (d *StaticDirectory) ResolveClientID(_ context.Context, userID string) (string, error) {
	id, ok := d.ClientsByUser[userID]
	if !ok {
		return "", apperr.Forbidden("no client record for this account")
	}
	return id, nil
}

func (d *StaticDirectory) ResolveStaffID(_ context.Context, userID string) (string, error) {
	id, ok := d.StaffByUser[userID]
	if !ok {
		return "", apperr.Forbidden("no staff record for this account")
	}
	return id, nil
}

func (d *StaticDirectory) UserIDForClient(_ context.Context, clientID string) (string, error) {
	id, ok := d.UsersByClient[clientID]
	if !ok {
		return "", apperr.NotFound("client", clientID)
	}
	return id, nil
}

func (d *StaticDirectory) UserIDForStaff(_ context.Context, staffID string) (string, error) {
	id, ok := d.UsersByStaff[staffID]
	if !ok {
		return "", apperr.NotFound("staff", staffID)
	}
	return id, nil
}

func (d *StaticDirectory) ServiceExists(_ context.Context, serviceID string) (bool, error) {
	_, ok := d.Services[serviceID]
	return ok, nil
}
