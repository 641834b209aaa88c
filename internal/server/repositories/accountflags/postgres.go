// Package accountflags stores the marker rows that drive a user's account
// state: reset_users, inactive_users and admins.
package accountflags

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

const (
	resetTable    = "reset_users"
	inactiveTable = "inactive_users"
	adminTable    = "admins"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// State reads all three markers in a single round trip.
func (r *PostgresRepository) State(ctx context.Context, userID string) (models.AccountState, error) {
	query := `
		SELECT
			EXISTS (SELECT 1 FROM reset_users WHERE user_id = $1),
			EXISTS (SELECT 1 FROM inactive_users WHERE user_id = $1),
			EXISTS (SELECT 1 FROM admins WHERE user_id = $1)
	`
	var reset, inactive, admin bool
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&reset, &inactive, &admin); err != nil {
		return models.AccountState{}, fmt.Errorf("db error: %w", err)
	}
	return models.NewAccountState(reset, inactive, admin), nil
}

func (r *PostgresRepository) mark(ctx context.Context, table, userID string) (bool, error) {
	query := `INSERT INTO ` + table + ` (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return false, common.ErrorNotFound
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected(res.RowsAffected())
}

func (r *PostgresRepository) unmark(ctx context.Context, table, userID string) (bool, error) {
	query := `DELETE FROM ` + table + ` WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected(res.RowsAffected())
}

func affected(n int64, err error) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) RequireReset(ctx context.Context, userID string) (bool, error) {
	return r.mark(ctx, resetTable, userID)
}

// ClearReset deletes the reset marker. false means there was none to delete.
func (r *PostgresRepository) ClearReset(ctx context.Context, userID string) (bool, error) {
	return r.unmark(ctx, resetTable, userID)
}

func (r *PostgresRepository) Deactivate(ctx context.Context, userID string) (bool, error) {
	return r.mark(ctx, inactiveTable, userID)
}

func (r *PostgresRepository) Reactivate(ctx context.Context, userID string) (bool, error) {
	return r.unmark(ctx, inactiveTable, userID)
}

func (r *PostgresRepository) GrantAdmin(ctx context.Context, userID string) (bool, error) {
	return r.mark(ctx, adminTable, userID)
}

func (r *PostgresRepository) RevokeAdmin(ctx context.Context, userID string) (bool, error) {
	return r.unmark(ctx, adminTable, userID)
}
