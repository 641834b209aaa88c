// Package addresses provides a PostgreSQL-backed repository for user
// shipping and billing addresses.
package addresses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

var tables = map[models.AddressKind]string{
	models.ShippingAddress: "shipping_addresses",
	models.BillingAddress:  "billing_addresses",
}

// ErrUnknownKind is returned for an AddressKind with no backing table.
var ErrUnknownKind = errors.New("unknown address kind")

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func tableFor(kind models.AddressKind) (string, error) {
	t, ok := tables[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return t, nil
}

// Add performs an insert-or-ignore keyed on user_id: a second address of the
// same kind for the same user is silently dropped, never merged.
func (r *PostgresRepository) Add(ctx context.Context, kind models.AddressKind, userID string, addr models.Address) (bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO ` + table + ` (user_id, street, city, state, zip)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id
	`
	var id int64
	err = r.db.QueryRowContext(ctx, query, userID, addr.Street, addr.City, addr.State, addr.Zip).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

// Get returns the user's address of the given kind.
func (r *PostgresRepository) Get(ctx context.Context, kind models.AddressKind, userID string) (*models.Address, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT street, city, state, zip
		FROM ` + table + `
		WHERE user_id = $1
	`
	a := &models.Address{}
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&a.Street, &a.City, &a.State, &a.Zip); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}
