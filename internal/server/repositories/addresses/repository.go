package addresses

import (
	"context"

	"github.com/dmitrijs2005/accounts/internal/server/models"
)

// Repository stores the one-per-user shipping and billing addresses.
type Repository interface {
	// Add inserts the address unless the user already has one of that kind.
	// inserted is false when the insert was ignored.
	Add(ctx context.Context, kind models.AddressKind, userID string, addr models.Address) (inserted bool, err error)
	// Get returns common.ErrorNotFound when the user has no address of that kind.
	Get(ctx context.Context, kind models.AddressKind, userID string) (*models.Address, error)
}
