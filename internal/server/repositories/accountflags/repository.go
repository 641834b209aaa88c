package accountflags

import (
	"context"

	"github.com/dmitrijs2005/accounts/internal/server/models"
)

// Repository manages the per-user marker rows (reset pending, inactive,
// admin). Mutators report whether a row was actually inserted or deleted.
type Repository interface {
	State(ctx context.Context, userID string) (models.AccountState, error)

	RequireReset(ctx context.Context, userID string) (bool, error)
	ClearReset(ctx context.Context, userID string) (bool, error)

	Deactivate(ctx context.Context, userID string) (bool, error)
	Reactivate(ctx context.Context, userID string) (bool, error)

	GrantAdmin(ctx context.Context, userID string) (bool, error)
	RevokeAdmin(ctx context.Context, userID string) (bool, error)
}
