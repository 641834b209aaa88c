package users

import (
	"context"

	"github.com/dmitrijs2005/accounts/internal/server/models"
)

// Repository persists user rows. Lookups return common.ErrorNotFound when no
// row matches; writes return common.ErrorAlreadyExists on an email clash.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}
