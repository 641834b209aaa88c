package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/cryptox"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
)

// UpdateInput is a partial profile update. Nil fields are left untouched.
type UpdateInput struct {
	FirstName       *string         `json:"firstName,omitempty"`
	LastName        *string         `json:"lastName,omitempty"`
	Email           *string         `json:"email,omitempty" validate:"omitempty,email"`
	Phone           *string         `json:"phone,omitempty"`
	Password        *string         `json:"password,omitempty"`
	ShippingAddress *models.Address `json:"shippingAddress,omitempty"`
	BillingAddress  *models.Address `json:"billingAddress,omitempty"`
}

// ProfileService reads and edits the authenticated user's own record.
type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *cryptox.PasswordHasher
	events      events.Publisher
	log         logging.Logger
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, pub events.Publisher, log logging.Logger) *ProfileService {
	return &ProfileService{
		db:          db,
		repomanager: m,
		hasher:      cryptox.NewPasswordHasher(cfg.BcryptCost),
		events:      pub,
		log:         log.With("component", "profile"),
	}
}

// GetSelf returns the user resolved by authentication as is.
func (s *ProfileService) GetSelf(_ context.Context, current *models.User) *models.User {
	return current
}

// UpdateSelf applies in to the current user. Addresses are insert-or-ignore:
// an existing address of the same kind is kept.
func (s *ProfileService) UpdateSelf(ctx context.Context, current *models.User, in UpdateInput) (*models.User, error) {
	userID := current.ID

	if _, err := s.repomanager.Users(s.db).GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, userNotFound(err)
		}
		return nil, infra(ctx, s.log, "lookup user", err)
	}

	var patch models.UserPatch
	patch.FirstName = in.FirstName
	patch.LastName = in.LastName
	patch.Phone = in.Phone

	if in.Email != nil {
		email := common.NormalizeEmail(*in.Email)
		in.Email = &email
		if err := validate.Struct(in); err != nil {
			return nil, validationError(err)
		}

		owner, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
		switch {
		case err == nil && owner.ID != userID:
			return nil, emailTaken()
		case err != nil && !errors.Is(err, common.ErrorNotFound):
			return nil, infra(ctx, s.log, "lookup email", err)
		}
		patch.Email = &email
	}

	if in.Password != nil {
		if err := checkPasswordLength(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, infra(ctx, s.log, "hash password", err)
		}
		patch.PasswordHash = &hash
	}

	var updated *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := addAddresses(ctx, s.repomanager, tx, userID, in.ShippingAddress, in.BillingAddress); err != nil {
			return err
		}

		users := s.repomanager.Users(tx)
		var (
			u   *models.User
			err error
		)
		if patch.Empty() {
			u, err = users.GetByID(ctx, userID)
		} else {
			u, err = users.Update(ctx, userID, patch)
		}
		if err != nil {
			return err
		}

		if err := attachAddresses(ctx, s.repomanager, tx, u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			return nil, newError(KindUserUpdate, errors.Join(common.ErrUserUpdate, err), "Unable to update user info")
		case errors.Is(err, common.ErrorAlreadyExists):
			return nil, emailTaken()
		}
		return nil, infra(ctx, s.log, "update user", err)
	}

	publish(ctx, s.events, s.log, events.New(events.UserUpdated, updated.ID, updated.Email))
	return updated, nil
}

func emailTaken() *Error {
	return newError(KindEmailInUse, common.ErrEmailInUse, "That email is already in use")
}
