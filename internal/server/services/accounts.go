package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/accountflags"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// Marker names an operator action on the account marker tables.
type Marker string

const (
	MarkDeactivate   Marker = "deactivate"
	MarkActivate     Marker = "activate"
	MarkRequireReset Marker = "require-reset"
	MarkGrantAdmin   Marker = "grant-admin"
	MarkRevokeAdmin  Marker = "revoke-admin"
)

// Markers lists every supported action.
var Markers = []Marker{MarkDeactivate, MarkActivate, MarkRequireReset, MarkGrantAdmin, MarkRevokeAdmin}

// AccountService backs the operator tooling. The public API never changes
// markers; only this service does.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	auth        *AuthService
	log         logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, authSvc *AuthService, log logging.Logger) *AccountService {
	return &AccountService{db: db, repomanager: m, auth: authSvc, log: log.With("component", "accounts")}
}

// Resolve finds a user by id (when ref is a UUID) or by email.
func (s *AccountService) Resolve(ctx context.Context, ref string) (*models.User, error) {
	users := s.repomanager.Users(s.db)

	var (
		u   *models.User
		err error
	)
	if _, perr := uuid.Parse(ref); perr == nil {
		u, err = users.GetByID(ctx, ref)
	} else {
		u, err = users.GetByEmail(ctx, common.NormalizeEmail(ref))
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, userNotFound(err)
		}
		return nil, infra(ctx, s.log, "lookup user", err)
	}
	return u, nil
}

// Apply performs the marker action on the referenced user. changed is false
// when the marker was already in the requested state.
func (s *AccountService) Apply(ctx context.Context, m Marker, ref string) (changed bool, err error) {
	u, err := s.Resolve(ctx, ref)
	if err != nil {
		return false, err
	}

	op, err := markerOp(s.repomanager.AccountFlags(s.db), m)
	if err != nil {
		return false, err
	}

	changed, err = op(ctx, u.ID)
	if err != nil {
		return false, infra(ctx, s.log, string(m), err)
	}
	s.log.Info(ctx, "account marker applied", "action", string(m), "user_id", u.ID, "changed", changed)
	return changed, nil
}

// State reports the current markers of the referenced user.
func (s *AccountService) State(ctx context.Context, ref string) (*models.User, models.AccountState, error) {
	u, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, models.AccountState{}, err
	}
	st, err := s.repomanager.AccountFlags(s.db).State(ctx, u.ID)
	if err != nil {
		return nil, models.AccountState{}, infra(ctx, s.log, "account state", err)
	}
	return u, st, nil
}

// CreateAdmin registers a user with the normal validation rules and grants
// admin in the same transaction.
func (s *AccountService) CreateAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	u, err := s.auth.createUser(ctx, in, func(ctx context.Context, tx dbx.DBTX, u *models.User) error {
		_, err := s.repomanager.AccountFlags(tx).GrantAdmin(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "admin created", "user_id", u.ID)
	return u, nil
}

func markerOp(flags accountflags.Repository, m Marker) (func(context.Context, string) (bool, error), error) {
	switch m {
	case MarkDeactivate:
		return flags.Deactivate, nil
	case MarkActivate:
		return flags.Reactivate, nil
	case MarkRequireReset:
		return flags.RequireReset, nil
	case MarkGrantAdmin:
		return flags.GrantAdmin, nil
	case MarkRevokeAdmin:
		return flags.RevokeAdmin, nil
	}
	return nil, newError(KindValidation, common.ErrorValidation, "unknown action %q", m)
}
