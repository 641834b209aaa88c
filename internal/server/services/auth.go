// Package services contains server-side business logic. This file implements
// AuthService: registration, login, password-reset consumption and bearer
// token authentication.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/cryptox"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	FirstName       string          `json:"firstName" validate:"required"`
	LastName        string          `json:"lastName" validate:"required"`
	Password        string          `json:"password"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email" validate:"required,email"`
	ShippingAddress *models.Address `json:"shippingAddress,omitempty"`
	BillingAddress  *models.Address `json:"billingAddress,omitempty"`
}

// Session is what a successful sign-up, login or reset hands back.
// AdminToken is set only for admins.
type Session struct {
	Token      string
	AdminToken string
	User       *models.User
}

// LoginOutcome distinguishes the three successful login responses.
type LoginOutcome int

const (
	LoginSucceeded LoginOutcome = iota
	LoginNeedsReset
	LoginInactive
)

// LoginResult carries a Session only when Outcome is LoginSucceeded.
type LoginResult struct {
	Outcome LoginOutcome
	UserID  string
	Session *Session
}

// AuthService issues tokens and guards the account lifecycle.
type AuthService struct {
	db                   *sql.DB
	repomanager          repomanager.RepositoryManager
	hasher               *cryptox.PasswordHasher
	events               events.Publisher
	log                  logging.Logger
	secretKey            []byte
	adminSecretKey       []byte
	registrationValidity time.Duration
	sessionValidity      time.Duration
	minPasswordEntropy   float64
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, pub events.Publisher, log logging.Logger) *AuthService {
	return &AuthService{
		db:                   db,
		repomanager:          m,
		hasher:               cryptox.NewPasswordHasher(cfg.BcryptCost),
		events:               pub,
		log:                  log.With("component", "auth"),
		secretKey:            []byte(cfg.SecretKey),
		adminSecretKey:       []byte(cfg.AdminSecretKey),
		registrationValidity: cfg.RegistrationTokenValidityDuration,
		sessionValidity:      cfg.SessionTokenValidityDuration,
		minPasswordEntropy:   cfg.MinPasswordEntropy,
	}
}

// Register validates the input, stopping at the first failure, then creates
// the user and any supplied addresses in one transaction.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	u, err := s.createUser(ctx, in, nil)
	if err != nil {
		return nil, err
	}

	token, err := auth.GenerateToken(u.ID, u.Email, s.secretKey, s.registrationValidity)
	if err != nil {
		return nil, infra(ctx, s.log, "sign token", err)
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID)
	publish(ctx, s.events, s.log, events.New(events.UserRegistered, u.ID, u.Email))

	return &Session{Token: token, User: u}, nil
}

// createUser holds the validation and persistence shared by Register and
// admin creation. afterCreate, when set, runs inside the same transaction.
func (s *AuthService) createUser(ctx context.Context, in RegisterInput, afterCreate func(ctx context.Context, tx dbx.DBTX, u *models.User) error) (*models.User, error) {
	if err := checkPasswordLength(in.Password); err != nil {
		return nil, err
	}
	if err := cryptox.CheckStrength(in.Password, s.minPasswordEntropy); err != nil {
		return nil, newError(KindPasswordTooWeak, errors.Join(common.ErrPasswordTooWeak, err), "%s", err.Error())
	}

	in.Email = common.NormalizeEmail(in.Email)
	if in.Email != "" {
		_, err := s.repomanager.Users(s.db).GetByEmail(ctx, in.Email)
		switch {
		case err == nil:
			return nil, emailRegistered(in.Email)
		case !errors.Is(err, common.ErrorNotFound):
			return nil, infra(ctx, s.log, "lookup email", err)
		}
	}

	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, infra(ctx, s.log, "hash password", err)
	}

	var created *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repomanager.Users(tx).Create(ctx, &models.User{
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Email:        in.Email,
			PasswordHash: hash,
			Phone:        in.Phone,
		})
		if err != nil {
			return err
		}
		if err := addAddresses(ctx, s.repomanager, tx, u.ID, in.ShippingAddress, in.BillingAddress); err != nil {
			return err
		}
		u.ShippingAddress = in.ShippingAddress
		u.BillingAddress = in.BillingAddress
		if afterCreate != nil {
			if err := afterCreate(ctx, tx, u); err != nil {
				return err
			}
		}
		created = u
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, emailRegistered(in.Email)
		}
		return nil, infra(ctx, s.log, "create user", err)
	}
	return created, nil
}

// Login checks credentials, then the account markers. Only a normal account
// receives tokens.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.repomanager.Users(s.db).GetByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, incorrectCredentials()
		}
		return nil, infra(ctx, s.log, "lookup email", err)
	}

	ok, err := s.hasher.Matches(u.PasswordHash, password)
	if err != nil {
		return nil, infra(ctx, s.log, "compare password", err)
	}
	if !ok {
		return nil, incorrectCredentials()
	}

	state, err := s.repomanager.AccountFlags(s.db).State(ctx, u.ID)
	if err != nil {
		return nil, infra(ctx, s.log, "account state", err)
	}

	switch state.Status {
	case models.StatusPendingReset:
		return &LoginResult{Outcome: LoginNeedsReset, UserID: u.ID}, nil
	case models.StatusInactive:
		return &LoginResult{Outcome: LoginInactive, UserID: u.ID}, nil
	}

	if err := attachAddresses(ctx, s.repomanager, s.db, u); err != nil {
		return nil, infra(ctx, s.log, "load addresses", err)
	}

	sess, err := s.issue(u, state.Admin)
	if err != nil {
		return nil, infra(ctx, s.log, "sign token", err)
	}
	return &LoginResult{Outcome: LoginSucceeded, UserID: u.ID, Session: sess}, nil
}

// ConsumeReset sets a new password for a user with a pending reset and
// clears the marker. The marker is the only authorization this operation
// has, so it must exist and must be deleted in the same transaction.
func (s *AuthService) ConsumeReset(ctx context.Context, userID, newPassword string) (*Session, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, userNotFound(err)
	}

	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, userNotFound(err)
		}
		return nil, infra(ctx, s.log, "lookup user", err)
	}

	state, err := s.repomanager.AccountFlags(s.db).State(ctx, u.ID)
	if err != nil {
		return nil, infra(ctx, s.log, "account state", err)
	}
	if state.Status != models.StatusPendingReset {
		return nil, noPendingReset()
	}

	same, err := s.hasher.Matches(u.PasswordHash, newPassword)
	if err != nil {
		return nil, infra(ctx, s.log, "compare password", err)
	}
	if same {
		return nil, newError(KindSamePassword, common.ErrSamePassword, "New password must be different")
	}
	if err := checkPasswordLength(newPassword); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, infra(ctx, s.log, "hash password", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, u.ID, hash); err != nil {
			return err
		}
		cleared, err := s.repomanager.AccountFlags(tx).ClearReset(ctx, u.ID)
		if err != nil {
			return err
		}
		if !cleared {
			return common.ErrNoPendingReset
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNoPendingReset):
			return nil, noPendingReset()
		case errors.Is(err, common.ErrorNotFound):
			return nil, userNotFound(err)
		}
		return nil, infra(ctx, s.log, "consume reset", err)
	}
	u.PasswordHash = hash

	if err := attachAddresses(ctx, s.repomanager, s.db, u); err != nil {
		return nil, infra(ctx, s.log, "load addresses", err)
	}

	sess, err := s.issue(u, state.Admin)
	if err != nil {
		return nil, infra(ctx, s.log, "sign token", err)
	}

	s.log.Info(ctx, "password reset consumed", "user_id", u.ID)
	publish(ctx, s.events, s.log, events.New(events.UserPasswordReset, u.ID, u.Email))

	return sess, nil
}

// Authenticate resolves a bearer token to the current user record.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, unauthorized(common.ErrorUnauthorized)
	}

	claims, err := auth.ParseToken(token, s.secretKey)
	if err != nil {
		return nil, unauthorized(err)
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, unauthorized(common.ErrInvalidToken)
	}

	u, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, unauthorized(err)
		}
		return nil, infra(ctx, s.log, "lookup user", err)
	}

	if err := attachAddresses(ctx, s.repomanager, s.db, u); err != nil {
		return nil, infra(ctx, s.log, "load addresses", err)
	}
	return u, nil
}

func (s *AuthService) issue(u *models.User, admin bool) (*Session, error) {
	token, err := auth.GenerateToken(u.ID, u.Email, s.secretKey, s.sessionValidity)
	if err != nil {
		return nil, err
	}
	sess := &Session{Token: token, User: u}
	if admin {
		sess.AdminToken, err = auth.GenerateToken(u.ID, u.Email, s.adminSecretKey, s.sessionValidity)
		if err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// checkPasswordLength bounds the password from both sides; bcrypt cannot
// hash more than cryptox.MaxPasswordBytes.
func checkPasswordLength(password string) *Error {
	if len(password) < common.MinPasswordLength {
		return newError(KindPasswordTooShort, common.ErrPasswordTooShort, "Password too short!")
	}
	if len(password) > cryptox.MaxPasswordBytes {
		return newError(KindPasswordTooLong, common.ErrPasswordTooLong, "Password must be at most %d bytes", cryptox.MaxPasswordBytes)
	}
	return nil
}

func emailRegistered(email string) *Error {
	return newError(KindEmailInUse, common.ErrEmailInUse, "%s is already registered.", email)
}

func incorrectCredentials() *Error {
	return newError(KindIncorrectCredentials, common.ErrIncorrectCredentials, "Incorrect email or password")
}

func noPendingReset() *Error {
	return newError(KindNoPendingReset, common.ErrNoPendingReset, "No password reset is pending for this user")
}

func userNotFound(cause error) *Error {
	return newError(KindUserNotFound, errors.Join(common.ErrUserNotFound, cause), "User not found")
}

func unauthorized(cause error) *Error {
	return newError(KindUnauthorized, cause, "You must be logged in to perform this action")
}
