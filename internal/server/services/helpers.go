package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/dbx"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/events"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so messages match what
// the client sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into a ValidationError.
func validationError(err error) *Error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return newError(KindValidation, err, "invalid input")
	}
	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return newError(KindValidation, err, "%s is required", fe.Field())
	case "email":
		return newError(KindValidation, err, "%s must be a valid email address", fe.Field())
	default:
		return newError(KindValidation, err, "%s is invalid", fe.Field())
	}
}

// infra logs err and returns an InfrastructureError that does not leak driver text.
func infra(ctx context.Context, log logging.Logger, op string, err error) *Error {
	log.Error(ctx, "operation failed", "op", op, "error", err)
	return newError(KindInfrastructure, fmt.Errorf("%s: %w", op, err), "internal server error")
}

// publish never fails the caller: a lost event is logged and dropped.
func publish(ctx context.Context, pub events.Publisher, log logging.Logger, ev events.Event) {
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn(ctx, "event publish failed", "type", ev.Type, "user_id", ev.UserID, "error", err)
	}
}

// attachAddresses fills the user's optional addresses.
func attachAddresses(ctx context.Context, repos repomanager.RepositoryManager, db dbx.DBTX, u *models.User) error {
	repo := repos.Addresses(db)
	for _, kind := range []models.AddressKind{models.ShippingAddress, models.BillingAddress} {
		a, err := repo.Get(ctx, kind, u.ID)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		setAddress(u, kind, a)
	}
	return nil
}

func setAddress(u *models.User, kind models.AddressKind, a *models.Address) {
	switch kind {
	case models.ShippingAddress:
		u.ShippingAddress = a
	case models.BillingAddress:
		u.BillingAddress = a
	}
}

// addAddresses runs the insert-or-ignore for every supplied address.
func addAddresses(ctx context.Context, repos repomanager.RepositoryManager, tx dbx.DBTX, userID string, shipping, billing *models.Address) error {
	repo := repos.Addresses(tx)
	if shipping != nil {
		if _, err := repo.Add(ctx, models.ShippingAddress, userID, *shipping); err != nil {
			return err
		}
	}
	if billing != nil {
		if _, err := repo.Add(ctx, models.BillingAddress, userID, *billing); err != nil {
			return err
		}
	}
	return nil
}
