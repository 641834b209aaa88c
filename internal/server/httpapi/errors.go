package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

var statusByKind = map[services.Kind]int{
	services.KindEmailInUse:           http.StatusForbidden,
	services.KindPasswordTooShort:     http.StatusBadRequest,
	services.KindPasswordTooLong:      http.StatusBadRequest,
	services.KindPasswordTooWeak:      http.StatusBadRequest,
	services.KindValidation:           http.StatusBadRequest,
	services.KindIncorrectCredentials: http.StatusBadRequest,
	services.KindSamePassword:         http.StatusBadRequest,
	services.KindNoPendingReset:       http.StatusBadRequest,
	services.KindUserNotFound:         http.StatusNotFound,
	services.KindUserUpdate:           http.StatusBadRequest,
	services.KindUnauthorized:         http.StatusUnauthorized,
	services.KindInvalidRequest:       http.StatusBadRequest,
	services.KindInfrastructure:       http.StatusInternalServerError,
}

// statusOverride replaces the table entry for one route.
type statusOverride map[services.Kind]int

// StatusFor returns the HTTP status for kind.
func StatusFor(kind services.Kind) int {
	if st, ok := statusByKind[kind]; ok {
		return st
	}
	return http.StatusInternalServerError
}

func respondWithError(c *gin.Context, err error, overrides statusOverride) {
	kind := services.KindOf(err)
	status := StatusFor(kind)
	if st, ok := overrides[kind]; ok {
		status = st
	}

	msg := "internal server error"
	var se *services.Error
	if errors.As(err, &se) && kind != services.KindInfrastructure {
		msg = se.Message
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   strconv.Itoa(status),
		Name:    string(kind),
		Message: msg,
	})
}
