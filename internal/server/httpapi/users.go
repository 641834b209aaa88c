package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/gin-gonic/gin"
)

// Authenticator is the part of services.AuthService the HTTP layer uses.
type Authenticator interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	ConsumeReset(ctx context.Context, userID, newPassword string) (*services.Session, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Profiles is the part of services.ProfileService the HTTP layer uses.
type Profiles interface {
	GetSelf(ctx context.Context, current *models.User) *models.User
	UpdateSelf(ctx context.Context, current *models.User, in services.UpdateInput) (*models.User, error)
}

type sessionResponse struct {
	Message    string       `json:"message"`
	Token      string       `json:"token"`
	AdminToken string       `json:"adminToken,omitempty"`
	User       *models.User `json:"user"`
}

type accountStateResponse struct {
	Message    string `json:"message"`
	UserID     string `json:"userId"`
	Status     string `json:"status,omitempty"`
	NeedsReset bool   `json:"needsReset,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetRequest struct {
	Password string `json:"password"`
}

const (
	msgSignedUp  = "you're signed up!"
	msgLoggedIn  = "you're logged in!"
	msgInactive  = "Your account has been deactivated"
	msgNeedReset = "Please reset your password"
)

// profileOverrides: a taken email on profile update is a plain bad request.
var profileOverrides = statusOverride{services.KindEmailInUse: http.StatusBadRequest}

type usersHandler struct {
	auth     Authenticator
	profiles Profiles
}

func (h *usersHandler) register(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondWithError(c, services.InvalidRequest(err), nil)
		return
	}

	sess, err := h.auth.Register(c.Request.Context(), in)
	if err != nil {
		respondWithError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{Message: msgSignedUp, Token: sess.Token, User: sess.User})
}

func (h *usersHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, services.InvalidRequest(err), nil)
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondWithError(c, err, nil)
		return
	}

	switch res.Outcome {
	case services.LoginNeedsReset:
		c.JSON(http.StatusOK, accountStateResponse{Message: msgNeedReset, UserID: res.UserID, NeedsReset: true})
	case services.LoginInactive:
		c.JSON(http.StatusOK, accountStateResponse{Message: msgInactive, UserID: res.UserID, Status: "inactive"})
	default:
		c.JSON(http.StatusOK, loggedIn(res.Session))
	}
}

func (h *usersHandler) consumeReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, services.InvalidRequest(err), nil)
		return
	}

	sess, err := h.auth.ConsumeReset(c.Request.Context(), c.Param("userId"), req.Password)
	if err != nil {
		respondWithError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, loggedIn(sess))
}

func (h *usersHandler) me(c *gin.Context) {
	c.JSON(http.StatusOK, h.profiles.GetSelf(c.Request.Context(), currentUser(c)))
}

func (h *usersHandler) updateMe(c *gin.Context) {
	var in services.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondWithError(c, services.InvalidRequest(err), profileOverrides)
		return
	}

	u, err := h.profiles.UpdateSelf(c.Request.Context(), currentUser(c), in)
	if err != nil {
		respondWithError(c, err, profileOverrides)
		return
	}

	c.JSON(http.StatusOK, u)
}

func loggedIn(sess *services.Session) sessionResponse {
	return sessionResponse{
		Message:    msgLoggedIn,
		Token:      sess.Token,
		AdminToken: sess.AdminToken,
		User:       sess.User,
	}
}
