// Package httpapi is the public REST surface of the account service,
// built on gin.
package httpapi

import (
	"time"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Auth               Authenticator
	Profiles           Profiles
	DB                 Pinger
	Logger             logging.Logger
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string
}

// NewRouter wires middleware and routes.
//
//	POST   /users/register
//	POST   /users/login
//	DELETE /users/password_reset/:userId
//	GET    /users/me            (bearer)
//	PATCH  /users/me            (bearer)
//	GET    /healthz
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()

	router.Use(requestID())
	router.Use(requestLogger(d.Logger))
	router.Use(recovery(d.Logger))
	if mw := corsMiddleware(d.CORSAllowedOrigins); mw != nil {
		router.Use(mw)
	}
	router.Use(timeout(d.RequestTimeout))

	router.GET("/healthz", healthz(d.DB))

	h := &usersHandler{auth: d.Auth, profiles: d.Profiles}

	users := router.Group("/users")
	users.POST("/register", h.register)
	users.POST("/login", h.login)
	users.DELETE("/password_reset/:userId", h.consumeReset)

	me := users.Group("/me", requireUser(d.Auth))
	me.GET("", h.me)
	me.PATCH("", h.updateMe)

	return router
}
