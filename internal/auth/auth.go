package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/lakehouse-dev/scheduler/internal/models"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Authenticator is an interface for authentication providers
type Authenticator interface {
	// Login authenticates a user and returns a JWT token
	Login(username, password string) (*LoginResponse, error)

	// Middleware returns a Gin middleware for authentication
	Middleware() gin.HandlerFunc

	// GetUserFromContext extracts the authenticated user from the Gin context
	GetUserFromContext(c *gin.Context) (*models.User, error)
}

// ActorFromContext resolves the acting identity stored by the middleware.
func ActorFromContext(c *gin.Context) (rbac.Actor, error) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return rbac.Actor{}, ErrUnauthorized
	}
	user, ok := value.(*models.User)
	if !ok {
		return rbac.Actor{}, errors.New("invalid user in context")
	}
	return rbac.ActorOf(user), nil
}
