package middleware

import (
	"errors"
	"strings"

	"github.com/campusdocs/portal/internal/models"
	"github.com/campusdocs/portal/internal/pkg/jwt"
	"github.com/campusdocs/portal/internal/pkg/response"
	sessionpkg "github.com/campusdocs/portal/internal/pkg/session"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeySID    = "session_id"
	ContextKeyUser   = "user"
)

var errInactiveAccount = errors.New("account is inactive")

// Auth returns a middleware that enforces JWT authentication backed by a
// live session and an active account.
func Auth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, u, err := Authenticate(c, db, extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		setIdentity(c, claims, u)
		c.Next()
	}
}

// OptionalAuth sets the user if a valid token is present, but does not block the request.
func OptionalAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, u, err := Authenticate(c, db, extractToken(c)); err == nil {
			setIdentity(c, claims, u)
		}
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			response.Unauthorized(c)
			return
		}
		if !u.IsAdmin {
			response.Forbidden(c)
			return
		}
		c.Next()
	}
}

// Authenticate validates rawToken and loads the account it belongs to.
func Authenticate(c *gin.Context, db *gorm.DB, rawToken string) (*jwt.Claims, *models.UserModel, error) {
	token := NormalizeToken(rawToken)
	if token == "" {
		return nil, nil, errors.New("token is required")
	}

	claims, err := jwt.Parse(token)
	if err != nil {
		return nil, nil, err
	}
	ctx := c.Request.Context()
	active, err := sessionpkg.IsActive(ctx, db, claims.UserID, claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if !active {
		return nil, nil, errors.New("session expired or revoked")
	}

	var u models.UserModel
	if err := db.WithContext(ctx).First(&u, "id = ?", claims.UserID).Error; err != nil {
		return nil, nil, err
	}
	if !u.IsActive {
		return nil, nil, errInactiveAccount
	}
	return claims, &u, nil
}

func setIdentity(c *gin.Context, claims *jwt.Claims, u *models.UserModel) {
	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeySID, claims.SessionID)
	c.Set(ContextKeyUser, u)
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// CurrentSessionID extracts the authenticated session ID from context.
func CurrentSessionID(c *gin.Context) string {
	v, _ := c.Get(ContextKeySID)
	id, _ := v.(string)
	return id
}

// CurrentUser returns the authenticated account, or nil.
func CurrentUser(c *gin.Context) *models.UserModel {
	v, _ := c.Get(ContextKeyUser)
	u, _ := v.(*models.UserModel)
	return u
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
