package auth

import (
	"errors"

	"github.com/campusdocs/portal/internal/middleware"
	"github.com/campusdocs/portal/internal/modules/users"
	"github.com/campusdocs/portal/internal/pkg/response"
	sessionpkg "github.com/campusdocs/portal/internal/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	users  *users.Service
	logger *zap.Logger
}

func NewHandler(db *gorm.DB, usersSvc *users.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, users: usersSvc, logger: logger.Named("AuthHandler")}
}

// RegisterRoutes mounts /auth. limitMW guards the credential endpoints and
// may be nil.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, limitMW gin.HandlerFunc) {
	g := rg.Group("/auth")
	if limitMW != nil {
		g.POST("/register", limitMW, h.register)
		g.POST("/login", limitMW, h.login)
	} else {
		g.POST("/register", h.register)
		g.POST("/login", h.login)
	}

	a := g.Group("", authMW)
	a.POST("/logout", h.logout)
	a.GET("/session", h.session)
	a.PATCH("/password", h.changePassword)
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	u, err := h.users.Create(ctx, &users.CreateUserDTO{
		Username:   dto.Username,
		Password:   dto.Password,
		Email:      dto.Email,
		FirstName:  dto.FirstName,
		MiddleName: dto.MiddleName,
		LastName:   dto.LastName,
		Level:      dto.Level,
	})
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			response.Conflict(c, "a user with that username already exists")
			return
		}
		response.InternalError(c, err)
		return
	}

	// Registration succeeds whatever happens to the welcome mail.
	out, _ := h.users.SendWelcome(ctx, u)

	token, s, err := sessionpkg.Issue(ctx, h.db, u.ID, c.ClientIP(), c.Request.UserAgent(), sessionpkg.DefaultTTL)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	h.users.RecordLogin(ctx, u, c.ClientIP())
	response.Created(c, registerResponse{
		loginResponse: loginResponse{Token: token, ExpiresAt: s.ExpiresAt, User: users.ToResponse(u)},
		WelcomeSent:   out.Sent,
	})
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	u, err := h.users.Authenticate(ctx, dto.Username, dto.Password)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrInvalidCredentials):
			response.ForbiddenMsg(c, "invalid username or password")
		case errors.Is(err, users.ErrInactive):
			response.ForbiddenMsg(c, "this account has been deactivated")
		default:
			response.InternalError(c, err)
		}
		return
	}

	token, s, err := sessionpkg.Issue(ctx, h.db, u.ID, c.ClientIP(), c.Request.UserAgent(), sessionpkg.DefaultTTL)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	h.users.RecordLogin(ctx, u, c.ClientIP())
	h.logger.Info("user logged in", zap.String("user_id", u.ID), zap.String("ip", c.ClientIP()))
	response.OK(c, loginResponse{Token: token, ExpiresAt: s.ExpiresAt, User: users.ToResponse(u)})
}

func (h *Handler) logout(c *gin.Context) {
	err := sessionpkg.Revoke(c.Request.Context(), h.db, middleware.CurrentUserID(c), middleware.CurrentSessionID(c))
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) session(c *gin.Context) {
	ctx := c.Request.Context()
	s, err := sessionpkg.Get(ctx, h.db, middleware.CurrentUserID(c), middleware.CurrentSessionID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Unauthorized(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, sessionResponse{
		SessionID: s.ID,
		IP:        s.IP,
		ExpiresAt: s.ExpiresAt,
		User:      users.ToResponse(middleware.CurrentUser(c)),
	})
}

func (h *Handler) changePassword(c *gin.Context) {
	var dto ChangePasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	err := h.users.ChangePassword(c.Request.Context(), middleware.CurrentUserID(c), dto.OldPassword, dto.NewPassword)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			response.ForbiddenMsg(c, "current password is incorrect")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
