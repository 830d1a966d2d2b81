package users

import (
	"errors"

	"github.com/campusdocs/portal/internal/middleware"
	"github.com/campusdocs/portal/internal/pkg/pagination"
	"github.com/campusdocs/portal/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the admin account management routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/users", authMW, adminMW)
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.update)
	g.POST("/:id/welcome", h.welcome)
}

func (h *Handler) list(c *gin.Context) {
	active, err := pagination.OptionalBool(c, "active")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	items, pag, err := h.svc.List(c.Request.Context(), pagination.FromRequest(c), c.Query("q"), active)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	out := make([]*UserResponse, 0, len(items))
	for i := range items {
		out = append(out, ToResponse(&items[i]))
	}
	response.Paged(c, out, pag)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.Create(c.Request.Context(), &dto)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, ToResponse(u))
}

func (h *Handler) get(c *gin.Context) {
	u, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, ToResponse(u))
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	id := c.Param("id")
	if id == middleware.CurrentUserID(c) && ((dto.IsActive != nil && !*dto.IsActive) || (dto.IsAdmin != nil && !*dto.IsAdmin)) {
		response.BadRequest(c, "you cannot deactivate or demote your own account")
		return
	}
	u, err := h.svc.Update(c.Request.Context(), id, &dto)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, ToResponse(u))
}

func (h *Handler) welcome(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := h.svc.GetByID(ctx, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	out, err := h.svc.SendWelcome(ctx, u)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, gin.H{"sent": out.Sent, "via": out.Via, "log_id": out.LogID})
}

func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errUserNotFound):
		response.NotFoundMsg(c, "user not found")
	case errors.Is(err, ErrUsernameTaken):
		response.Conflict(c, "a user with that username already exists")
	case errors.Is(err, errNoEmail):
		response.UnprocessableEntity(c, "user has no email address")
	default:
		response.InternalError(c, err)
	}
}
