package snapshot

import (
	"errors"
	"mime"
	"net/http"

	"github.com/campusdocs/portal/internal/pkg/blob"
	"github.com/campusdocs/portal/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger.Named("SnapshotHandler")}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/snapshots", authMW, adminMW)
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:name", h.download)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, items)
}

func (h *Handler) create(c *gin.Context) {
	item, err := h.svc.Create(c.Request.Context())
	if err != nil {
		h.logger.Error("manual snapshot failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	response.Created(c, item)
}

func (h *Handler) download(c *gin.Context) {
	name := c.Param("name")
	rc, obj, err := h.svc.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidKey) {
			response.NotFoundMsg(c, "snapshot not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, obj.Size, "application/zip", rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": name}),
	})
}
