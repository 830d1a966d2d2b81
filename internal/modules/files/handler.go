package files

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/campusdocs/portal/internal/middleware"
	"github.com/campusdocs/portal/internal/pkg/blob"
	"github.com/campusdocs/portal/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const defaultContentType = "application/octet-stream"

type Handler struct {
	svc       *Service
	uploadSem *semaphore.Weighted
	maxBytes  int64
	logger    *zap.Logger
}

// NewHandler limits concurrent uploads to maxUploads and each request
// body to maxBytes.
func NewHandler(svc *Service, maxUploads int, maxBytes int64, logger *zap.Logger) *Handler {
	if maxUploads < 1 {
		maxUploads = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		svc:       svc,
		uploadSem: semaphore.NewWeighted(int64(maxUploads)),
		maxBytes:  maxBytes,
		logger:    logger.Named("FileHandler"),
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/files", authMW)
	g.GET("", h.list)
	g.GET("/level/:level", h.listByLevel)
	g.GET("/category/:category", h.listByCategory)
	g.GET("/:id", h.get)
	g.GET("/:id/download", h.download)
	g.GET("/:id/preview", h.preview)

	g.POST("", adminMW, h.upload)
	g.PATCH("/:id", adminMW, h.update)
}

func (h *Handler) list(c *gin.Context) {
	h.respondGrouped(c, ParseFilter(c.Query("level"), c.Query("category"), c.Query("semester")))
}

func (h *Handler) listByLevel(c *gin.Context) {
	h.respondGrouped(c, ParseFilter(c.Param("level"), c.Query("category"), c.Query("semester")))
}

func (h *Handler) listByCategory(c *gin.Context) {
	h.respondGrouped(c, ParseFilter(c.Query("level"), c.Param("category"), c.Query("semester")))
}

func (h *Handler) respondGrouped(c *gin.Context, f Filter) {
	groups, err := h.svc.Grouped(c.Request.Context(), f)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, toGroupResponses(groups))
}

func (h *Handler) get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("id"), isAdmin(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, toResponse(rec))
}

func (h *Handler) download(c *gin.Context) {
	h.serve(c, "attachment", true)
}

func (h *Handler) preview(c *gin.Context) {
	c.Header("X-Frame-Options", "SAMEORIGIN")
	h.serve(c, "inline", false)
}

func (h *Handler) serve(c *gin.Context, disposition string, count bool) {
	ctx := c.Request.Context()
	rec, err := h.svc.Get(ctx, c.Param("id"), isAdmin(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	open := h.svc.Open
	if count {
		open = h.svc.Download
	}
	rc, obj, err := open(ctx, rec)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer rc.Close()

	contentType := rec.ContentType
	if contentType == "" {
		contentType = obj.ContentType
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	headers := map[string]string{
		"Content-Disposition":    mime.FormatMediaType(disposition, map[string]string{"filename": rec.OriginalName}),
		"X-Content-Type-Options": "nosniff",
	}
	c.DataFromReader(http.StatusOK, obj.Size, contentType, rc, headers)
}

func (h *Handler) upload(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.uploadSem.Acquire(ctx, 1); err != nil {
		response.ServiceUnavailable(c, "upload cancelled")
		return
	}
	defer h.uploadSem.Release(1)

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	var dto UploadFileDTO
	if err := c.ShouldBind(&dto); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.TooLarge(c, "file exceeds the upload limit")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	defer f.Close()

	contentType := strings.TrimSpace(fileHeader.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = defaultContentType
	}
	rec, err := h.svc.Create(ctx, &dto, fileHeader.Filename, contentType, fileHeader.Size, f, middleware.CurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if u := middleware.CurrentUser(c); u != nil {
		rec.UploadedBy = u
	}
	response.Created(c, toResponse(rec))
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateFileDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rec, err := h.svc.Update(c.Request.Context(), c.Param("id"), &dto)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, toResponse(rec))
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errFileNotFound):
		response.NotFoundMsg(c, "file not found")
	case errors.Is(err, blob.ErrNotFound):
		h.logger.Warn("file payload missing", zap.String("file_id", c.Param("id")))
		response.NotFoundMsg(c, "file content is missing")
	case errors.Is(err, errInvalidCategory):
		response.BadRequest(c, "category must be one of notes, past_papers, assignments")
	default:
		response.InternalError(c, err)
	}
}

func isAdmin(c *gin.Context) bool {
	u := middleware.CurrentUser(c)
	return u != nil && u.IsAdmin
}
