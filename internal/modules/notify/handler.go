package notify

import (
	"strings"

	"github.com/campusdocs/portal/internal/pkg/mail"
	"github.com/campusdocs/portal/internal/pkg/pagination"
	"github.com/campusdocs/portal/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// TestMailDTO sends an ad-hoc message through the full transport chain.
type TestMailDTO struct {
	To      []string `json:"to"      binding:"required,min=1,dive,email"`
	Subject string   `json:"subject" binding:"max=255"`
	Body    string   `json:"body"`
}

type Handler struct {
	log    *DeliveryLog
	sender Sender
	from   string
}

func NewHandler(log *DeliveryLog, sender Sender, from string) *Handler {
	return &Handler{log: log, sender: sender, from: from}
}

// RegisterRoutes mounts the admin delivery log browser.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	g := rg.Group("/mail-logs", authMW, adminMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/test", h.test)
}

func (h *Handler) list(c *gin.Context) {
	sent, err := pagination.OptionalBool(c, "sent")
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	items, pag, err := h.log.List(c.Request.Context(), pagination.FromRequest(c), sent)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	item, err := h.log.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if item == nil {
		response.NotFoundMsg(c, "delivery log not found")
		return
	}
	response.OK(c, item)
}

func (h *Handler) test(c *gin.Context) {
	var dto TestMailDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	subject := strings.TrimSpace(dto.Subject)
	if subject == "" {
		subject = "Test message"
	}
	body := dto.Body
	if strings.TrimSpace(body) == "" {
		body = "This is a test message from the student resource portal."
	}
	out := h.sender.Notify(c.Request.Context(), mail.Message{
		From:    h.from,
		To:      dto.To,
		Subject: subject,
		Body:    body,
	})

	failures := make([]string, 0, len(out.Failures))
	for _, f := range out.Failures {
		failures = append(failures, f.Error())
	}
	response.OK(c, gin.H{
		"sent":     out.Sent,
		"via":      out.Via,
		"log_id":   out.LogID,
		"failures": failures,
	})
}
