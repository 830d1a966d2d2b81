package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campusdocs/portal/internal/middleware"
	"github.com/campusdocs/portal/internal/models"
	sessionpkg "github.com/campusdocs/portal/internal/pkg/session"
	"github.com/campusdocs/portal/internal/testhelpers"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHandler_TestSendAndBrowse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testhelpers.NewDB(t)
	admin := testhelpers.CreateAdmin(t, db, "root", "root@example.edu")
	student := testhelpers.CreateUser(t, db, "zoe", "zoe@example.edu", true)
	adminToken, _, err := sessionpkg.Issue(context.Background(), db, admin.ID, "", "", time.Hour)
	require.NoError(t, err)
	studentToken, _, err := sessionpkg.Issue(context.Background(), db, student.ID, "", "", time.Hour)
	require.NoError(t, err)

	primary := &mockTransport{name: "smtp"}
	primary.On("Send", mock.Anything, mock.Anything).Return(0, errors.New("refused")).Once()
	fallback := &mockTransport{name: "sendgrid"}
	fallback.On("Send", mock.Anything, mock.Anything).Return(1, nil).Once()

	log := NewDeliveryLog(db)
	notifier := NewNotifier(log, "portal@example.edu", primary, WithFallback(fallback))
	r := gin.New()
	NewHandler(log, notifier, "portal@example.edu").RegisterRoutes(r.Group("/api/v1"), middleware.Auth(db), middleware.RequireAdmin())

	do := func(method, path, token string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/api/v1/mail-logs", studentToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/api/v1/mail-logs/test", adminToken, []byte(`{"to":["not-an-email"]}`)).Code)

	w := do(http.MethodPost, "/api/v1/mail-logs/test", adminToken, []byte(`{"to":["ops@example.edu"]}`))
	require.Equal(t, http.StatusOK, w.Code)
	var sent struct {
		Sent     bool     `json:"sent"`
		Via      string   `json:"via"`
		LogID    string   `json:"log_id"`
		Failures []string `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sent))
	assert.True(t, sent.Sent)
	assert.Equal(t, "sendgrid", sent.Via)
	require.Len(t, sent.Failures, 1)
	assert.Contains(t, sent.Failures[0], "primary_transport (smtp): refused")

	w = do(http.MethodGet, "/api/v1/mail-logs?sent=true", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data []models.DeliveryLogModel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, sent.LogID, page.Data[0].ID)

	w = do(http.MethodGet, "/api/v1/mail-logs/"+sent.LogID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Fallback: sent via SendGrid.")

	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/v1/mail-logs/missing", adminToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/api/v1/mail-logs?sent=maybe", adminToken, nil).Code)
}
