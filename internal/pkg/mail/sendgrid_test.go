package mail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendGridTransport_Payload(t *testing.T) {
	var (
		gotAuth string
		gotBody map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewSendGridTransport("SG.test", srv.URL)
	n, err := tr.Send(context.Background(), Message{
		From:    "portal@example.edu",
		To:      []string{"a@example.edu", " ", "b@example.edu"},
		Subject: "New file uploaded: Algebra",
		Body:    "Title: Algebra",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Bearer SG.test", gotAuth)

	expected := map[string]interface{}{
		"personalizations": []interface{}{
			map[string]interface{}{"to": []interface{}{
				map[string]interface{}{"email": "a@example.edu"},
				map[string]interface{}{"email": "b@example.edu"},
			}},
		},
		"from":    map[string]interface{}{"email": "portal@example.edu"},
		"subject": "New file uploaded: Algebra",
		"content": []interface{}{
			map[string]interface{}{"type": "text/plain", "value": "Title: Algebra"},
		},
	}
	assert.Equal(t, expected, gotBody)
}

func TestSendGridTransport_StatusHandling(t *testing.T) {
	cases := []struct {
		status int
		ok     bool
	}{
		{http.StatusOK, true},
		{http.StatusAccepted, true},
		{http.StatusCreated, false},
		{http.StatusUnauthorized, false},
		{http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"errors":[{"message":"nope"}]}`))
			}))
			defer srv.Close()

			n, err := NewSendGridTransport("k", srv.URL).Send(context.Background(), Message{
				From: "f@example.edu", To: []string{"t@example.edu"}, Subject: "s", Body: "b",
			})
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, 1, n)
				return
			}
			require.Error(t, err)
			assert.Zero(t, n)
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tc.status, statusErr.StatusCode)
			assert.Contains(t, statusErr.Body, "nope")
		})
	}
}

func TestSendGridTransport_NoRecipients(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n, err := NewSendGridTransport("k", srv.URL).Send(context.Background(), Message{From: "f@example.edu"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, called)
}
