package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskchain-dispatcher/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload() domain.NotificationPayload {
	return domain.NotificationPayload{
		Notification:  domain.Notification{Title: "Chores", Body: "Time!"},
		Data:          map[string]string{"type": "group_reminder", "groupId": "g1"},
		DeliveryHints: domain.DefaultDeliveryHints(),
	}
}

func newTestSender(url string) domain.Sender {
	return NewHttpPushSender(url, "secret", 2*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHttpPushSender_Send(t *testing.T) {
	var got struct {
		Message domain.Message `json:"message"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"name":"projects/taskchain/messages/42"}`))
	}))
	defer srv.Close()

	id, err := newTestSender(srv.URL).Send(context.Background(), domain.AddressedTarget("tok123"), testPayload())

	require.NoError(t, err)
	assert.Equal(t, "projects/taskchain/messages/42", id)
	assert.Equal(t, "tok123", got.Message.Token)
	assert.Empty(t, got.Message.Topic)
	assert.Equal(t, "Chores", got.Message.Notification.Title)
	assert.Equal(t, "group_reminder", got.Message.Data["type"])
	assert.Equal(t, domain.DefaultDeliveryHints(), got.Message.DeliveryHints)
}

func TestHttpPushSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"registration-token-not-registered"}` + strings.Repeat(" ", 4096)))
	}))
	defer srv.Close()

	_, err := newTestSender(srv.URL).Send(context.Background(), domain.AddressedTarget("tok123"), testPayload())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "registration-token-not-registered")
	assert.Less(t, len(err.Error()), 1200)
}

func TestHttpPushSender_MissingMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := newTestSender(srv.URL).Send(context.Background(), domain.BroadcastTarget("g1"), testPayload())

	assert.Error(t, err)
}

func TestHttpPushSender_SingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestSender(srv.URL).Send(context.Background(), domain.BroadcastTarget("g1"), testPayload())

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestHttpPushSender_InvalidTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an invalid target")
	}))
	defer srv.Close()

	_, err := newTestSender(srv.URL).Send(context.Background(), domain.RecipientTarget{}, testPayload())

	assert.ErrorIs(t, err, domain.ErrInvalidTarget)
}
