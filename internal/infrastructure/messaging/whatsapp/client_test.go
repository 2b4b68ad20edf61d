package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:   url + "/",
		APIKey:    "secret",
		Instance:  "coprede_api",
		Recipient: "120363000000000000@g.us",
		RetryMax:  retries,
	}, logging.NewNopLogger(), WithRetryWait(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{}, logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))

	_, err = NewClient(Config{BaseURL: "ftp://gw", APIKey: "k", Instance: "i"}, logging.NewNopLogger())
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidConfig))
}

func TestSend_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/message/sendText/coprede_api", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("apikey"))

		var body sendTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "120363000000000000@g.us", body.Number)
		assert.Equal(t, "hello", body.Text)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	assert.NoError(t, newTestClient(t, srv.URL, 0).Send(context.Background(), "", "hello"))
}

func TestSend_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, newTestClient(t, srv.URL, 3).Send(context.Background(), "5521999999999", "hi"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"instance not connected"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestClient(t, srv.URL, 3).Send(context.Background(), "", "hi")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNotifyDeliveryFailed))
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSend_NoRecipient(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", 0)
	c.cfg.Recipient = ""
	assert.True(t, errors.IsCode(c.Send(context.Background(), "", "x"), errors.ErrCodeBadRequest))
}
