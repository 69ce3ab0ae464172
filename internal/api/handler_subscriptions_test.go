package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutSubscription_InvalidBody(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPut, "/api/subscriptions", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/subscriptions", "", gin.H{"endpoint": "https://push.example/1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscriptionLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	ev := ts.createStandup(t)
	endpoint := "https://push.example/sub?token=a b"

	w := ts.do(t, http.MethodPut, "/api/subscriptions", "dev-1", gin.H{
		"endpoint": endpoint, "p256dh": "key", "auth": "secret", "subscribed_events": []string{ev.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/subscriptions?endpoint=https%3A%2F%2Fpush.example%2Fsub%3Ftoken%3Da%20b", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"subscribed_events":["`+ev.ID+`"]}`, w.Body.String())

	sub, err := ts.store.GetSubscription(context.Background(), endpoint)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", sub.DeviceID)

	w = ts.do(t, http.MethodGet, "/api/subscriptions", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/subscriptions", "", gin.H{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/subscriptions", "", gin.H{"endpoint": endpoint})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/subscriptions?endpoint=unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	w := newTestServer(t, nil).do(t, http.MethodGet, "/api/vapid_public_key", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ts := newTestServer(t, &webpush.Options{VAPIDPublicKey: "BPublic", TTL: 3600})
	w = ts.do(t, http.MethodGet, "/api/vapid_public_key", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"BPublic","ttl":3600}`, w.Body.String())
}
