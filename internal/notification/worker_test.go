package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"pencil-me-in-backend/internal/db"
	"pencil-me-in-backend/internal/event"
	"pencil-me-in-backend/internal/message"
	"pencil-me-in-backend/internal/metrics"
	"pencil-me-in-backend/internal/model"
	"pencil-me-in-backend/internal/store"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

func newTestStore(t *testing.T) store.Store {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))
	return store.NewGormStore(gormDB, zap.NewNop())
}

func seedEvent(t *testing.T, s store.Store, endpoints ...string) *event.Event {
	ctx := context.Background()
	ev := event.New("Standup", []time.Time{time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)}, 9, 10, "UTC")
	ev.SetAvailability("Alice_A", ev.Slots()[:1], true)
	require.NoError(t, s.Save(ctx, ev))
	for _, ep := range endpoints {
		sub := model.PushSubscription{Endpoint: ep, P256DH: "p256dh-" + ep, Auth: "auth-" + ep}
		require.NoError(t, s.PutSubscription(ctx, sub, []string{ev.ID}))
	}
	return ev
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, 1, nil, &webpush.Options{}, nil, zap.NewNop())

	wp.Dispatch("evt-1")
	// The queue holds one job; the second is dropped instead of blocking.
	wp.Dispatch("evt-2")

	select {
	case job := <-wp.jobs:
		assert.Equal(t, "evt-1", job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
	assert.Empty(t, wp.jobs)
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	s := newTestStore(t)
	rec := metrics.New()
	wp := NewWorkerPool(1, 4, s, &webpush.Options{TTL: 60}, rec, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		wp.Wait()
	}()
	wp.Start(ctx)

	t.Run("sends the update message to every subscriber", func(t *testing.T) {
		ev := seedEvent(t, s, "https://example.com/push/1", "https://example.com/push/2")

		var wg sync.WaitGroup
		wg.Add(2)
		var mu sync.Mutex
		var endpoints []string

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				var msg message.Message
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, message.KindUpdate, msg.Kind)
				assert.Equal(t, ev.ID, msg.EventID)
				assert.Equal(t, "Updated: Standup", msg.Caption)
				assert.Equal(t, "p256dh-"+sub.Endpoint, sub.Keys.P256dh)
				assert.Equal(t, 60, options.TTL)

				mu.Lock()
				endpoints = append(endpoints, sub.Endpoint)
				mu.Unlock()
				return response(http.StatusCreated), nil
			},
		}

		wp.Dispatch(ev.ID)
		wg.Wait()
		assert.ElementsMatch(t, []string{"https://example.com/push/1", "https://example.com/push/2"}, endpoints)
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		ev := seedEvent(t, s, "https://example.com/expired")

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}

		wp.Dispatch(ev.ID)

		assert.Eventually(t, func() bool {
			_, err := s.GetSubscription(context.Background(), "https://example.com/expired")
			return errors.Is(err, store.ErrNotFound)
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("keeps subscription when sending fails", func(t *testing.T) {
		ev := seedEvent(t, s, "https://example.com/flaky")

		var wg sync.WaitGroup
		wg.Add(1)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				return nil, errors.New("connection refused")
			},
		}

		wp.Dispatch(ev.ID)
		wg.Wait()

		// Give the worker a moment to finish handling the error.
		time.Sleep(20 * time.Millisecond)
		_, err := s.GetSubscription(context.Background(), "https://example.com/flaky")
		assert.NoError(t, err)
	})

	t.Run("skips events without subscribers", func(t *testing.T) {
		ev := seedEvent(t, s)

		called := make(chan struct{}, 1)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				called <- struct{}{}
				return response(http.StatusCreated), nil
			},
		}

		wp.Dispatch(ev.ID)
		select {
		case <-called:
			t.Fatal("sender should not be called")
		case <-time.After(100 * time.Millisecond):
		}
	})
}
