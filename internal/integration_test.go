package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pencil-me-in-backend/config"
	"pencil-me-in-backend/internal/db"
	"pencil-me-in-backend/internal/message"
	"pencil-me-in-backend/internal/metrics"
	"pencil-me-in-backend/internal/model"
	"pencil-me-in-backend/internal/notification"
	"pencil-me-in-backend/internal/planner"
	"pencil-me-in-backend/internal/store"
)

type capturingSender struct {
	mu       sync.Mutex
	messages []message.Message
	got      chan struct{}
}

func (s *capturingSender) Send(payload []byte, _ *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
	var msg message.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.got <- struct{}{}
	return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(bytes.NewBufferString(""))}, nil
}

// TestSubmissionLifecycle creates an event, collects availability from two devices,
// and checks that a subscriber receives the update and that the state survives a
// restart against the same database file.
func TestSubmissionLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "pencil.db"),
		MaxOpenConns: 1,
	}}
	require.NoError(t, cfg.Normalize())

	gormDB, err := db.Init(&cfg.Database, zap.NewNop())
	require.NoError(t, err)
	appStore := store.NewGormStore(gormDB, zap.NewNop())
	rec := metrics.New()

	sender := &capturingSender{got: make(chan struct{}, 8)}
	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, appStore, &webpush.Options{}, rec, zap.NewNop()).
		WithSender(sender)
	pool.Start(ctx)

	svc := planner.NewService(appStore, pool, rec, zap.NewNop(), cfg.Events.MaxDates)

	ev, err := svc.Create(ctx, planner.CreateInput{
		Name:      "Standup",
		Dates:     []time.Time{time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		StartTime: 9,
		EndTime:   10,
		TimeZone:  "America/New_York",
	})
	require.NoError(t, err)

	require.NoError(t, appStore.PutSubscription(ctx, model.PushSubscription{
		Endpoint: "https://push.example/watcher", P256DH: "k", Auth: "a", DeviceID: "W",
	}, []string{ev.ID}))

	slots := ev.Slots()
	_, err = svc.Submit(ctx, ev.ID, planner.Submission{DeviceID: "A", Name: "Alice", Slots: slots[0:2]})
	require.NoError(t, err)
	waitFor(t, sender.got)

	_, err = svc.Submit(ctx, ev.ID, planner.Submission{DeviceID: "B", Name: "Bob", Slots: slots[1:3]})
	require.NoError(t, err)
	waitFor(t, sender.got)

	sender.mu.Lock()
	last := sender.messages[len(sender.messages)-1]
	sender.mu.Unlock()
	assert.Equal(t, "Updated: Standup", last.Caption)
	user, ok := last.Payload.Get("slot1_user1")
	require.True(t, ok)
	assert.Equal(t, "Bob_B", user)
	tz, _ := last.Payload.Get("timeZone")
	assert.Equal(t, "America/New_York", tz)

	cancel()
	pool.Wait()

	// Reopen the same database as a restarted process would.
	reopened, err := db.Init(&cfg.Database, zap.NewNop())
	require.NoError(t, err)
	restarted := planner.NewService(store.NewGormStore(reopened, zap.NewNop()), nil, nil, zap.NewNop(), 0)

	best, err := restarted.BestSlots(context.Background(), ev.ID, "", 1)
	require.NoError(t, err)
	require.Len(t, best, 1)
	assert.True(t, best[0].Slot.Equal(slots[1]))
	assert.Equal(t, []string{"Alice_A", "Bob_B"}, best[0].Participants)

	loaded, err := restarted.Get(context.Background(), ev.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loaded.TimeZone.String())
	assert.Equal(t, 13, loaded.Slots()[0].Start.In(time.UTC).Hour())
	mine := loaded.SlotsFor("A", "")
	require.Len(t, mine, 2)
	assert.True(t, mine[0].Equal(slots[0]))
	assert.True(t, mine[1].Equal(slots[1]))
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push notification")
	}
}
