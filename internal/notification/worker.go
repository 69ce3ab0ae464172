package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"pencil-me-in-backend/internal/event"
	"pencil-me-in-backend/internal/message"
	"pencil-me-in-backend/internal/metrics"
	"pencil-me-in-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Source is the slice of the store the workers read from.
type Source interface {
	Load(ctx context.Context, id string) (*event.Event, error)
	SubscriptionsForEvent(ctx context.Context, eventID string) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool delivers "availability updated" messages to the subscribers of an event.
type WorkerPool struct {
	size    int
	jobs    chan string
	source  Source
	webpush *webpush.Options
	sender  NotificationSender
	metrics *metrics.Recorder
	log     *zap.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, queueSize int, source Source, webpushOptions *webpush.Options, rec *metrics.Recorder, log *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize < size {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, queueSize),
		source:  source,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		metrics: rec,
		log:     log,
	}
}

// WithSender replaces the push transport. It must be called before Start.
func (wp *WorkerPool) WithSender(s NotificationSender) *WorkerPool {
	wp.sender = s
	return wp
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	wp.log.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case eventID := <-wp.jobs:
			wp.notifySubscribers(ctx, eventID)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues an event for notification. It never blocks; when the queue is
// full the job is dropped.
func (wp *WorkerPool) Dispatch(eventID string) {
	select {
	case wp.jobs <- eventID:
	default:
		wp.log.Warn("notification queue full, dropping job", zap.String("event_id", eventID))
	}
}

func (wp *WorkerPool) notifySubscribers(ctx context.Context, eventID string) {
	subscriptions, err := wp.source.SubscriptionsForEvent(ctx, eventID)
	if err != nil {
		wp.log.Error("failed to fetch subscriptions", zap.String("event_id", eventID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	ev, err := wp.source.Load(ctx, eventID)
	if err != nil {
		wp.log.Error("failed to load event for notification", zap.String("event_id", eventID), zap.Error(err))
		return
	}

	payload, err := json.Marshal(message.Update(ev))
	if err != nil {
		wp.log.Error("failed to encode notification", zap.String("event_id", eventID), zap.Error(err))
		return
	}

	wp.log.Info("sending notifications", zap.String("event_id", eventID), zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.metrics.NotificationResult("failed")
		wp.log.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		wp.metrics.NotificationResult("expired")
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.source.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	case resp.StatusCode >= 400:
		wp.metrics.NotificationResult("failed")
		wp.log.Warn("push service rejected notification", zap.String("endpoint", sub.Endpoint), zap.Int("status", resp.StatusCode))
	default:
		wp.metrics.NotificationResult("sent")
	}
}
