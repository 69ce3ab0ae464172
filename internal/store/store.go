package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pencil-me-in-backend/internal/event"
	"pencil-me-in-backend/internal/model"
)

var (
	// ErrNotFound is returned when no record exists for the given key.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt is returned when a stored event cannot be decoded.
	ErrCorrupt = errors.New("stored event is corrupt")
)

// EventStore persists whole events keyed by id. Every Save overwrites the full record.
type EventStore interface {
	Save(ctx context.Context, ev *event.Event) error
	Load(ctx context.Context, id string) (*event.Event, error)
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]*event.Event, error)
}

// SubscriptionStore keeps web push subscriptions and the events they follow.
type SubscriptionStore interface {
	PutSubscription(ctx context.Context, sub model.PushSubscription, eventIDs []string) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	SubscriptionsForEvent(ctx context.Context, eventID string) ([]model.PushSubscription, error)
}

// Store defines the interface for all database operations.
type Store interface {
	EventStore
	SubscriptionStore
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, log *zap.Logger) Store {
	return &gormStore{db: db, log: log}
}

// Save inserts the event or overwrites the existing record with the same id.
func (s *gormStore) Save(ctx context.Context, ev *event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
	}

	record := model.EventRecord{ID: ev.ID, Name: ev.Name, Payload: payload}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "payload", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to save event %s: %w", ev.ID, err)
	}
	return nil
}

// Load fetches a single event.
func (s *gormStore) Load(ctx context.Context, id string) (*event.Event, error) {
	var record model.EventRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", id, err)
	}
	return decodeEvent(record.ID, record.Payload)
}

// Delete removes the event and every subscription link pointing at it.
func (s *gormStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&model.SubscriptionEvent{}).Error; err != nil {
			return fmt.Errorf("failed to delete subscription links for event %s: %w", id, err)
		}
		res := tx.Where("id = ?", id).Delete(&model.EventRecord{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete event %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// LoadAll returns every event in creation order. Records that fail to decode are
// logged and skipped.
func (s *gormStore) LoadAll(ctx context.Context) ([]*event.Event, error) {
	var records []model.EventRecord
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*event.Event, 0, len(records))
	for _, r := range records {
		ev, err := decodeEvent(r.ID, r.Payload)
		if err != nil {
			s.log.Warn("skipping unreadable event", zap.String("event_id", r.ID), zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// PutSubscription creates or replaces a subscription together with the events it follows.
func (s *gormStore) PutSubscription(ctx context.Context, sub model.PushSubscription, eventIDs []string) error {
	sub.Events = nil
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "device_id"}),
		}).Create(&sub).Error; err != nil {
			return err
		}

		if err := tx.Where("endpoint = ?", sub.Endpoint).Delete(&model.SubscriptionEvent{}).Error; err != nil {
			return err
		}

		links := make([]model.SubscriptionEvent, 0, len(eventIDs))
		seen := make(map[string]bool, len(eventIDs))
		for _, id := range eventIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			links = append(links, model.SubscriptionEvent{Endpoint: sub.Endpoint, EventID: id})
		}
		if len(links) == 0 {
			return nil
		}
		return tx.Create(&links).Error
	})
}

// DeleteSubscription removes a subscription and its event links.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("endpoint = ?", endpoint).Delete(&model.SubscriptionEvent{}).Error; err != nil {
			return err
		}
		res := tx.Where("endpoint = ?", endpoint).Delete(&model.PushSubscription{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetSubscription fetches a subscription with its event links.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Events").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sub, ErrNotFound
	}
	return sub, err
}

// SubscriptionsForEvent lists the subscriptions following an event.
func (s *gormStore) SubscriptionsForEvent(ctx context.Context, eventID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_events se ON se.endpoint = push_subscriptions.endpoint").
		Where("se.event_id = ?", eventID).
		Find(&subs).Error
	return subs, err
}

func decodeEvent(id string, payload []byte) (*event.Event, error) {
	var ev event.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, id, err)
	}
	return &ev, nil
}
