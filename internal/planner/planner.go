package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"pencil-me-in-backend/internal/event"
	"pencil-me-in-backend/internal/message"
	"pencil-me-in-backend/internal/metrics"
	"pencil-me-in-backend/internal/parse"
	"pencil-me-in-backend/internal/store"
)

var (
	// ErrInvalidWindow is returned when an event's dates or hour window cannot form a lattice.
	ErrInvalidWindow = errors.New("invalid event window")
	// ErrMissingParticipant is returned when a mutation names no participant or device.
	ErrMissingParticipant = errors.New("participant is required")
	// ErrUnknownKind is returned by Share for an unrecognised message kind.
	ErrUnknownKind = errors.New("unknown message kind")
	// ErrInvalidDeviceID is returned for device ids that would be ambiguous inside a
	// composed Name_deviceID identifier.
	ErrInvalidDeviceID = errors.New("device id must not contain an underscore")
)

// Notifier is told about events whose availability changed.
type Notifier interface {
	Dispatch(eventID string)
}

// CreateInput describes a new event.
type CreateInput struct {
	Name      string
	Dates     []time.Time
	StartTime int
	EndTime   int
	TimeZone  string
}

// Submission is one device's complete availability for an event.
type Submission struct {
	DeviceID string
	Name     string
	Slots    []event.TimeSlot
}

// RankedSlot is a slot together with who can make it.
type RankedSlot struct {
	Slot         event.TimeSlot `json:"slot"`
	Count        int            `json:"count"`
	Participants []string       `json:"participants"`
}

// Participant is a registered identifier and how it should be shown to the caller.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	SlotCount   int    `json:"slotCount"`
}

// Service runs every event operation against an explicit store.
type Service struct {
	store    store.EventStore
	notifier Notifier
	metrics  *metrics.Recorder
	log      *zap.Logger
	maxDates int

	// Writes to the same event are serialised within this process.
	locks sync.Map
}

// NewService wires a planner. notifier and rec may be nil.
func NewService(s store.EventStore, notifier Notifier, rec *metrics.Recorder, log *zap.Logger, maxDates int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, notifier: notifier, metrics: rec, log: log, maxDates: maxDates}
}

func (s *Service) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Create validates the window and persists a new event with an empty lattice.
func (s *Service) Create(ctx context.Context, in CreateInput) (*event.Event, error) {
	if err := s.validateWindow(in); err != nil {
		return nil, err
	}

	ev := event.New(in.Name, in.Dates, in.StartTime, in.EndTime, in.TimeZone)
	if err := s.store.Save(ctx, ev); err != nil {
		return nil, err
	}
	s.metrics.EventCreated()
	s.log.Info("event created",
		zap.String("event_id", ev.ID),
		zap.Int("dates", len(ev.Dates)),
		zap.Int("slots", ev.SlotCount()),
	)
	return ev, nil
}

func (s *Service) validateWindow(in CreateInput) error {
	switch {
	case len(in.Dates) == 0:
		return fmt.Errorf("%w: at least one date is required", ErrInvalidWindow)
	case s.maxDates > 0 && len(in.Dates) > s.maxDates:
		return fmt.Errorf("%w: at most %d dates are allowed", ErrInvalidWindow, s.maxDates)
	case in.StartTime < 0 || in.StartTime >= 24:
		return fmt.Errorf("%w: start hour %d must be within 0-23", ErrInvalidWindow, in.StartTime)
	case in.EndTime <= in.StartTime || in.EndTime > in.StartTime+24:
		return fmt.Errorf("%w: end hour %d must be after start and within 24 hours of it", ErrInvalidWindow, in.EndTime)
	}
	return nil
}

// Get loads an event. When localID is set, legacy placeholders are rewritten to it in
// the returned copy only.
func (s *Service) Get(ctx context.Context, id, localID string) (*event.Event, error) {
	ev, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if localID != "" {
		if n := ev.NormalizeLegacyIdentifiers(localID); n > 0 {
			s.log.Debug("normalized legacy identifiers", zap.String("event_id", id), zap.Int("replaced", n))
		}
	}
	return ev, nil
}

// List returns every stored event. A store failure is logged and yields an empty list.
func (s *Service) List(ctx context.Context, localID string) []*event.Event {
	events, err := s.store.LoadAll(ctx)
	if err != nil {
		s.log.Error("failed to list events", zap.Error(err))
		return []*event.Event{}
	}
	if localID != "" {
		for _, ev := range events {
			ev.NormalizeLegacyIdentifiers(localID)
		}
	}
	return events
}

// Delete removes an event permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.locks.Delete(id)
		}
		return err
	}
	s.locks.Delete(id)
	s.log.Info("event deleted", zap.String("event_id", id))
	return nil
}

// Rename changes the display name. A blank name resets it to the default.
func (s *Service) Rename(ctx context.Context, id, name string) (*event.Event, error) {
	return s.update(ctx, id, "", func(ev *event.Event) error {
		name = strings.TrimSpace(name)
		if name == "" {
			name = event.DefaultName
		}
		ev.Name = name
		return nil
	})
}

// SetAvailability marks one participant in or out of the given slots.
func (s *Service) SetAvailability(ctx context.Context, id, participant string, slots []event.TimeSlot, available bool) (*event.Event, error) {
	if strings.TrimSpace(participant) == "" {
		return nil, ErrMissingParticipant
	}
	ev, err := s.update(ctx, id, "", func(ev *event.Event) error {
		if err := ev.ValidateSlots(slots); err != nil {
			return err
		}
		ev.SetAvailability(participant, slots, available)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(id)
	return ev, nil
}

// Submit replaces everything the submitting device previously entered. Legacy
// placeholders are first migrated to the device id so they are overwritten too.
func (s *Service) Submit(ctx context.Context, id string, sub Submission) (*event.Event, error) {
	deviceID := strings.TrimSpace(sub.DeviceID)
	if deviceID == "" {
		return nil, ErrMissingParticipant
	}
	if strings.Contains(deviceID, "_") {
		return nil, ErrInvalidDeviceID
	}
	ev, err := s.update(ctx, id, deviceID, func(ev *event.Event) error {
		if err := ev.ValidateSlots(sub.Slots); err != nil {
			return err
		}
		ev.ReplaceParticipant(deviceID, event.ComposeIdentifier(sub.Name, deviceID), sub.Slots)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.SubmissionSaved()
	s.log.Info("availability submitted",
		zap.String("event_id", id),
		zap.String("device_id", deviceID),
		zap.Int("slots", len(sub.Slots)),
	)
	s.notify(id)
	return ev, nil
}

// update performs a locked load, mutate, save cycle.
func (s *Service) update(ctx context.Context, id, localID string, mutate func(*event.Event) error) (*event.Event, error) {
	unlock := s.lock(id)
	defer unlock()

	ev, err := s.Get(ctx, id, localID)
	if err != nil {
		// Unknown ids must not leave a mutex behind.
		if errors.Is(err, store.ErrNotFound) {
			s.locks.Delete(id)
		}
		return nil, err
	}
	if err := mutate(ev); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Service) notify(id string) {
	if s.notifier != nil {
		s.notifier.Dispatch(id)
	}
}

// BestSlots returns up to limit slots ranked by participant count.
func (s *Service) BestSlots(ctx context.Context, id, localID string, limit int) ([]RankedSlot, error) {
	ev, err := s.Get(ctx, id, localID)
	if err != nil {
		return nil, err
	}
	best := ev.BestSlots(limit)
	out := make([]RankedSlot, 0, len(best))
	for _, slot := range best {
		participants := ev.Participants(slot)
		out = append(out, RankedSlot{Slot: slot, Count: len(participants), Participants: participants})
	}
	return out, nil
}

// SlotsFor lists the slots a participant marked, in start order.
func (s *Service) SlotsFor(ctx context.Context, id, participant, localID string) ([]event.TimeSlot, error) {
	ev, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return ev.SlotsFor(participant, localID), nil
}

// IsAvailable reports whether participant marked slot.
func (s *Service) IsAvailable(ctx context.Context, id, participant string, slot event.TimeSlot, localID string) (bool, error) {
	ev, err := s.store.Load(ctx, id)
	if err != nil {
		return false, err
	}
	return ev.IsAvailable(participant, slot, localID), nil
}

// Participants lists registered identifiers with their display names.
func (s *Service) Participants(ctx context.Context, id, localID string) ([]Participant, error) {
	ev, err := s.Get(ctx, id, localID)
	if err != nil {
		return nil, err
	}
	users := ev.Users()
	out := make([]Participant, 0, len(users))
	for _, u := range users {
		out = append(out, Participant{
			ID:          u,
			DisplayName: parse.DisplayName(u, localID),
			SlotCount:   len(ev.SlotsFor(u, "")),
		})
	}
	return out, nil
}

func (s *Service) Heatmap(ctx context.Context, id, localID string) (event.Heatmap, error) {
	ev, err := s.Get(ctx, id, localID)
	if err != nil {
		return event.Heatmap{}, err
	}
	return ev.Heatmap(), nil
}

// Share builds the conversation message for an event.
func (s *Service) Share(ctx context.Context, id string, kind message.Kind) (message.Message, error) {
	ev, err := s.store.Load(ctx, id)
	if err != nil {
		return message.Message{}, err
	}
	switch kind {
	case message.KindInvitation:
		return message.Invitation(ev), nil
	case message.KindUpdate, "":
		return message.Update(ev), nil
	default:
		return message.Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
