package event

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultName is used when an event is created without a name.
	DefaultName = "Untitled Event"

	// LegacyPlaceholder is the identifier older clients stored for the local participant
	// before per-device identifiers existed.
	LegacyPlaceholder = "You"
)

// ErrInvalidSlot is returned when a slot does not belong to an event's lattice.
var ErrInvalidSlot = errors.New("slot is outside the event window")

// Event is a proposed meeting: candidate dates, a daily hour window and the
// participants available in each 15-minute slot of that window.
type Event struct {
	ID        string
	Name      string
	TimeZone  *time.Location
	StartTime int // hour of day, inclusive
	EndTime   int // hour of day, exclusive; may exceed 24 to cross midnight
	Dates     []time.Time

	avail map[SlotKey][]string
	users []string
}

// New creates an event and expands its full slot lattice, every slot starting empty.
// An unknown time zone falls back to the local zone.
func New(name string, dates []time.Time, startTime, endTime int, timeZone string) *Event {
	loc := ResolveLocation(timeZone)
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}

	ev := &Event{
		ID:        uuid.NewString(),
		Name:      name,
		TimeZone:  loc,
		StartTime: startTime,
		EndTime:   endTime,
		Dates:     normalizeDates(dates, loc),
		avail:     make(map[SlotKey][]string),
		users:     []string{},
	}
	for _, key := range ev.lattice() {
		ev.avail[key] = []string{}
	}
	return ev
}

// ResolveLocation loads an IANA zone name, falling back to time.Local.
func ResolveLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// normalizeDates strips the time component, re-anchors each date at midnight in loc,
// removes duplicates and sorts ascending.
func normalizeDates(dates []time.Time, loc *time.Location) []time.Time {
	seen := make(map[string]bool, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		y, m, day := d.Date()
		midnight := time.Date(y, m, day, 0, 0, 0, 0, loc)
		key := midnight.Format(time.DateOnly)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, midnight)
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// lattice enumerates every slot implied by Dates and the hour window.
func (e *Event) lattice() []SlotKey {
	if e.EndTime <= e.StartTime {
		return nil
	}
	keys := make([]SlotKey, 0, len(e.Dates)*(e.EndTime-e.StartTime)*4)
	for _, date := range e.Dates {
		y, m, d := date.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, e.location())
		// Offsets are elapsed time so a DST jump cannot fold two quarters onto one
		// instant. Hours past 24 land on the following day.
		for q := e.StartTime * 4; q < e.EndTime*4; q++ {
			start := midnight.Add(time.Duration(q) * SlotDuration)
			keys = append(keys, NewTimeSlot(start).Key())
		}
	}
	return keys
}

// AddUser registers a participant. It is a no-op when already present.
func (e *Event) AddUser(participant string) {
	if !slices.Contains(e.users, participant) {
		e.users = append(e.users, participant)
	}
}

// SetAvailability marks participant as available (or not) in each of slots.
//
// A slot missing from the event is created when marking available; callers that
// must reject such slots should call ValidateSlots first. Unmarking never deletes
// the slot entry itself.
func (e *Event) SetAvailability(participant string, slots []TimeSlot, isAvailable bool) {
	e.AddUser(participant)

	for _, slot := range slots {
		key := slot.Key()
		list, ok := e.avail[key]
		switch {
		case isAvailable && !ok:
			e.avail[key] = []string{participant}
		case isAvailable && !slices.Contains(list, participant):
			e.avail[key] = append(list, participant)
		case !isAvailable && ok:
			e.avail[key] = slices.DeleteFunc(list, func(p string) bool { return p == participant })
		}
	}
}

// ValidateSlots checks that every slot belongs to the event's fixed lattice.
func (e *Event) ValidateSlots(slots []TimeSlot) error {
	lattice := make(map[SlotKey]struct{})
	for _, key := range e.lattice() {
		lattice[key] = struct{}{}
	}
	for _, slot := range slots {
		if _, ok := lattice[slot.Key()]; !ok {
			return fmt.Errorf("%w: %s", ErrInvalidSlot, slot.Start.Format(time.RFC3339))
		}
	}
	return nil
}

// ReplaceParticipant overwrites everything a device has submitted: entries for deviceID,
// bare or composite ("name_deviceID"), are removed from every slot and identifier is
// then added to slots.
func (e *Event) ReplaceParticipant(deviceID, identifier string, slots []TimeSlot) {
	owned := func(p string) bool { return ownedBy(p, deviceID) && p != identifier }
	for key, list := range e.avail {
		e.avail[key] = slices.DeleteFunc(list, func(p string) bool { return ownedBy(p, deviceID) })
	}
	e.users = slices.DeleteFunc(e.users, owned)
	e.SetAvailability(identifier, slots, true)
}

// BestSlots ranks slots by participant count, most first, breaking ties by earliest start.
func (e *Event) BestSlots(limit int) []TimeSlot {
	if limit <= 0 {
		return []TimeSlot{}
	}
	keys := e.sortedKeys()
	slices.SortStableFunc(keys, func(a, b SlotKey) int {
		return len(e.avail[b]) - len(e.avail[a])
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return e.toSlots(keys)
}

// IsAvailable reports whether participant is listed in slot. The legacy placeholder
// counts as a match when participant is the local participant's id.
func (e *Event) IsAvailable(participant string, slot TimeSlot, localID string) bool {
	list, ok := e.avail[slot.Key()]
	if !ok {
		return false
	}
	if slices.Contains(list, participant) {
		return true
	}
	return localID != "" && participant == localID && slices.Contains(list, LegacyPlaceholder)
}

// SlotsFor returns every slot, ascending by start, in which participant appears either
// exactly, as the device part of a composite identifier, or as the legacy placeholder
// when participant is the local id.
func (e *Event) SlotsFor(participant, localID string) []TimeSlot {
	if participant == "" {
		return []TimeSlot{}
	}
	var keys []SlotKey
	for _, key := range e.sortedKeys() {
		for _, p := range e.avail[key] {
			if ownedBy(p, participant) || (p == LegacyPlaceholder && participant == localID) {
				keys = append(keys, key)
				break
			}
		}
	}
	return e.toSlots(keys)
}

// NormalizeLegacyIdentifiers rewrites the legacy placeholder to localID in every slot
// and in the user list, and returns how many entries were rewritten. Running it again
// has no effect.
func (e *Event) NormalizeLegacyIdentifiers(localID string) int {
	if localID == "" || localID == LegacyPlaceholder {
		return 0
	}
	total := 0
	for key, list := range e.avail {
		if out, n := replaceLegacy(list, localID); n > 0 {
			e.avail[key] = out
			total += n
		}
	}
	if out, n := replaceLegacy(e.users, localID); n > 0 {
		e.users = out
		total += n
	}
	return total
}

func replaceLegacy(list []string, localID string) ([]string, int) {
	if !slices.Contains(list, LegacyPlaceholder) {
		return list, 0
	}
	n := 0
	out := make([]string, 0, len(list))
	for _, p := range list {
		if p == LegacyPlaceholder {
			p = localID
			n++
		}
		if slices.Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out, n
}

// Users returns the registered participants in registration order.
func (e *Event) Users() []string {
	return slices.Clone(e.users)
}

// Participants returns the participants listed for slot, in insertion order.
func (e *Event) Participants(slot TimeSlot) []string {
	return slices.Clone(e.avail[slot.Key()])
}

// Slots returns every slot of the event ascending by start.
func (e *Event) Slots() []TimeSlot {
	return e.toSlots(e.sortedKeys())
}

// SlotCount is the number of slots held by the event.
func (e *Event) SlotCount() int {
	return len(e.avail)
}

func (e *Event) sortedKeys() []SlotKey {
	keys := make([]SlotKey, 0, len(e.avail))
	for key := range e.avail {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b SlotKey) int {
		switch {
		case a.less(b):
			return -1
		case b.less(a):
			return 1
		}
		return 0
	})
	return keys
}

func (e *Event) toSlots(keys []SlotKey) []TimeSlot {
	out := make([]TimeSlot, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.Slot(e.location()))
	}
	return out
}

// ComposeIdentifier builds the "name_deviceID" participant identifier. A blank
// name yields the bare device id.
func ComposeIdentifier(name, deviceID string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return deviceID
	}
	return name + "_" + deviceID
}

// ownedBy reports whether the stored identifier p refers to deviceID.
func ownedBy(p, deviceID string) bool {
	if deviceID == "" {
		return false
	}
	return p == deviceID || strings.HasSuffix(p, "_"+deviceID)
}
