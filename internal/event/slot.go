package event

import (
	"strconv"
	"strings"
	"time"
)

// SlotDuration is the width of a single availability slot.
const SlotDuration = 15 * time.Minute

// TimeSlot is the half-open interval [Start, End) a participant can mark as available.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeSlot returns the slot beginning at start.
func NewTimeSlot(start time.Time) TimeSlot {
	return TimeSlot{Start: start, End: start.Add(SlotDuration)}
}

// Key derives the map key for the slot.
func (s TimeSlot) Key() SlotKey {
	return SlotKey{Start: s.Start.Unix(), End: s.End.Unix()}
}

// Equal reports whether both slots cover the same instants.
func (s TimeSlot) Equal(other TimeSlot) bool {
	return s.Key() == other.Key()
}

// SlotKey identifies a slot by its endpoints in unix seconds. Unlike time.Time it
// compares equal regardless of location or monotonic clock readings.
type SlotKey struct {
	Start int64
	End   int64
}

// String renders the key as "<start>_<end>".
func (k SlotKey) String() string {
	return strconv.FormatInt(k.Start, 10) + "_" + strconv.FormatInt(k.End, 10)
}

// Slot converts the key back into a TimeSlot expressed in loc.
func (k SlotKey) Slot(loc *time.Location) TimeSlot {
	return TimeSlot{
		Start: time.Unix(k.Start, 0).In(loc),
		End:   time.Unix(k.End, 0).In(loc),
	}
}

func (k SlotKey) less(other SlotKey) bool {
	if k.Start != other.Start {
		return k.Start < other.Start
	}
	return k.End < other.End
}

// ParseSlotKey parses the form produced by SlotKey.String.
func ParseSlotKey(raw string) (SlotKey, bool) {
	startRaw, endRaw, ok := strings.Cut(raw, "_")
	if !ok {
		return SlotKey{}, false
	}
	start, err := strconv.ParseInt(startRaw, 10, 64)
	if err != nil {
		return SlotKey{}, false
	}
	end, err := strconv.ParseInt(endRaw, 10, 64)
	if err != nil {
		return SlotKey{}, false
	}
	return SlotKey{Start: start, End: end}, true
}
