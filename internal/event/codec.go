package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// eventJSON is the persisted shape of an Event. Slot keys are "<startUnix>_<endUnix>".
type eventJSON struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	StartTime          int                 `json:"startTime"`
	EndTime            int                 `json:"endTime"`
	Dates              []string            `json:"dates"`
	Avail              map[string][]string `json:"avail"`
	Users              []string            `json:"users"`
	TimeZoneIdentifier string              `json:"timeZoneIdentifier"`
}

// MarshalJSON implements json.Marshaler.
func (e *Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		ID:                 e.ID,
		Name:               e.Name,
		StartTime:          e.StartTime,
		EndTime:            e.EndTime,
		Dates:              make([]string, 0, len(e.Dates)),
		Avail:              make(map[string][]string, len(e.avail)),
		Users:              e.Users(),
		TimeZoneIdentifier: e.location().String(),
	}
	for _, d := range e.Dates {
		out.Dates = append(out.Dates, d.Format(time.DateOnly))
	}
	for key, list := range e.avail {
		if list == nil {
			list = []string{}
		}
		out.Avail[key.String()] = list
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Malformed slot keys are dropped; an
// unknown zone falls back to the local zone.
func (e *Event) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	loc := ResolveLocation(in.TimeZoneIdentifier)
	dates := make([]time.Time, 0, len(in.Dates))
	for _, raw := range in.Dates {
		d, err := time.ParseInLocation(time.DateOnly, raw, loc)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", raw, err)
		}
		dates = append(dates, d)
	}

	avail := make(map[SlotKey][]string, len(in.Avail))
	for raw, list := range in.Avail {
		key, ok := ParseSlotKey(raw)
		if !ok {
			continue
		}
		if list == nil {
			list = []string{}
		}
		avail[key] = list
	}

	users := in.Users
	if users == nil {
		users = []string{}
	}

	*e = Event{
		ID:        in.ID,
		Name:      in.Name,
		TimeZone:  loc,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Dates:     dates,
		avail:     avail,
		users:     users,
	}
	return nil
}

func (e *Event) location() *time.Location {
	if e.TimeZone == nil {
		return time.Local
	}
	return e.TimeZone
}
