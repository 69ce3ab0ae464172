package event

import "time"

// HeatmapCell is one slot of the availability grid with its participant count.
type HeatmapCell struct {
	Slot  TimeSlot `json:"slot"`
	Count int      `json:"count"`
}

// HeatmapDay groups the cells whose slot starts on Date.
type HeatmapDay struct {
	Date  string        `json:"date"`
	Cells []HeatmapCell `json:"cells"`
}

// Heatmap is the availability grid of an event, one column per calendar day.
type Heatmap struct {
	Days         []HeatmapDay `json:"days"`
	MaxCount     int          `json:"maxCount"`
	Participants int          `json:"participants"`
}

// Heatmap groups the event's slots by the calendar day of their start in the event zone.
// Slots of a window crossing midnight land in the following day's column.
func (e *Event) Heatmap() Heatmap {
	hm := Heatmap{Days: []HeatmapDay{}, Participants: len(e.users)}
	loc := e.location()

	for _, key := range e.sortedKeys() {
		slot := key.Slot(loc)
		count := len(e.avail[key])
		if count > hm.MaxCount {
			hm.MaxCount = count
		}

		day := slot.Start.Format(time.DateOnly)
		if n := len(hm.Days); n == 0 || hm.Days[n-1].Date != day {
			hm.Days = append(hm.Days, HeatmapDay{Date: day})
		}
		last := &hm.Days[len(hm.Days)-1]
		last.Cells = append(last.Cells, HeatmapCell{Slot: slot, Count: count})
	}
	return hm
}
