package message

import (
	"net/url"
	"strconv"
	"strings"

	"pencil-me-in-backend/internal/event"
)

// Kind distinguishes a fresh invitation from an availability update.
type Kind string

const (
	KindInvitation Kind = "invitation"
	KindUpdate     Kind = "update"
)

// QueryItem is one name/value pair of the outbound payload.
type QueryItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Payload is the ordered, flat key/value form of an event shared into a conversation.
type Payload []QueryItem

// Encode renders the payload as a query string, preserving item order.
func (p Payload) Encode() string {
	var b strings.Builder
	for i, item := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(item.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(item.Value))
	}
	return b.String()
}

// Get returns the first value stored under name.
func (p Payload) Get(name string) (string, bool) {
	for _, item := range p {
		if item.Name == name {
			return item.Value, true
		}
	}
	return "", false
}

// Message is what gets inserted into a conversation or pushed to subscribers.
type Message struct {
	Kind       Kind    `json:"kind"`
	EventID    string  `json:"eventId"`
	Caption    string  `json:"caption"`
	Subcaption string  `json:"subcaption"`
	URL        string  `json:"url"`
	Payload    Payload `json:"payload"`
}

// Invitation builds the message sent when an event is first shared.
func Invitation(ev *event.Event) Message {
	payload := header(ev)
	return Message{
		Kind:       KindInvitation,
		EventID:    ev.ID,
		Caption:    ev.Name,
		Subcaption: "Pencil in your availability",
		URL:        "?" + payload.Encode(),
		Payload:    payload,
	}
}

// Update builds the message sent after availability changed. Every non-empty slot is
// listed in start order together with its participants.
func Update(ev *event.Event) Message {
	payload := header(ev)

	idx := 0
	for _, slot := range ev.Slots() {
		participants := ev.Participants(slot)
		if len(participants) == 0 {
			continue
		}
		prefix := "slot" + strconv.Itoa(idx)
		payload = append(payload,
			QueryItem{Name: prefix + "_start", Value: unix(slot.Start.Unix())},
			QueryItem{Name: prefix + "_end", Value: unix(slot.End.Unix())},
		)
		for j, p := range participants {
			payload = append(payload, QueryItem{Name: prefix + "_user" + strconv.Itoa(j), Value: p})
		}
		idx++
	}

	return Message{
		Kind:       KindUpdate,
		EventID:    ev.ID,
		Caption:    "Updated: " + ev.Name,
		Subcaption: "Availability updated",
		URL:        "?" + payload.Encode(),
		Payload:    payload,
	}
}

func header(ev *event.Event) Payload {
	payload := Payload{
		{Name: "id", Value: ev.ID},
		{Name: "name", Value: ev.Name},
		{Name: "startTime", Value: strconv.Itoa(ev.StartTime)},
		{Name: "endTime", Value: strconv.Itoa(ev.EndTime)},
		{Name: "timeZone", Value: ev.TimeZone.String()},
	}
	for i, d := range ev.Dates {
		payload = append(payload, QueryItem{Name: "date" + strconv.Itoa(i), Value: unix(d.Unix())})
	}
	return payload
}

func unix(sec int64) string {
	return strconv.FormatInt(sec, 10)
}
