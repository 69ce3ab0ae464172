package message

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pencil-me-in-backend/internal/event"
)

func newEvent(t *testing.T) *event.Event {
	t.Helper()
	ev := event.New("Team Lunch & Learn", []time.Time{
		time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}, 12, 13, "UTC")
	return ev
}

func TestInvitation(t *testing.T) {
	ev := newEvent(t)
	msg := Invitation(ev)

	assert.Equal(t, KindInvitation, msg.Kind)
	assert.Equal(t, "Team Lunch & Learn", msg.Caption)
	assert.Equal(t, "Pencil in your availability", msg.Subcaption)

	names := make([]string, 0, len(msg.Payload))
	for _, item := range msg.Payload {
		names = append(names, item.Name)
	}
	assert.Equal(t, []string{"id", "name", "startTime", "endTime", "timeZone", "date0", "date1"}, names)

	d0, _ := msg.Payload.Get("date0")
	assert.Equal(t, strconv.FormatInt(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC).Unix(), 10), d0)
	assert.True(t, strings.HasPrefix(msg.URL, "?id="+ev.ID+"&name=Team+Lunch+%26+Learn&startTime=12&endTime=13&timeZone=UTC&date0="))
}

func TestUpdate_ListsNonEmptySlotsInOrder(t *testing.T) {
	ev := newEvent(t)
	late := event.NewTimeSlot(time.Date(2025, 3, 11, 12, 45, 0, 0, time.UTC))
	early := event.NewTimeSlot(time.Date(2025, 3, 10, 12, 15, 0, 0, time.UTC))
	ev.SetAvailability("Bo_dev-2", []event.TimeSlot{late}, true)
	ev.SetAvailability("Al_dev-1", []event.TimeSlot{late, early}, true)

	msg := Update(ev)
	assert.Equal(t, KindUpdate, msg.Kind)
	assert.Equal(t, "Updated: Team Lunch & Learn", msg.Caption)
	assert.Equal(t, "Availability updated", msg.Subcaption)

	start0, ok := msg.Payload.Get("slot0_start")
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(early.Start.Unix(), 10), start0)
	end0, _ := msg.Payload.Get("slot0_end")
	assert.Equal(t, strconv.FormatInt(early.End.Unix(), 10), end0)
	user00, _ := msg.Payload.Get("slot0_user0")
	assert.Equal(t, "Al_dev-1", user00)

	start1, _ := msg.Payload.Get("slot1_start")
	assert.Equal(t, strconv.FormatInt(late.Start.Unix(), 10), start1)
	user10, _ := msg.Payload.Get("slot1_user0")
	user11, _ := msg.Payload.Get("slot1_user1")
	assert.Equal(t, "Bo_dev-2", user10)
	assert.Equal(t, "Al_dev-1", user11)

	_, ok = msg.Payload.Get("slot2_start")
	assert.False(t, ok)
}

func TestPayloadEncode(t *testing.T) {
	p := Payload{{Name: "b", Value: "x y"}, {Name: "a", Value: "1/2"}}
	assert.Equal(t, "b=x+y&a=1%2F2", p.Encode())
	assert.Equal(t, "", Payload{}.Encode())
}
