package caldav

import (
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"github.com/tazhate/tasksync/internal/domain"
)

const (
	timeRangeFormat = "20060102T150405Z"
	eventWindowDays = 30
)

// FormatUTC renders t the way time-range filters carry it on the wire
func FormatUTC(t time.Time) string {
	return t.UTC().Format(timeRangeFormat)
}

// EventWindow returns local midnight of now's day and the instant
// eventWindowDays later.
func EventWindow(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, eventWindowDays)
}

// componentName maps a provider kind to its iCalendar component name
func componentName(kind domain.ComponentType) string {
	if kind == domain.ComponentEvent {
		return ical.CompEvent
	}
	return ical.CompToDo
}

// Always ask for whole objects; the mapper needs every property.
func fullCalendarRequest() caldav.CalendarCompRequest {
	return caldav.CalendarCompRequest{
		Name:     ical.CompCalendar,
		AllProps: true,
		AllComps: true,
	}
}

func calendarQuery(comp caldav.CompFilter) *caldav.CalendarQuery {
	return &caldav.CalendarQuery{
		CompRequest: fullCalendarRequest(),
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{comp},
		},
	}
}

// todosQuery selects every VTODO. go-webdav does not put is-not-defined
// on the wire, so open-only filtering happens in Todos.
func todosQuery() *caldav.CalendarQuery {
	return calendarQuery(caldav.CompFilter{Name: ical.CompToDo})
}

func uidQuery(kind domain.ComponentType, uid string) *caldav.CalendarQuery {
	return calendarQuery(caldav.CompFilter{
		Name: componentName(kind),
		Props: []caldav.PropFilter{{
			Name:      ical.PropUID,
			TextMatch: &caldav.TextMatch{Text: uid},
		}},
	})
}

func eventWindowQuery(start, end time.Time) *caldav.CalendarQuery {
	return calendarQuery(caldav.CompFilter{
		Name:  ical.CompEvent,
		Start: start.UTC(),
		End:   end.UTC(),
	})
}
