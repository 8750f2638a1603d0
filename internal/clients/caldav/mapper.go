package caldav

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tazhate/tasksync/internal/domain"
)

const (
	defaultAllDayDuration = 24 * time.Hour
	defaultTimedDuration  = time.Hour
)

var timeNow = time.Now

// firstChild returns the first sub-component named name
func firstChild(cal *ical.Calendar, name string) *ical.Component {
	if cal == nil {
		return nil
	}
	for _, child := range cal.Children {
		if child.Name == name {
			return child
		}
	}
	return nil
}

func requireChild(raw *RawComponent, name string) (*ical.Component, error) {
	comp := firstChild(raw.Data, name)
	if comp == nil {
		return nil, fmt.Errorf("%w: no %s in %s", ErrMalformedComponent, name, raw.Path)
	}
	return comp, nil
}

func propText(comp *ical.Component, name string) string {
	prop := comp.Props.Get(name)
	if prop == nil {
		return ""
	}
	text, err := prop.Text()
	if err != nil {
		return prop.Value
	}
	return text
}

// propInt treats absent, non-numeric and zero alike
func propInt(comp *ical.Component, name string) int {
	prop := comp.Props.Get(name)
	if prop == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(prop.Value))
	if err != nil {
		return 0
	}
	return n
}

// propTime parses a DATE or DATE-TIME property. Date-only values are
// reported with dateOnly set and land on local midnight.
func propTime(prop *ical.Prop) (t time.Time, dateOnly bool, err error) {
	if prop.ValueType() == ical.ValueDate || len(prop.Value) == len("20060102") {
		t, err = time.ParseInLocation("20060102", prop.Value, time.Local)
		return t, true, err
	}
	t, err = prop.DateTime(time.Local)
	return t, false, err
}

func optionalTime(comp *ical.Component, name string) *time.Time {
	prop := comp.Props.Get(name)
	if prop == nil {
		return nil
	}
	t, _, err := propTime(prop)
	if err != nil {
		return nil
	}
	return &t
}

// categories reads the first CATEGORIES property only
func categories(comp *ical.Component) []string {
	prop := comp.Props.Get(ical.PropCategories)
	if prop == nil {
		return []string{}
	}
	list, err := prop.TextList()
	if err != nil {
		return strings.Split(prop.Value, ",")
	}
	return list
}

// ParseTodo maps the first VTODO of raw
func ParseTodo(raw *RawComponent) (*domain.Todo, error) {
	todo, err := requireChild(raw, ical.CompToDo)
	if err != nil {
		return nil, err
	}

	return &domain.Todo{
		ID:              propText(todo, ical.PropUID),
		Completed:       todo.Props.Get(ical.PropCompleted) != nil,
		URL:             raw.URL,
		Summary:         propText(todo, ical.PropSummary),
		Start:           optionalTime(todo, ical.PropDateTimeStart),
		Due:             optionalTime(todo, ical.PropDue),
		Note:            propText(todo, ical.PropDescription),
		Status:          domain.TodoStatus(strings.ToUpper(propText(todo, ical.PropStatus))),
		Priority:        propInt(todo, ical.PropPriority),
		PercentComplete: propInt(todo, ical.PropPercentComplete),
		Location:        propText(todo, ical.PropLocation),
		Labels:          categories(todo),
		Fingerprint:     Fingerprint(raw.ETag),
		RelatedTo:       propText(todo, ical.PropRelatedTo),
	}, nil
}

// ParseEvent maps the first VEVENT of raw and resolves its duration:
// DTEND, then DURATION, then one day for all-day events, then one hour.
func ParseEvent(raw *RawComponent) (*domain.Event, error) {
	vevent, err := requireChild(raw, ical.CompEvent)
	if err != nil {
		return nil, err
	}

	ev := &domain.Event{
		ID:          propText(vevent, ical.PropUID),
		URL:         raw.URL,
		Summary:     propText(vevent, ical.PropSummary),
		Description: propText(vevent, ical.PropDescription),
		Location:    propText(vevent, ical.PropLocation),
		Categories:  categories(vevent),
		Fingerprint: Fingerprint(raw.ETag),
	}

	ev.Start = timeNow()
	if prop := vevent.Props.Get(ical.PropDateTimeStart); prop != nil {
		if t, dateOnly, err := propTime(prop); err == nil {
			ev.Start = t
			ev.AllDay = dateOnly
		}
	}

	if end := optionalTime(vevent, ical.PropDateTimeEnd); end != nil {
		ev.End = end
		ev.Duration = end.Sub(ev.Start)
		return ev, nil
	}
	if prop := vevent.Props.Get(ical.PropDuration); prop != nil {
		if d, err := prop.Duration(); err == nil {
			end := ev.Start.Add(d)
			ev.End = &end
			ev.Duration = d
			return ev, nil
		}
	}
	if ev.AllDay {
		ev.Duration = defaultAllDayDuration
	} else {
		ev.Duration = defaultTimedDuration
	}
	return ev, nil
}

// ParseIssue maps raw according to kind
func ParseIssue(kind domain.ComponentType, raw *RawComponent) (domain.Issue, error) {
	if kind == domain.ComponentEvent {
		ev, err := ParseEvent(raw)
		if err != nil {
			return domain.Issue{}, err
		}
		return domain.EventIssue(ev), nil
	}
	todo, err := ParseTodo(raw)
	if err != nil {
		return domain.Issue{}, err
	}
	return domain.TodoIssue(todo), nil
}

// ApplyTodoUpdate writes upd into the first VTODO of raw. It reports
// whether anything actually changed; unchanged components are untouched.
func ApplyTodoUpdate(raw *RawComponent, upd domain.TodoUpdate, now time.Time) (bool, error) {
	todo, err := requireChild(raw, ical.CompToDo)
	if err != nil {
		return false, err
	}

	changed := false

	if upd.Completed != nil {
		wasCompleted := todo.Props.Get(ical.PropCompleted) != nil
		if *upd.Completed != wasCompleted {
			if *upd.Completed {
				todo.Props.SetDateTime(ical.PropCompleted, now.UTC())
			} else {
				// absence is the "not completed" state
				todo.Props.Del(ical.PropCompleted)
			}
			changed = true
		}
	}

	if upd.Summary != nil && *upd.Summary != propText(todo, ical.PropSummary) {
		todo.Props.SetText(ical.PropSummary, *upd.Summary)
		changed = true
	}

	if changed {
		bumpRevision(todo, now)
	}
	return changed, nil
}

// ApplyEventUpdate writes upd into the first VEVENT of raw. Same change
// rules as ApplyTodoUpdate.
func ApplyEventUpdate(raw *RawComponent, upd domain.EventUpdate, now time.Time) (bool, error) {
	vevent, err := requireChild(raw, ical.CompEvent)
	if err != nil {
		return false, err
	}

	changed := false

	if upd.Summary != nil && *upd.Summary != propText(vevent, ical.PropSummary) {
		vevent.Props.SetText(ical.PropSummary, *upd.Summary)
		changed = true
	}

	if upd.Description != nil && *upd.Description != propText(vevent, ical.PropDescription) {
		if *upd.Description == "" {
			vevent.Props.Del(ical.PropDescription)
		} else {
			vevent.Props.SetText(ical.PropDescription, *upd.Description)
		}
		changed = true
	}

	if upd.Start != nil && !sameInstant(vevent, ical.PropDateTimeStart, *upd.Start) {
		oldStart := optionalTime(vevent, ical.PropDateTimeStart)
		vevent.Props.SetDateTime(ical.PropDateTimeStart, upd.Start.UTC())
		// DTEND must share DTSTART's value type; move it with the start
		if oldEnd := optionalTime(vevent, ical.PropDateTimeEnd); upd.End == nil && oldEnd != nil && oldStart != nil {
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, upd.Start.Add(oldEnd.Sub(*oldStart)).UTC())
		}
		changed = true
	}

	if upd.End != nil && !sameInstant(vevent, ical.PropDateTimeEnd, *upd.End) {
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, upd.End.UTC())
		// DTEND and DURATION are mutually exclusive
		vevent.Props.Del(ical.PropDuration)
		changed = true
	}

	if changed {
		bumpRevision(vevent, now)
	}
	return changed, nil
}

func sameInstant(comp *ical.Component, name string, t time.Time) bool {
	cur := optionalTime(comp, name)
	return cur != nil && cur.Equal(t)
}

// bumpRevision stamps LAST-MODIFIED and DTSTAMP and increments SEQUENCE.
// Several clients ignore updates whose SEQUENCE did not move.
func bumpRevision(comp *ical.Component, now time.Time) {
	comp.Props.SetDateTime(ical.PropLastModified, now.UTC())
	comp.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

	seq := 1
	if prop := comp.Props.Get(ical.PropSequence); prop != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(prop.Value)); err == nil {
			seq = n + 1
		}
	}
	prop := ical.NewProp(ical.PropSequence)
	prop.Value = strconv.Itoa(seq)
	comp.Props.Set(prop)
}
