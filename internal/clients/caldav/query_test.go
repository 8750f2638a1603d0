package caldav

import (
	"testing"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tazhate/tasksync/internal/domain"
)

func TestFormatUTC(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC), "20250115T140000Z"},
		{time.Date(2025, 1, 15, 0, 30, 0, 0, berlin), "20250114T233000Z"},
	}
	for _, tt := range tests {
		if got := FormatUTC(tt.in); got != tt.want {
			t.Errorf("FormatUTC(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestEventWindow(t *testing.T) {
	zone := time.FixedZone("X", 2*3600)
	now := time.Date(2025, 1, 15, 18, 45, 12, 0, zone)

	start, end := EventWindow(now)

	wantStart := time.Date(2025, 1, 15, 0, 0, 0, 0, zone)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantStart.AddDate(0, 0, 30)) {
		t.Errorf("end = %v, want start+30d", end)
	}
}

func TestTodosQuery(t *testing.T) {
	q := todosQuery()
	if q.CompFilter.Name != ical.CompCalendar || len(q.CompFilter.Comps) != 1 {
		t.Fatalf("unexpected outer filter: %+v", q.CompFilter)
	}
	todo := q.CompFilter.Comps[0]
	if todo.Name != ical.CompToDo {
		t.Errorf("inner filter = %s, want VTODO", todo.Name)
	}
	if len(todo.Props) != 0 {
		t.Errorf("todo query must not carry prop filters, got %+v", todo.Props)
	}
	if !q.CompRequest.AllProps || !q.CompRequest.AllComps {
		t.Error("queries must request whole objects")
	}
}

func TestUIDQuery(t *testing.T) {
	q := uidQuery(domain.ComponentEvent, "uid-42")
	inner := q.CompFilter.Comps[0]
	if inner.Name != ical.CompEvent {
		t.Errorf("inner filter = %s, want VEVENT", inner.Name)
	}
	if len(inner.Props) != 1 || inner.Props[0].Name != ical.PropUID {
		t.Fatalf("unexpected props: %+v", inner.Props)
	}
	if tm := inner.Props[0].TextMatch; tm == nil || tm.Text != "uid-42" || tm.NegateCondition {
		t.Errorf("unexpected text-match: %+v", tm)
	}
}

func TestEventWindowQuery(t *testing.T) {
	zone := time.FixedZone("X", -5*3600)
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, zone)
	end := start.AddDate(0, 0, 30)

	inner := eventWindowQuery(start, end).CompFilter.Comps[0]
	if inner.Name != ical.CompEvent {
		t.Errorf("inner filter = %s, want VEVENT", inner.Name)
	}
	if inner.Start.Location() != time.UTC || inner.End.Location() != time.UTC {
		t.Error("time-range bounds must be UTC")
	}
	if FormatUTC(inner.Start) != "20250115T050000Z" {
		t.Errorf("start = %s", FormatUTC(inner.Start))
	}
	if !inner.End.Equal(end) {
		t.Errorf("end = %v, want %v", inner.End, end)
	}
}
