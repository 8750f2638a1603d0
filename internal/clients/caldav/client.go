package caldav

import (
	"context"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"golang.org/x/sync/singleflight"

	"github.com/tazhate/tasksync/internal/domain"
)

const (
	// DefaultClientID is sent in X-Requested-With
	DefaultClientID = "TaskSync"

	DefaultTimeout = 30 * time.Second
)

// Client is the CalDAV sync engine. It owns the session cache and runs
// the protocol operations the service layer composes. Safe for concurrent
// use.
type Client struct {
	dial Dialer
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	dialing  singleflight.Group
}

// NewClient creates an engine that talks to real servers
func NewClient(clientID string, timeout time.Duration) *Client {
	if clientID == "" {
		clientID = DefaultClientID
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewClientWithDialer(RemoteDialer(clientID, timeout))
}

// NewClientWithDialer creates an engine on top of a custom dialer
func NewClientWithDialer(dial Dialer) *Client {
	return &Client{
		dial:     dial,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetClock replaces the wall clock used for query windows and revision stamps
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

// Now returns the engine's current time
func (c *Client) Now() time.Time {
	return c.now()
}

// Todos fetches VTODOs. With openOnly, components whose VTODO carries
// COMPLETED are dropped.
func (c *Client) Todos(ctx context.Context, cal *Calendar, openOnly bool) ([]*RawComponent, error) {
	raws, err := c.query(ctx, cal, todosQuery(), "query todos")
	if err != nil || !openOnly {
		return raws, err
	}

	open := raws[:0]
	for _, raw := range raws {
		todo := firstChild(raw.Data, ical.CompToDo)
		if todo == nil || todo.Props.Get(ical.PropCompleted) == nil {
			// keep malformed ones so the mapper can report them
			open = append(open, raw)
		}
	}
	return open, nil
}

// Events fetches VEVENTs overlapping [start, end)
func (c *Client) Events(ctx context.Context, cal *Calendar, start, end time.Time) ([]*RawComponent, error) {
	return c.query(ctx, cal, eventWindowQuery(start, end), "query events")
}

// UpcomingEvents fetches the events of the default window around now
func (c *Client) UpcomingEvents(ctx context.Context, cal *Calendar) ([]*RawComponent, error) {
	start, end := EventWindow(c.now())
	return c.Events(ctx, cal, start, end)
}

// FindByUID fetches the components of the given kind whose UID equals uid.
// Servers evaluate text-match as a substring test, so hits are re-checked
// for exact equality.
func (c *Client) FindByUID(ctx context.Context, cal *Calendar, kind domain.ComponentType, uid string) ([]*RawComponent, error) {
	raws, err := c.query(ctx, cal, uidQuery(kind, uid), "find "+uid)
	if err != nil {
		return nil, err
	}

	name := componentName(kind)
	exact := raws[:0]
	for _, raw := range raws {
		comp := firstChild(raw.Data, name)
		if comp == nil || propText(comp, ical.PropUID) == uid {
			// keep malformed hits so the mapper can report them
			exact = append(exact, raw)
		}
	}
	return exact, nil
}

// Delete removes the object raw was fetched from. Non-2xx responses are
// returned as NetworkError.
func (c *Client) Delete(ctx context.Context, cal *Calendar, raw *RawComponent) error {
	if err := cal.dav.RemoveAll(ctx, raw.Path); err != nil {
		return netErr("delete "+raw.Path, err)
	}
	return nil
}

func (c *Client) query(ctx context.Context, cal *Calendar, query *caldav.CalendarQuery, op string) ([]*RawComponent, error) {
	objects, err := cal.dav.QueryCalendar(ctx, cal.Path, query)
	if err != nil {
		return nil, netErr(op, err)
	}

	result := make([]*RawComponent, 0, len(objects))
	for i := range objects {
		result = append(result, cal.bind(&objects[i]))
	}
	return result, nil
}

// bind wraps a fetched object and ties its submit capability to the
// object's path on this calendar's connection.
func (cal *Calendar) bind(obj *caldav.CalendarObject) *RawComponent {
	dav := cal.dav
	path := obj.Path
	return &RawComponent{
		Path: path,
		URL:  dav.ObjectURL(path),
		ETag: obj.ETag,
		Data: obj.Data,
		submit: func(ctx context.Context, data *ical.Calendar) error {
			_, err := dav.PutCalendarObject(ctx, path, data)
			return err
		},
	}
}
