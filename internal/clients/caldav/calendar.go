package caldav

import (
	"context"
	"fmt"
	"strings"

	"github.com/tazhate/tasksync/internal/domain"
)

// Calendar resolves cfg's resource name to a calendar on its session. The
// result is cached on the session and never re-resolved.
func (c *Client) Calendar(ctx context.Context, cfg *domain.ProviderConfig) (*Calendar, error) {
	s, err := c.Session(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s.calendar(ctx, cfg.ResourceName)
}

func (s *Session) calendar(ctx context.Context, resource string) (*Calendar, error) {
	if cal, ok := s.cachedCalendar(resource); ok {
		return cal, nil
	}

	listCtx := context.WithoutCancel(ctx)
	ch := s.resolving.DoChan(resource, func() (interface{}, error) {
		if cal, ok := s.cachedCalendar(resource); ok {
			return cal, nil
		}

		cals, err := s.dav.ListCalendars(listCtx)
		if err != nil {
			return nil, netErr("list calendars", err)
		}

		cal := matchCalendar(cals, resource)
		if cal == nil {
			return nil, fmt.Errorf("%w: %s", ErrCalendarNotFound, resource)
		}
		cal.dav = s.dav

		s.mu.Lock()
		s.calendars[resource] = cal
		s.mu.Unlock()
		return cal, nil
	})

	select {
	case <-ctx.Done():
		return nil, netErr("list calendars", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Calendar), nil
	}
}

// matchCalendar finds the calendar whose display name or URL slug equals
// resource exactly.
func matchCalendar(cals []Calendar, resource string) *Calendar {
	for i := range cals {
		if cals[i].DisplayName == resource || calendarSlug(cals[i].Path) == resource {
			cal := cals[i]
			return &cal
		}
	}
	return nil
}

// calendarSlug returns the last path segment, ignoring a trailing slash
func calendarSlug(path string) string {
	path = strings.TrimSuffix(path, "/")
	return path[strings.LastIndex(path, "/")+1:]
}
