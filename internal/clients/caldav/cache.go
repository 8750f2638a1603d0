package caldav

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tazhate/tasksync/internal/domain"
)

// Session is an established connection plus the calendars resolved on it.
// Sessions live for the lifetime of the Client.
type Session struct {
	key string
	dav DAV

	mu        sync.RWMutex
	calendars map[string]*Calendar
	resolving singleflight.Group
}

func newSession(key string, dav DAV) *Session {
	return &Session{
		key:       key,
		dav:       dav,
		calendars: make(map[string]*Calendar),
	}
}

func (s *Session) cachedCalendar(resource string) (*Calendar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cal, ok := s.calendars[resource]
	return cal, ok
}

// Session returns the cached session for cfg's connection key, dialing on
// first use. Concurrent first uses of one key share a single dial; a failed
// dial is not cached. A caller whose ctx ends stops waiting without
// failing the others.
func (c *Client) Session(ctx context.Context, cfg *domain.ProviderConfig) (*Session, error) {
	key := cfg.ConnectionKey()
	if s, ok := c.cachedSession(key); ok {
		return s, nil
	}

	dialCtx := context.WithoutCancel(ctx)
	ch := c.dialing.DoChan(key, func() (interface{}, error) {
		if s, ok := c.cachedSession(key); ok {
			return s, nil
		}
		dav, err := c.dial(dialCtx, cfg)
		if err != nil {
			return nil, netErr("connect "+cfg.URL, err)
		}
		s := newSession(key, dav)
		c.mu.Lock()
		c.sessions[key] = s
		c.mu.Unlock()
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, netErr("connect "+cfg.URL, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	}
}

func (c *Client) cachedSession(key string) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[key]
	return s, ok
}

// SessionCount returns the number of cached sessions
func (c *Client) SessionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}
