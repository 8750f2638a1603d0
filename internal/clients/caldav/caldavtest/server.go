// Package caldavtest provides an in-memory CalDAV server double for tests.
// It evaluates calendar-query filters the way a real server would see them
// after go-webdav encodes the request.
package caldavtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emersion/go-ical"
	gocaldav "github.com/emersion/go-webdav/caldav"

	"github.com/tazhate/tasksync/internal/clients/caldav"
	"github.com/tazhate/tasksync/internal/domain"
)

// BaseURL prefixes object paths in ObjectURL
const BaseURL = "https://cal.example.com"

var ErrObjectNotFound = errors.New("404 Not Found")

type object struct {
	path    string
	etag    string
	payload []byte
}

// Server is an in-memory CalDAV backend. Its exported counters and error
// hooks may be read or set between calls; the server itself is safe for
// concurrent use.
type Server struct {
	mu        sync.Mutex
	calendars []caldav.Calendar
	objects   map[string][]*object // by calendar path
	revision  int

	Dials   atomic.Int32
	Lists   atomic.Int32
	Queries atomic.Int32
	Puts    atomic.Int32
	Deletes atomic.Int32

	// DialDelay stalls every dial, to widen race windows in tests
	DialDelay time.Duration

	DialErr   error
	ListErr   error
	QueryErr  error
	PutErr    error
	DeleteErr error

	lastQuery *gocaldav.CalendarQuery
}

func NewServer() *Server {
	return &Server{objects: make(map[string][]*object)}
}

// Dialer returns a dialer that connects every config to this server
func (s *Server) Dialer() caldav.Dialer {
	return func(ctx context.Context, cfg *domain.ProviderConfig) (caldav.DAV, error) {
		s.Dials.Add(1)
		if s.DialDelay > 0 {
			time.Sleep(s.DialDelay)
		}
		if s.DialErr != nil {
			return nil, s.DialErr
		}
		return s, nil
	}
}

// AddCalendar registers a calendar collection at path
func (s *Server) AddCalendar(path, displayName string, readOnly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendars = append(s.calendars, caldav.Calendar{
		Path:        path,
		DisplayName: displayName,
		URL:         BaseURL + path,
		ReadOnly:    readOnly,
	})
}

// AddObject stores ics under calPath/name and returns the object path. An
// existing object at that path is replaced and gets a new ETag.
func (s *Server) AddObject(calPath, name, ics string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := strings.TrimSuffix(calPath, "/") + "/" + name
	if obj := s.find(path); obj != nil {
		obj.etag = s.nextETag()
		obj.payload = normalizeICS(ics)
		return path
	}
	s.objects[calPath] = append(s.objects[calPath], &object{
		path:    path,
		etag:    s.nextETag(),
		payload: normalizeICS(ics),
	})
	return path
}

// Object returns the stored calendar at path, or nil
func (s *Server) Object(path string) *ical.Calendar {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.find(path)
	if obj == nil {
		return nil
	}
	cal, err := ical.NewDecoder(bytes.NewReader(obj.payload)).Decode()
	if err != nil {
		return nil
	}
	return cal
}

// ETag returns the current ETag of the object at path
func (s *Server) ETag(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj := s.find(path); obj != nil {
		return obj.etag
	}
	return ""
}

// LastQuery returns the most recent calendar-query received
func (s *Server) LastQuery() *gocaldav.CalendarQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

func (s *Server) ListCalendars(ctx context.Context) ([]caldav.Calendar, error) {
	s.Lists.Add(1)
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]caldav.Calendar(nil), s.calendars...), nil
}

func (s *Server) QueryCalendar(ctx context.Context, calendar string, query *gocaldav.CalendarQuery) ([]gocaldav.CalendarObject, error) {
	s.Queries.Add(1)
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = query

	filter := wireFilter(query.CompFilter)
	var result []gocaldav.CalendarObject
	for _, obj := range s.objects[calendar] {
		cal, err := ical.NewDecoder(bytes.NewReader(obj.payload)).Decode()
		if err != nil {
			return nil, err
		}
		if !matchCompFilter(cal.Component, filter) {
			continue
		}
		result = append(result, gocaldav.CalendarObject{
			Path: obj.path,
			ETag: obj.etag,
			Data: cal,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (s *Server) PutCalendarObject(ctx context.Context, path string, cal *ical.Calendar) (*gocaldav.CalendarObject, error) {
	s.Puts.Add(1)
	if s.PutErr != nil {
		return nil, s.PutErr
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	obj := s.find(path)
	if obj == nil {
		return nil, ErrObjectNotFound
	}
	obj.payload = buf.Bytes()
	obj.etag = s.nextETag()
	return &gocaldav.CalendarObject{Path: path, ETag: obj.etag}, nil
}

func (s *Server) RemoveAll(ctx context.Context, path string) error {
	s.Deletes.Add(1)
	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for calPath, objs := range s.objects {
		for i, obj := range objs {
			if obj.path == path {
				s.objects[calPath] = append(objs[:i], objs[i+1:]...)
				return nil
			}
		}
	}
	return ErrObjectNotFound
}

func (s *Server) ObjectURL(path string) string {
	return BaseURL + path
}

func (s *Server) find(path string) *object {
	for _, objs := range s.objects {
		for _, obj := range objs {
			if obj.path == path {
				return obj
			}
		}
	}
	return nil
}

func (s *Server) nextETag() string {
	s.revision++
	return fmt.Sprintf("\"rev-%d\"", s.revision)
}

// normalizeICS lets tests write fixtures with plain newlines
func normalizeICS(ics string) []byte {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(ics, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}
