package caldav

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"github.com/tazhate/tasksync/internal/domain"
)

// DAV is the slice of the CalDAV protocol the engine drives. The
// production implementation is backed by go-webdav.
type DAV interface {
	ListCalendars(ctx context.Context) ([]Calendar, error)
	QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
	PutCalendarObject(ctx context.Context, path string, cal *ical.Calendar) (*caldav.CalendarObject, error)
	RemoveAll(ctx context.Context, path string) error
	ObjectURL(path string) string
}

// Dialer establishes an authenticated session for cfg
type Dialer func(ctx context.Context, cfg *domain.ProviderConfig) (DAV, error)

// RemoteDialer connects to real servers. Every request carries clientID
// and the config's credentials.
func RemoteDialer(clientID string, timeout time.Duration) Dialer {
	return func(ctx context.Context, cfg *domain.ProviderConfig) (DAV, error) {
		return dialRemote(ctx, cfg, clientID, timeout)
	}
}

type remoteDAV struct {
	*caldav.Client

	http     *http.Client
	endpoint *url.URL
	homeSet  string
}

func dialRemote(ctx context.Context, cfg *domain.ProviderConfig, clientID string, timeout time.Duration) (*remoteDAV, error) {
	endpoint, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	httpClient := &http.Client{
		Transport: newAuthTransport(cfg, clientID, nil),
		Timeout:   timeout,
	}

	client, err := caldav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}

	return &remoteDAV{
		Client:   client,
		http:     httpClient,
		endpoint: endpoint,
		homeSet:  homeSet,
	}, nil
}

func (r *remoteDAV) ObjectURL(path string) string {
	return r.endpoint.ResolveReference(&url.URL{Path: path}).String()
}

// ListCalendars returns every calendar in the home set with its write
// permission resolved.
func (r *remoteDAV) ListCalendars(ctx context.Context) ([]Calendar, error) {
	cals, err := r.FindCalendars(ctx, r.homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	privileges, err := fetchPrivileges(ctx, r.http, r.ObjectURL(r.homeSet))
	if err != nil {
		// Not every server supports ACL properties; assume writable.
		log.Printf("caldav: privilege lookup on %s failed: %v", r.homeSet, err)
	}

	result := make([]Calendar, 0, len(cals))
	for _, cal := range cals {
		readOnly := false
		if privs, ok := privileges[normalizePath(cal.Path)]; ok {
			readOnly = !privs.writable()
		}
		result = append(result, Calendar{
			Path:        cal.Path,
			DisplayName: cal.Name,
			URL:         r.ObjectURL(cal.Path),
			ReadOnly:    readOnly,
			Components:  cal.SupportedComponentSet,
		})
	}
	return result, nil
}

const privilegePropfind = `<?xml version="1.0" encoding="utf-8"?>
<d:propfind xmlns:d="DAV:"><d:prop><d:current-user-privilege-set/></d:prop></d:propfind>`

type multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []response `xml:"DAV: response"`
}

type response struct {
	Href      string     `xml:"DAV: href"`
	PropStats []propStat `xml:"DAV: propstat"`
}

type propStat struct {
	Status     string      `xml:"DAV: status"`
	Privileges []privilege `xml:"DAV: prop>current-user-privilege-set>privilege"`
}

type privilege struct {
	Names []struct {
		XMLName xml.Name
	} `xml:",any"`
}

type privilegeSet map[string]bool

func (p privilegeSet) writable() bool {
	return p["write"] || p["write-content"] || p["all"]
}

// fetchPrivileges runs a Depth:1 PROPFIND for current-user-privilege-set
// and returns the privileges reported per collection path. Paths without
// a 200 propstat are absent from the result.
func fetchPrivileges(ctx context.Context, client *http.Client, target string) (map[string]privilegeSet, error) {
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", target, strings.NewReader(privilegePropfind))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", "1")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		return nil, fmt.Errorf("PROPFIND %s: unexpected status %s", target, resp.Status)
	}

	var ms multistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("decode multistatus: %w", err)
	}

	result := make(map[string]privilegeSet, len(ms.Responses))
	for _, r := range ms.Responses {
		for _, ps := range r.PropStats {
			if !strings.Contains(ps.Status, " 200 ") || len(ps.Privileges) == 0 {
				continue
			}
			set := privilegeSet{}
			for _, p := range ps.Privileges {
				for _, n := range p.Names {
					set[n.XMLName.Local] = true
				}
			}
			result[normalizePath(r.Href)] = set
		}
	}
	return result, nil
}

// normalizePath reduces an href to its path without a trailing slash
func normalizePath(href string) string {
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	return strings.TrimSuffix(href, "/")
}
