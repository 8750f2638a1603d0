package caldav

import (
	"bytes"
	"context"
	"fmt"

	"github.com/emersion/go-ical"
)

// Calendar is a resolved remote calendar
type Calendar struct {
	Path        string // collection path on the server
	DisplayName string
	URL         string // absolute collection URL
	ReadOnly    bool
	Components  []string // supported component set, empty if not reported

	dav DAV
}

// RawComponent is one calendar object as fetched from the server. It is
// short-lived: fetch, map or mutate, then drop.
type RawComponent struct {
	Path string // object path used for PUT/DELETE
	URL  string // absolute object URL
	ETag string
	Data *ical.Calendar

	submit func(ctx context.Context, data *ical.Calendar) error
}

// CanSubmit reports whether the component is bound to the fetch it came from
func (r *RawComponent) CanSubmit() bool {
	return r.submit != nil
}

// Submit writes the (possibly mutated) component back to where it was
// fetched from. Unbound components are a no-op.
func (r *RawComponent) Submit(ctx context.Context) error {
	if r.submit == nil {
		return nil
	}
	if err := r.submit(ctx, r.Data); err != nil {
		return netErr("update "+r.Path, err)
	}
	return nil
}

// Payload serializes the component tree to iCalendar text
func (r *RawComponent) Payload() ([]byte, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(r.Data); err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.Path, err)
	}
	return buf.Bytes(), nil
}

// DecodeComponent parses iCalendar text into an unbound RawComponent
func DecodeComponent(payload []byte, path, etag string) (*RawComponent, error) {
	cal, err := ical.NewDecoder(bytes.NewReader(payload)).Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformedComponent, path, err)
	}
	return &RawComponent{Path: path, ETag: etag, Data: cal}, nil
}
