package service

import (
	"errors"

	"github.com/tazhate/tasksync/internal/clients/caldav"
	"github.com/tazhate/tasksync/internal/domain"
)

// ErrorKind classifies a facade failure
type ErrorKind string

const (
	KindNotConfigured      ErrorKind = "not_configured"
	KindNetwork            ErrorKind = "network"
	KindCalendarNotFound   ErrorKind = "calendar_not_found"
	KindCalendarReadOnly   ErrorKind = "calendar_read_only"
	KindItemNotFound       ErrorKind = "item_not_found"
	KindMalformedComponent ErrorKind = "malformed_component"
	KindUnsupported        ErrorKind = "unsupported"
)

// ErrUnsupportedComponent is returned for operations that do not apply to
// the provider's component type
var ErrUnsupportedComponent = errors.New("operation not supported for this component type")

// Error is the single handled error every CalDAVService operation returns
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return "CalDAV: " + e.Provider + ": " + e.Err.Error()
	}
	return "CalDAV: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a facade error, or "" for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// classify maps an engine error onto the facade taxonomy
func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		return KindNotConfigured
	case errors.Is(err, caldav.ErrCalendarNotFound):
		return KindCalendarNotFound
	case errors.Is(err, caldav.ErrCalendarReadOnly):
		return KindCalendarReadOnly
	case errors.Is(err, caldav.ErrNotFound):
		return KindItemNotFound
	case errors.Is(err, caldav.ErrMalformedComponent):
		return KindMalformedComponent
	case errors.Is(err, ErrUnsupportedComponent):
		return KindUnsupported
	}
	// everything else failed on the way to or from the server
	return KindNetwork
}

// notification returns the user-facing signal for kind, if it has one
func notification(kind ErrorKind, cfg *domain.ProviderConfig, err error) (domain.Notification, bool) {
	var key string
	switch kind {
	case KindNotConfigured:
		key = domain.MsgNotConfigured
	case KindNetwork:
		key = domain.MsgNetwork
	case KindCalendarNotFound:
		key = domain.MsgCalendarNotFound
	case KindCalendarReadOnly:
		key = domain.MsgCalendarReadOnly
	case KindItemNotFound:
		key = domain.MsgIssueNotFound
	default:
		return domain.Notification{}, false
	}

	params := map[string]string{"error": err.Error()}
	if cfg != nil {
		params["provider"] = cfg.ID
		params["resource"] = cfg.ResourceName
	}
	return domain.Notification{Type: domain.NotifyError, MsgKey: key, Params: params}, true
}
