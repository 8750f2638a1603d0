package caldav

import "errors"

var (
	// ErrCalendarNotFound is returned when no calendar matches the resource name
	ErrCalendarNotFound = errors.New("caldav: calendar not found")

	// ErrCalendarReadOnly is returned when a write targets a read-only calendar
	ErrCalendarReadOnly = errors.New("caldav: calendar is read-only")

	// ErrNotFound is returned when no component has the requested UID
	ErrNotFound = errors.New("caldav: item not found")

	// ErrMalformedComponent is returned when a payload lacks the expected sub-component
	ErrMalformedComponent = errors.New("caldav: malformed component")
)

// NetworkError wraps a failed round trip (connect, query, update, delete)
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return "caldav network error: " + e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func netErr(op string, err error) error {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return err
	}
	return &NetworkError{Op: op, Err: err}
}

// IsNetworkError reports whether err came from the transport
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
