package caldavtest

import (
	"strings"
	"time"

	"github.com/emersion/go-ical"
	gocaldav "github.com/emersion/go-webdav/caldav"
)

// wireFilter returns f as a server receives it from go-webdav's client,
// which drops is-not-defined on comp-filters and prop-filters.
func wireFilter(f gocaldav.CompFilter) gocaldav.CompFilter {
	out := gocaldav.CompFilter{Name: f.Name, Start: f.Start, End: f.End}
	for _, child := range f.Comps {
		out.Comps = append(out.Comps, wireFilter(child))
	}
	for _, pf := range f.Props {
		pf.IsNotDefined = false
		out.Props = append(out.Props, pf)
	}
	return out
}

// matchCompFilter applies an RFC 4791 comp-filter to comp. Only the
// features the engine emits are supported: nested comp-filters,
// is-not-defined, prop-filter text-match and time-range.
func matchCompFilter(comp *ical.Component, f gocaldav.CompFilter) bool {
	if comp.Name != f.Name {
		return false
	}
	if !f.Start.IsZero() || !f.End.IsZero() {
		if !overlaps(comp, f.Start, f.End) {
			return false
		}
	}
	for _, pf := range f.Props {
		if !matchPropFilter(comp, pf) {
			return false
		}
	}
	for _, child := range f.Comps {
		found := false
		for _, c := range comp.Children {
			if c.Name != child.Name {
				continue
			}
			if child.IsNotDefined {
				found = true
				break
			}
			if matchCompFilter(c, child) {
				found = true
				break
			}
		}
		if child.IsNotDefined {
			if found {
				return false
			}
			continue
		}
		if !found {
			return false
		}
	}
	return true
}

func matchPropFilter(comp *ical.Component, pf gocaldav.PropFilter) bool {
	prop := comp.Props.Get(pf.Name)
	if pf.IsNotDefined {
		return prop == nil
	}
	if prop == nil {
		return false
	}
	if pf.TextMatch != nil {
		// i;ascii-casemap substring, the RFC default collation
		hit := strings.Contains(strings.ToLower(prop.Value), strings.ToLower(pf.TextMatch.Text))
		return hit != pf.TextMatch.NegateCondition
	}
	return true
}

func overlaps(comp *ical.Component, start, end time.Time) bool {
	prop := comp.Props.Get(ical.PropDateTimeStart)
	if prop == nil {
		return false
	}
	dateOnly := prop.ValueType() == ical.ValueDate
	evStart, err := prop.DateTime(time.UTC)
	if err != nil {
		return false
	}

	evEnd := evStart.Add(time.Hour)
	if dateOnly {
		evEnd = evStart.Add(24 * time.Hour)
	}
	if p := comp.Props.Get(ical.PropDateTimeEnd); p != nil {
		if t, err := p.DateTime(time.UTC); err == nil {
			evEnd = t
		}
	} else if p := comp.Props.Get(ical.PropDuration); p != nil {
		if d, err := p.Duration(); err == nil {
			evEnd = evStart.Add(d)
		}
	}

	if !end.IsZero() && !evStart.Before(end) {
		return false
	}
	if !start.IsZero() && !evEnd.After(start) {
		return false
	}
	return true
}
