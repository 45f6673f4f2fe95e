// utils/time_utils.go
package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Brazil time location (BRT, -03:00)
var brLoc = func() *time.Location {
	if loc, err := time.LoadLocation("America/Sao_Paulo"); err == nil {
		return loc
	}
	return time.FixedZone("BRT", -3*3600)
}()

var ErrUnknownDueDate = errors.New("unrecognized due date representation")

// DueDateKind tags how a stored due date was encoded.
type DueDateKind int

const (
	DueDateAbsent DueDateKind = iota
	DueDateSeconds
	DueDateISO
	DueDateNative
)

func (k DueDateKind) String() string {
	switch k {
	case DueDateAbsent:
		return "absent"
	case DueDateSeconds:
		return "seconds"
	case DueDateISO:
		return "iso"
	case DueDateNative:
		return "native"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DueDateValue is a due date as found at a storage or wire boundary.
// Exactly one payload field is meaningful, selected by Kind.
type DueDateValue struct {
	Kind    DueDateKind
	Seconds int64
	ISO     string
	Native  time.Time
}

func DueDateFromSeconds(s int64) DueDateValue { return DueDateValue{Kind: DueDateSeconds, Seconds: s} }
func DueDateFromISO(s string) DueDateValue    { return DueDateValue{Kind: DueDateISO, ISO: s} }
func DueDateFromTime(t time.Time) DueDateValue {
	return DueDateValue{Kind: DueDateNative, Native: t}
}

// DueDateFromAny tags a decoded JSON/BSON value. Numbers are treated as epoch values,
// strings as ISO-8601 and time.Time as native; nil is absent.
func DueDateFromAny(v any) (DueDateValue, error) {
	switch x := v.(type) {
	case nil:
		return DueDateValue{Kind: DueDateAbsent}, nil
	case time.Time:
		return DueDateFromTime(x), nil
	case *time.Time:
		if x == nil {
			return DueDateValue{Kind: DueDateAbsent}, nil
		}
		return DueDateFromTime(*x), nil
	case int64:
		return DueDateFromSeconds(x), nil
	case int32:
		return DueDateFromSeconds(int64(x)), nil
	case int:
		return DueDateFromSeconds(int64(x)), nil
	case float64:
		return DueDateFromSeconds(int64(x)), nil
	case string:
		if strings.TrimSpace(x) == "" {
			return DueDateValue{Kind: DueDateAbsent}, nil
		}
		return DueDateFromISO(x), nil
	default:
		return DueDateValue{}, fmt.Errorf("%w: %T", ErrUnknownDueDate, v)
	}
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDueDate is the single conversion path from any stored due date shape to a UTC time.
// Returns nil for an absent value.
func ParseDueDate(v DueDateValue) (*time.Time, error) {
	switch v.Kind {
	case DueDateAbsent:
		return nil, nil
	case DueDateSeconds:
		if v.Seconds <= 0 {
			return nil, nil
		}
		t := FromUnixAuto(v.Seconds).UTC()
		return &t, nil
	case DueDateISO:
		raw := strings.TrimSpace(v.ISO)
		for _, layout := range isoLayouts {
			if t, err := time.ParseInLocation(layout, raw, brLoc); err == nil {
				t = t.UTC()
				return &t, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownDueDate, v.ISO)
	case DueDateNative:
		if v.Native.IsZero() {
			return nil, nil
		}
		t := v.Native.UTC()
		return &t, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDueDate, v.Kind)
	}
}

// FromUnixAuto converts an epoch value whose unit is unknown (legacy documents stored
// milliseconds). Values below 1e11 are seconds.
func FromUnixAuto(x int64) time.Time {
	if x <= 0 {
		return time.Time{}
	}
	switch {
	case x < 1e11:
		return time.Unix(x, 0)
	case x < 1e14: // milliseconds
		return time.UnixMilli(x)
	case x < 1e17: // microseconds
		return time.UnixMicro(x)
	default:
		return time.Unix(0, x)
	}
}

// FormatDateBR renders a date the way the provider expects due dates (local calendar day).
func FormatDateBR(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(brLoc).Format("2006-01-02")
}
