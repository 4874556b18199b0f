// Package timerange turns date-math expressions into absolute windows and
// derives chart tick settings and query bucket tokens from them.
package timerange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
)

var (
	errEmptyExpression = errors.New("expression is empty")
	errStartAfterEnd   = errors.New("start is after end")
)

// InvalidTimeRangeError reports an unparsable endpoint or an inverted window.
type InvalidTimeRangeError struct {
	Side       string // "from", "to" or "range"
	Expression string
	Err        error
}

func (e *InvalidTimeRangeError) Error() string {
	return fmt.Sprintf("invalid time range: %s %q: %v", e.Side, e.Expression, e.Err)
}

func (e *InvalidTimeRangeError) Unwrap() error { return e.Err }

// Resolver resolves {from, to} pairs against an injectable clock.
type Resolver struct {
	now func() time.Time
	loc *time.Location
}

type Option func(*Resolver)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLocation sets the zone used for calendar rounding and zone-less
// absolute timestamps.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve converts a from/to expression pair into an absolute window. The
// "to" side rounds up to the end of its implied unit so inclusive windows
// keep the most recent samples.
func (r *Resolver) Resolve(from, to string) (models.TimeWindow, error) {
	now := r.now().In(r.loc)

	start, err := parseExpression(from, now, r.loc, false)
	if err != nil {
		return models.TimeWindow{}, &InvalidTimeRangeError{Side: "from", Expression: from, Err: err}
	}
	end, err := parseExpression(to, now, r.loc, true)
	if err != nil {
		return models.TimeWindow{}, &InvalidTimeRangeError{Side: "to", Expression: to, Err: err}
	}
	if start.After(end) {
		return models.TimeWindow{}, &InvalidTimeRangeError{Side: "range", Expression: from + " .. " + to, Err: errStartAfterEnd}
	}
	return models.TimeWindow{Start: start, End: end}, nil
}

// Parse resolves a single expression. roundUp selects end-of-unit rounding.
func (r *Resolver) Parse(expr string, roundUp bool) (time.Time, error) {
	return parseExpression(expr, r.now().In(r.loc), r.loc, roundUp)
}

func parseExpression(expr string, now time.Time, loc *time.Location, roundUp bool) (time.Time, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return time.Time{}, errEmptyExpression
	}

	var (
		anchor   time.Time
		math     string
		relative bool
	)
	switch {
	case strings.HasPrefix(s, "now"):
		anchor, math, relative = now, s[len("now"):], true
	case strings.Contains(s, "||"):
		idx := strings.Index(s, "||")
		a, err := parseAbsolute(s[:idx], loc)
		if err != nil {
			return time.Time{}, err
		}
		anchor, math = a, s[idx+2:]
	default:
		return parseAbsolute(s, loc)
	}

	t, rounded, err := applyMath(anchor, math, roundUp)
	if err != nil {
		return time.Time{}, err
	}
	if roundUp && relative && !rounded {
		t = endOf(t, unitMinute)
	}
	return t, nil
}

// applyMath evaluates "+1h-5m/d" style suffixes. Rounding must come last.
func applyMath(t time.Time, math string, roundUp bool) (time.Time, bool, error) {
	rounded := false
	for len(math) > 0 {
		if rounded {
			return time.Time{}, false, fmt.Errorf("unexpected %q after rounding", math)
		}
		op := math[0]
		math = math[1:]
		switch op {
		case '/':
			u, rest, err := readUnit(math)
			if err != nil {
				return time.Time{}, false, err
			}
			if roundUp {
				t = endOf(t, u)
			} else {
				t = startOf(t, u)
			}
			math, rounded = rest, true
		case '+', '-':
			i := 0
			for i < len(math) && math[i] >= '0' && math[i] <= '9' {
				i++
			}
			n := 1
			if i > 0 {
				v, err := strconv.Atoi(math[:i])
				if err != nil {
					return time.Time{}, false, fmt.Errorf("invalid offset %q: %w", math[:i], err)
				}
				n = v
			}
			u, rest, err := readUnit(math[i:])
			if err != nil {
				return time.Time{}, false, err
			}
			if op == '-' {
				n = -n
			}
			t = addUnits(t, n, u)
			math = rest
		default:
			return time.Time{}, false, fmt.Errorf("unexpected operator %q", string(op))
		}
	}
	return t, rounded, nil
}

var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseAbsolute(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errEmptyExpression
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(n).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time expression %q", s)
}

func fromEpoch(n int64) time.Time {
	switch {
	case n >= 1_000_000_000_000_000: // microseconds
		return time.UnixMicro(n)
	case n >= 1_000_000_000_000: // milliseconds
		return time.UnixMilli(n)
	default:
		return time.Unix(n, 0)
	}
}
