package schedule

import (
	"strconv"
	"strings"
	"time"
)

// Unit is a recurrence unit.
type Unit int

const (
	UnitMinute Unit = iota
	UnitHour
	UnitDay
	UnitWeek
	UnitMonth
	UnitYear
)

func (u Unit) String() string {
	switch u {
	case UnitMinute:
		return "m"
	case UnitHour:
		return "h"
	case UnitDay:
		return "d"
	case UnitWeek:
		return "w"
	case UnitMonth:
		return "mo"
	case UnitYear:
		return "y"
	default:
		return "?"
	}
}

// Interval is a parsed recurrence spec.
type Interval struct {
	Amount int
	Unit   Unit
}

func (iv Interval) String() string {
	return strconv.Itoa(iv.Amount) + iv.Unit.String()
}

// maxIntervalAmount bounds the amount so that amount x unit always fits in a
// time.Duration, for every unit up to weeks.
const maxIntervalAmount = 10000

// ParseInterval parses a compact recurrence spec: one or more digits followed
// by exactly one unit token.
//
// Units: m=minute, h=hour, d=day, w=week, mo=month, y=year. Month is the
// two-letter token "mo" so it cannot collide with "m" (minute).
func ParseInterval(spec string) (Interval, error) {
	s := strings.TrimSpace(spec)
	if s == "" {
		return Interval{}, &ParseError{Spec: spec, Reason: "empty spec"}
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return Interval{}, &ParseError{Spec: spec, Reason: "missing amount"}
	}

	n, err := strconv.Atoi(s[:i])
	if err != nil || n > maxIntervalAmount {
		return Interval{}, &ParseError{Spec: spec, Reason: "amount overflows"}
	}
	if n == 0 {
		return Interval{}, &ParseError{Spec: spec, Reason: "amount must be > 0"}
	}

	var unit Unit
	switch s[i:] {
	case "m":
		unit = UnitMinute
	case "h":
		unit = UnitHour
	case "d":
		unit = UnitDay
	case "w":
		unit = UnitWeek
	case "mo":
		unit = UnitMonth
	case "y":
		unit = UnitYear
	case "":
		return Interval{}, &ParseError{Spec: spec, Reason: "missing unit"}
	default:
		return Interval{}, &ParseError{Spec: spec, Reason: "unknown unit " + strconv.Quote(s[i:])}
	}

	return Interval{Amount: n, Unit: unit}, nil
}

// fixedDuration returns the wall duration for fixed-size units, or 0 for
// calendar units (month, year).
func (iv Interval) fixedDuration() time.Duration {
	switch iv.Unit {
	case UnitMinute:
		return time.Duration(iv.Amount) * time.Minute
	case UnitHour:
		return time.Duration(iv.Amount) * time.Hour
	case UnitDay:
		return time.Duration(iv.Amount) * 24 * time.Hour
	case UnitWeek:
		return time.Duration(iv.Amount) * 7 * 24 * time.Hour
	default:
		return 0
	}
}
