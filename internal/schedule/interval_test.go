package schedule

import (
	"testing"
	"time"
)

func TestParseIntervalVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		raw    string
		amount int
		unit   Unit
	}{
		{name: "minute", raw: "1m", amount: 1, unit: UnitMinute},
		{name: "minutes", raw: "30m", amount: 30, unit: UnitMinute},
		{name: "hours", raw: "2h", amount: 2, unit: UnitHour},
		{name: "day", raw: "1d", amount: 1, unit: UnitDay},
		{name: "weeks", raw: "2w", amount: 2, unit: UnitWeek},
		{name: "month not minute", raw: "1mo", amount: 1, unit: UnitMonth},
		{name: "months", raw: "3mo", amount: 3, unit: UnitMonth},
		{name: "year", raw: "1y", amount: 1, unit: UnitYear},
		{name: "surrounding space", raw: " 1d ", amount: 1, unit: UnitDay},
		{name: "max amount", raw: "10000m", amount: 10000, unit: UnitMinute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInterval(tt.raw)
			if err != nil {
				t.Fatalf("ParseInterval(%q) error: %v", tt.raw, err)
			}
			if got.Amount != tt.amount || got.Unit != tt.unit {
				t.Fatalf("ParseInterval(%q) = %v, want %d%s", tt.raw, got, tt.amount, tt.unit)
			}
		})
	}
}

func TestParseIntervalInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "blank", raw: "   "},
		{name: "missing amount", raw: "m"},
		{name: "missing unit", raw: "10"},
		{name: "unknown unit", raw: "1x"},
		{name: "uppercase unit", raw: "1M"},
		{name: "long unit", raw: "1mon"},
		{name: "zero amount", raw: "0d"},
		{name: "negative amount", raw: "-1d"},
		{name: "trailing spec", raw: "1h30m"},
		{name: "over max amount", raw: "10001d"},
		{name: "huge amount", raw: "99999999999999999999d"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseInterval(tt.raw); err == nil {
				t.Fatalf("ParseInterval(%q): expected error", tt.raw)
			}
		})
	}
}

func TestIntervalFixedDuration(t *testing.T) {
	t.Parallel()
	if d := (Interval{Amount: 90, Unit: UnitMinute}).fixedDuration(); d != 90*time.Minute {
		t.Fatalf("90m = %v", d)
	}
	if d := (Interval{Amount: 2, Unit: UnitWeek}).fixedDuration(); d != 14*24*time.Hour {
		t.Fatalf("2w = %v", d)
	}
	if d := (Interval{Amount: 1, Unit: UnitMonth}).fixedDuration(); d != 0 {
		t.Fatalf("calendar unit should have no fixed duration, got %v", d)
	}
}

func TestIntervalString(t *testing.T) {
	t.Parallel()
	iv, err := ParseInterval("3mo")
	if err != nil {
		t.Fatalf("ParseInterval error: %v", err)
	}
	if s := iv.String(); s != "3mo" {
		t.Fatalf("String() = %q, want %q", s, "3mo")
	}
}
