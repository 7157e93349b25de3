package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Clock is a time of day in minutes since midnight.
type Clock int

const minutesPerDay = 24 * 60

// ParseClock parses "HH:MM" (or "HH:MM:SS", seconds are dropped).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock(h*60 + m), nil
}

func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeSlot is a half-open [Start, End) interval of a day.
type TimeSlot struct {
	Start Clock `json:"start_time"`
	End   Clock `json:"end_time"`
}

func (ts TimeSlot) String() string {
	return ts.Start.String() + "-" + ts.End.String()
}

// Validate checks that the slot ends after it starts.
func (ts TimeSlot) Validate() error {
	if ts.Start < 0 || ts.End > minutesPerDay || ts.End <= ts.Start {
		return &InvalidIntervalError{Slot: ts}
	}
	return nil
}

// Overlaps reports whether both slots share at least one minute. Touching slots do not overlap.
func (ts TimeSlot) Overlaps(other TimeSlot) bool {
	return ts.Start < other.End && other.Start < ts.End
}

type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
)

var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

func (d Weekday) Valid() bool {
	for _, wd := range Weekdays {
		if d == wd {
			return true
		}
	}
	return false
}
