package booking

import (
	"fmt"
	"strings"
)

// TimeOfDay is a clock position on a 24-hour day. All slot arithmetic is
// done in minutes since midnight so labels never go through floats.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts exactly HH:MM (one or two digits per part).
// Anything beyond the minutes, like a seconds part, is a parse error
// rather than silently dropped.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, found := strings.Cut(s, ":")
	if !found || !isClockPart(hh) || !isClockPart(mm) {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: want HH:MM", s)
	}

	t := TimeOfDay{Hour: clockPart(hh), Minute: clockPart(mm)}
	if t.Hour > 23 || t.Minute > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

func isClockPart(s string) bool {
	if len(s) < 1 || len(s) > 2 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func clockPart(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func minutesLabel(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// SlotTime is one generated slot as a pair of HH:MM labels.
type SlotTime struct {
	Start string
	End   string
}

// ExpandWindow expands a working-hours window into consecutive slots of
// intervalMinutes each. A new slot starts as long as its start lies before
// the window end, so the last slot may run past the boundary: 08:00-08:50
// at 30 minutes yields 08:00-08:30 and 08:30-09:00. That matches how the
// booking clients have always generated slots, and published inventory
// depends on it.
//
// Pure function: same input, same output, no state.
func ExpandWindow(start, end TimeOfDay, intervalMinutes int) []SlotTime {
	if intervalMinutes <= 0 {
		return nil
	}

	endMinutes := end.Minutes()

	var slots []SlotTime
	for cur := start.Minutes(); cur < endMinutes; cur += intervalMinutes {
		slots = append(slots, SlotTime{
			Start: minutesLabel(cur),
			End:   minutesLabel(cur + intervalMinutes),
		})
	}
	return slots
}
