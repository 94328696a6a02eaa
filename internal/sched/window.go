package sched

import (
	"fmt"
	"strconv"
	"time"

	"github.com/argus-video/argus/internal/store"
)

// Window is the evaluated schedule of a task: when the task is allowed
// to execute.
type Window struct {
	Type  string
	Days  []string
	Start string
	End   string
}

// WindowFor extracts the schedule window from a task definition.
func WindowFor(task *store.TaskDefinition) Window {
	return Window{
		Type:  task.ScheduleType,
		Days:  task.ScheduleDays,
		Start: task.StartTime,
		End:   task.EndTime,
	}
}

// Contains reports whether now falls inside the window. Windows whose
// start is later than their end wrap over midnight; the day-of-week or
// day-of-month constraint then applies to the day the window opened.
func (w Window) Contains(now time.Time) (bool, error) {
	switch w.Type {
	case store.ScheduleContinuous, "":
		return true, nil
	case store.ScheduleDaily, store.ScheduleWeekly, store.ScheduleMonthly:
	default:
		return false, fmt.Errorf("unknown schedule type %q", w.Type)
	}

	startSec, err := parseClock(w.Start)
	if err != nil {
		return false, fmt.Errorf("start time: %w", err)
	}
	endSec, err := parseClock(w.End)
	if err != nil {
		return false, fmt.Errorf("end time: %w", err)
	}

	nowSec := now.Hour()*3600 + now.Minute()*60 + now.Second()

	if startSec <= endSec {
		if nowSec < startSec || nowSec > endSec {
			return false, nil
		}
		return w.dayMatches(now), nil
	}

	// Window wraps past midnight. Before midnight it belongs to today;
	// after midnight it belongs to the day it opened.
	switch {
	case nowSec >= startSec:
		return w.dayMatches(now), nil
	case nowSec <= endSec:
		return w.dayMatches(now.AddDate(0, 0, -1)), nil
	default:
		return false, nil
	}
}

func (w Window) dayMatches(day time.Time) bool {
	switch w.Type {
	case store.ScheduleWeekly:
		return containsDay(w.Days, isoWeekday(day))
	case store.ScheduleMonthly:
		return containsDay(w.Days, day.Day())
	default:
		return true
	}
}

// isoWeekday maps time.Weekday to ISO 8601 numbering, Monday=1.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func containsDay(days []string, day int) bool {
	for _, d := range days {
		if n, err := strconv.Atoi(d); err == nil && n == day {
			return true
		}
	}
	return false
}

// parseClock converts "HH:MM:SS" (or "HH:MM") to seconds since
// midnight.
func parseClock(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty clock value")
	}
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
		if err != nil {
			return 0, fmt.Errorf("invalid clock value %q", s)
		}
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}
