package sched

import (
	"fmt"
	"testing"
	"time"

	"github.com/argus-video/argus/internal/store"
)

// at builds a time at the given clock on a fixed reference day.
// 2024-06-12 is a Wednesday (ISO weekday 3).
func at(day int, clock string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", fmt.Sprintf("2024-06-%02d %s", day, clock))
	if err != nil {
		panic(err)
	}
	return t
}

func TestContinuousAlwaysOpen(t *testing.T) {
	w := Window{Type: store.ScheduleContinuous}
	for _, clock := range []string{"00:00:00", "12:30:00", "23:59:59"} {
		in, err := w.Contains(at(12, clock))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !in {
			t.Errorf("continuous window closed at %s", clock)
		}
	}
}

func TestDailyWindow(t *testing.T) {
	w := Window{Type: store.ScheduleDaily, Start: "09:00:00", End: "17:00:00"}
	cases := []struct {
		clock string
		want  bool
	}{
		{"08:59:59", false},
		{"09:00:00", true},
		{"12:00:00", true},
		{"17:00:00", true},
		{"17:00:01", false},
	}
	for _, tc := range cases {
		in, err := w.Contains(at(12, tc.clock))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.clock, err)
		}
		if in != tc.want {
			t.Errorf("at %s: got %v, want %v", tc.clock, in, tc.want)
		}
	}
}

func TestDailyWindowWrapsMidnight(t *testing.T) {
	w := Window{Type: store.ScheduleDaily, Start: "22:00:00", End: "06:00:00"}
	cases := []struct {
		clock string
		want  bool
	}{
		{"21:59:59", false},
		{"22:00:00", true},
		{"23:30:00", true},
		{"00:00:00", true},
		{"05:59:59", true},
		{"06:00:01", false},
		{"12:00:00", false},
	}
	for _, tc := range cases {
		in, err := w.Contains(at(12, tc.clock))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.clock, err)
		}
		if in != tc.want {
			t.Errorf("at %s: got %v, want %v", tc.clock, in, tc.want)
		}
	}
}

func TestWeeklyWindowDayMembership(t *testing.T) {
	// Wednesday only.
	w := Window{Type: store.ScheduleWeekly, Days: []string{"3"}, Start: "09:00:00", End: "17:00:00"}

	if in, _ := w.Contains(at(12, "10:00:00")); !in {
		t.Error("expected open on Wednesday inside hours")
	}
	if in, _ := w.Contains(at(13, "10:00:00")); in {
		t.Error("expected closed on Thursday")
	}
	if in, _ := w.Contains(at(12, "20:00:00")); in {
		t.Error("expected closed outside hours")
	}
}

func TestWeeklyWrapBelongsToOpeningDay(t *testing.T) {
	// Wednesday 22:00 through Thursday 04:00.
	w := Window{Type: store.ScheduleWeekly, Days: []string{"3"}, Start: "22:00:00", End: "04:00:00"}

	if in, _ := w.Contains(at(12, "23:00:00")); !in {
		t.Error("expected open Wednesday night")
	}
	// Thursday 02:00 is still the Wednesday window.
	if in, _ := w.Contains(at(13, "02:00:00")); !in {
		t.Error("expected open after midnight on Thursday")
	}
	// Friday 02:00 is not.
	if in, _ := w.Contains(at(14, "02:00:00")); in {
		t.Error("expected closed Friday morning")
	}
}

func TestMonthlyWindowDayOfMonth(t *testing.T) {
	w := Window{Type: store.ScheduleMonthly, Days: []string{"1", "15"}, Start: "00:00:00", End: "23:59:59"}

	if in, _ := w.Contains(at(15, "12:00:00")); !in {
		t.Error("expected open on the 15th")
	}
	if in, _ := w.Contains(at(16, "12:00:00")); in {
		t.Error("expected closed on the 16th")
	}
}

func TestWindowRejectsBadInput(t *testing.T) {
	if _, err := (Window{Type: "hourly"}).Contains(at(12, "12:00:00")); err == nil {
		t.Error("expected error for unknown schedule type")
	}
	if _, err := (Window{Type: store.ScheduleDaily, Start: "9am", End: "17:00:00"}).Contains(at(12, "12:00:00")); err == nil {
		t.Error("expected error for malformed start time")
	}
	if _, err := (Window{Type: store.ScheduleDaily, Start: "09:00:00", End: ""}).Contains(at(12, "12:00:00")); err == nil {
		t.Error("expected error for empty end time")
	}
}

func TestWindowAcceptsShortClockFormat(t *testing.T) {
	w := Window{Type: store.ScheduleDaily, Start: "09:00", End: "17:00"}
	if in, err := w.Contains(at(12, "10:00:00")); err != nil || !in {
		t.Errorf("got in=%v err=%v, want open", in, err)
	}
}

func TestWindowForCopiesSchedule(t *testing.T) {
	task := &store.TaskDefinition{
		ScheduleType: store.ScheduleWeekly,
		ScheduleDays: []string{"6", "7"},
		StartTime:    "08:00:00",
		EndTime:      "20:00:00",
	}
	w := WindowFor(task)
	if w.Type != store.ScheduleWeekly || len(w.Days) != 2 || w.Start != "08:00:00" {
		t.Errorf("unexpected window: %+v", w)
	}
}
