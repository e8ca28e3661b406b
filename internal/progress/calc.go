package progress

import (
	"sort"
	"time"

	"github.com/2beens/fitstreak/pkg"
)

const PointsPerLevel = 100

// Level is floor(points/100)+1. Negative totals count as zero.
func Level(points int) int {
	if points < 0 {
		points = 0
	}
	return points/PointsPerLevel + 1
}

func PointsToNextLevel(points int) int {
	if points < 0 {
		points = 0
	}
	return Level(points)*PointsPerLevel - points
}

// PlanProgressPercent is activeDays/targetDays as a percentage clamped to [0, 100].
func PlanProgressPercent(activeDays, targetDays int) float64 {
	if targetDays <= 0 || activeDays <= 0 {
		return 0
	}
	percent := float64(activeDays) / float64(targetDays) * 100
	if percent > 100 {
		return 100
	}
	return percent
}

// DayOf returns the calendar day of t in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	return pkg.CalendarDate(t, loc)
}

type Streak struct {
	Current          int        `json:"current"`
	Longest          int        `json:"longest"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty"`
}

// Streaks counts runs of consecutive activity days. The current streak ends today, or
// yesterday when nothing was done today yet. Days after today are ignored.
func Streaks(activity []time.Time, today time.Time) Streak {
	today = DayOf(today, time.UTC)

	days := make([]time.Time, 0, len(activity))
	seen := make(map[time.Time]bool, len(activity))
	for _, a := range activity {
		d := DayOf(a, time.UTC)
		if d.After(today) || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	if len(days) == 0 {
		return Streak{}
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Before(days[j])
	})

	streak := Streak{}
	run := 0
	for i, d := range days {
		if i > 0 && pkg.DaysBetween(days[i-1], d) == 1 {
			run++
		} else {
			run = 1
		}
		if run > streak.Longest {
			streak.Longest = run
		}
	}

	last := days[len(days)-1]
	streak.LastActivityDate = &last
	if gap := pkg.DaysBetween(last, today); gap <= 1 {
		streak.Current = run
	}
	return streak
}
