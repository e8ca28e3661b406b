package progress

import (
	"context"
	"time"

	"github.com/2beens/fitstreak/internal/nutrition"
	"github.com/2beens/fitstreak/internal/plans"
)

type pointsEntry struct {
	date   time.Time
	points Points
	counts Counts
}

// testRepo keeps per-day figures and sums them the way the sql does.
type testRepo struct {
	entries    map[string][]pointsEntry
	activity   map[string][]time.Time
	activeDays map[int]int
	err        error
}

func newTestRepo() *testRepo {
	return &testRepo{
		entries:    make(map[string][]pointsEntry),
		activity:   make(map[string][]time.Time),
		activeDays: make(map[int]int),
	}
}

func (r *testRepo) add(userID string, date time.Time, points Points, counts Counts) {
	r.entries[userID] = append(r.entries[userID], pointsEntry{date: date, points: points, counts: counts})
	if counts.CheckpointsCompleted() > 0 || counts.SessionsCompleted > 0 {
		r.activity[userID] = append(r.activity[userID], date)
	}
}

func inPeriod(d time.Time, p Period) bool {
	if p.From != nil && d.Before(*p.From) {
		return false
	}
	if p.To != nil && d.After(*p.To) {
		return false
	}
	return true
}

func (r *testRepo) ActivityDates(_ context.Context, userID string) ([]time.Time, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.activity[userID], nil
}

func (r *testRepo) PlanActiveDays(_ context.Context, _ string, userPlanID int) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.activeDays[userPlanID], nil
}

func (r *testRepo) Points(_ context.Context, userID string, period Period) (Points, error) {
	if r.err != nil {
		return Points{}, r.err
	}
	var total Points
	for _, e := range r.entries[userID] {
		if !inPeriod(e.date, period) {
			continue
		}
		total.Exercises += e.points.Exercises
		total.Meals += e.points.Meals
		total.SessionBonus += e.points.SessionBonus
		total.Nutrition += e.points.Nutrition
	}
	return total, nil
}

func (r *testRepo) Counts(_ context.Context, userID string, period Period) (Counts, error) {
	if r.err != nil {
		return Counts{}, r.err
	}
	var total Counts
	for _, e := range r.entries[userID] {
		if !inPeriod(e.date, period) {
			continue
		}
		total.ExercisesCompleted += e.counts.ExercisesCompleted
		total.ExercisesTotal += e.counts.ExercisesTotal
		total.MealsCompleted += e.counts.MealsCompleted
		total.MealsTotal += e.counts.MealsTotal
		total.SessionsCompleted += e.counts.SessionsCompleted
		total.SessionsTotal += e.counts.SessionsTotal
	}
	return total, nil
}

type testPlans struct {
	plans map[int]*plans.UserPlan
}

func (p *testPlans) Get(_ context.Context, userID string, id int) (*plans.UserPlan, error) {
	plan, ok := p.plans[id]
	if !ok || plan.UserID != userID {
		return nil, plans.ErrPlanNotFound
	}
	return plan, nil
}

type testGoals struct {
	goals map[time.Time]*nutrition.Goal
}

func (g *testGoals) FindByDate(_ context.Context, userID string, date time.Time) (*nutrition.Goal, error) {
	goal, ok := g.goals[date]
	if !ok || goal.UserID != userID {
		return nil, nutrition.ErrGoalNotFound
	}
	return goal, nil
}
