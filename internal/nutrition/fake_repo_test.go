package nutrition

import (
	"context"
	"sync"
	"time"
)

// testRepo mirrors the store semantics in memory.
type testRepo struct {
	mutex   sync.Mutex
	nextID  int
	goals   map[int]*Goal
	sources map[int]map[string]Consumption
}

func newTestRepo() *testRepo {
	return &testRepo{
		nextID:  1,
		goals:   map[int]*Goal{},
		sources: map[int]map[string]Consumption{},
	}
}

func (r *testRepo) GetOrCreate(_ context.Context, userID string, date time.Time, defaults Defaults, now time.Time) (*Goal, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, g := range r.goals {
		if g.UserID == userID && g.Date.Equal(date) {
			cp := *g
			return &cp, nil
		}
	}

	g := &Goal{
		ID:             r.nextID,
		UserID:         userID,
		Date:           date,
		TargetCalories: defaults.Calories,
		WaterTarget:    defaults.Water,
		TotalMeals:     defaults.TotalMeals,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.goals[g.ID] = g
	r.nextID++
	cp := *g
	return &cp, nil
}

func (r *testRepo) FindByDate(_ context.Context, userID string, date time.Time) (*Goal, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, g := range r.goals {
		if g.UserID == userID && g.Date.Equal(date) {
			cp := *g
			return &cp, nil
		}
	}
	return nil, ErrGoalNotFound
}

func (r *testRepo) Get(_ context.Context, userID string, id int) (*Goal, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	g, ok := r.goals[id]
	if !ok || g.UserID != userID {
		return nil, ErrGoalNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *testRepo) mutate(userID string, goalID int, bonus int, fn func(g *Goal)) (*Goal, bool, error) {
	g, ok := r.goals[goalID]
	if !ok || g.UserID != userID {
		return nil, false, ErrGoalNotFound
	}
	fn(g)
	completedNow := false
	if !g.IsCompleted && g.Met() {
		g.IsCompleted = true
		g.PointsEarned += bonus
		completedNow = true
	}
	cp := *g
	return &cp, completedNow, nil
}

func (r *testRepo) AddConsumption(_ context.Context, userID string, goalID int, c Consumption, bonus int, now time.Time) (*Goal, bool, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	applied := false
	g, completedNow, err := r.mutate(userID, goalID, bonus, func(g *Goal) {
		delta := c
		if c.SourceKey != "" {
			if r.sources[goalID] == nil {
				r.sources[goalID] = map[string]Consumption{}
			}
			prev, seen := r.sources[goalID][c.SourceKey]
			r.sources[goalID][c.SourceKey] = c
			if seen {
				delta = c.minus(prev)
			}
			applied = !seen
		} else {
			applied = true
		}
		g.ConsumedCalories += delta.Calories
		g.ConsumedProtein += delta.Protein
		g.ConsumedCarbs += delta.Carbs
		g.ConsumedFat += delta.Fat
		if applied {
			g.MealsCompleted++
		}
		g.UpdatedAt = now
	})
	return g, applied, completedNow, err
}

func (r *testRepo) SetWater(_ context.Context, userID string, goalID int, litres float64, bonus int, now time.Time) (*Goal, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.mutate(userID, goalID, bonus, func(g *Goal) {
		g.WaterConsumed = litres
		g.UpdatedAt = now
	})
}

func (r *testRepo) SetTargets(_ context.Context, userID string, goalID int, t Targets, bonus int, now time.Time) (*Goal, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.mutate(userID, goalID, bonus, func(g *Goal) {
		if t.Calories != nil {
			g.TargetCalories = *t.Calories
		}
		if t.Protein != nil {
			g.TargetProtein = t.Protein
		}
		if t.Carbs != nil {
			g.TargetCarbs = t.Carbs
		}
		if t.Fat != nil {
			g.TargetFat = t.Fat
		}
		if t.Water != nil {
			g.WaterTarget = *t.Water
		}
		if t.TotalMeals != nil {
			g.TotalMeals = *t.TotalMeals
		}
		g.UpdatedAt = now
	})
}

func (r *testRepo) EnsureTotalMeals(_ context.Context, userID string, goalID int, n int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	g, ok := r.goals[goalID]
	if !ok || g.UserID != userID {
		return ErrGoalNotFound
	}
	if n > g.TotalMeals {
		g.TotalMeals = n
	}
	return nil
}
