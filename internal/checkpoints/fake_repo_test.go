package checkpoints

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/2beens/fitstreak/internal/catalog"
	"github.com/2beens/fitstreak/internal/nutrition"
	"github.com/2beens/fitstreak/internal/plans"
)

type testRepo struct {
	mutex     sync.Mutex
	nextID    int
	exercises map[int]*ExerciseCheckpoint
	meals     map[int]*MealCheckpoint
	// plans removed after the service checked them, as seen by the store
	removedPlans map[int]bool
}

func newTestRepo() *testRepo {
	return &testRepo{
		nextID:       1,
		exercises:    map[int]*ExerciseCheckpoint{},
		meals:        map[int]*MealCheckpoint{},
		removedPlans: map[int]bool{},
	}
}

func (r *testRepo) CreateExercises(_ context.Context, userID string, userPlanID int, date time.Time, items []catalog.Exercise, now time.Time) ([]*ExerciseCheckpoint, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	seen := map[int]bool{}
	var created []*ExerciseCheckpoint
	for i, item := range items {
		var existing *ExerciseCheckpoint
		for _, cp := range r.exercises {
			if cp.UserPlanID == userPlanID && cp.ExerciseID == item.ID && cp.WorkoutDate.Equal(date) {
				existing = cp
			}
		}
		if existing == nil {
			existing = &ExerciseCheckpoint{
				ID:           r.nextID,
				UserID:       userID,
				UserPlanID:   userPlanID,
				ExerciseID:   item.ID,
				ExerciseName: item.Name,
				TotalSets:    item.Sets,
				TargetReps:   item.Reps,
				Position:     i,
				WorkoutDate:  date,
				CreatedAt:    now,
			}
			r.exercises[existing.ID] = existing
			r.nextID++
		}
		if seen[existing.ID] {
			continue
		}
		seen[existing.ID] = true
		cp := *existing
		created = append(created, &cp)
	}
	return created, nil
}

func (r *testRepo) CreateMeals(_ context.Context, userID string, userPlanID int, date time.Time, items []catalog.Meal, now time.Time) ([]*MealCheckpoint, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	seen := map[int]bool{}
	var created []*MealCheckpoint
	for i, item := range items {
		var existing *MealCheckpoint
		for _, cp := range r.meals {
			if cp.UserPlanID == userPlanID && cp.MealItemID == item.ID && cp.MealDate.Equal(date) {
				existing = cp
			}
		}
		if existing == nil {
			existing = &MealCheckpoint{
				ID:             r.nextID,
				UserID:         userID,
				UserPlanID:     userPlanID,
				MealItemID:     item.ID,
				FoodName:       item.Name,
				MealType:       item.MealType,
				TargetQuantity: item.Quantity,
				TargetCalories: item.Calories,
				TargetProtein:  item.Protein,
				TargetCarbs:    item.Carbs,
				TargetFat:      item.Fat,
				Position:       i,
				MealDate:       date,
				CreatedAt:      now,
			}
			r.meals[existing.ID] = existing
			r.nextID++
		}
		if seen[existing.ID] {
			continue
		}
		seen[existing.ID] = true
		cp := *existing
		created = append(created, &cp)
	}
	return created, nil
}

func (r *testRepo) GetExercise(_ context.Context, userID string, id int) (*ExerciseCheckpoint, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cp, ok := r.exercises[id]
	if !ok || cp.UserID != userID {
		return nil, ErrCheckpointNotFound
	}
	c := *cp
	return &c, nil
}

func (r *testRepo) GetExerciseByKey(_ context.Context, userID string, userPlanID int, exerciseID string, date time.Time) (*ExerciseCheckpoint, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, cp := range r.exercises {
		if cp.UserID == userID && cp.UserPlanID == userPlanID && cp.ExerciseID == exerciseID && cp.WorkoutDate.Equal(date) {
			c := *cp
			return &c, nil
		}
	}
	return nil, ErrCheckpointNotFound
}

func (r *testRepo) GetMeal(_ context.Context, userID string, id int) (*MealCheckpoint, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cp, ok := r.meals[id]
	if !ok || cp.UserID != userID {
		return nil, ErrCheckpointNotFound
	}
	c := *cp
	return &c, nil
}

func (r *testRepo) CompleteExercise(_ context.Context, userID string, id int, accrual ExerciseAccrual, points int, now time.Time) (*ExerciseCheckpoint, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cp, ok := r.exercises[id]
	if !ok || cp.UserID != userID {
		return nil, false, ErrCheckpointNotFound
	}
	if r.removedPlans[cp.UserPlanID] {
		return nil, false, plans.ErrPlanCompleted
	}
	wasCompleted := cp.IsCompleted
	cp.SetsCompleted = accrual.SetsCompleted
	cp.RepsCompleted = accrual.RepsCompleted
	cp.WeightUsed = accrual.WeightUsed
	cp.Notes = accrual.Notes
	if !wasCompleted {
		cp.IsCompleted = true
		cp.CompletedAt = &now
		cp.PointsEarned = points
	}
	c := *cp
	return &c, wasCompleted, nil
}

func (r *testRepo) CompleteMeal(_ context.Context, userID string, id int, accrual MealAccrual, points int, now time.Time) (*MealCheckpoint, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cp, ok := r.meals[id]
	if !ok || cp.UserID != userID {
		return nil, false, ErrCheckpointNotFound
	}
	if r.removedPlans[cp.UserPlanID] {
		return nil, false, plans.ErrPlanCompleted
	}
	wasCompleted := cp.IsCompleted
	cp.QuantityConsumed = accrual.Quantity
	if accrual.Calories != nil {
		cp.CaloriesConsumed = *accrual.Calories
	}
	if accrual.PhotoRef != "" {
		cp.PhotoRef = accrual.PhotoRef
	}
	cp.Notes = accrual.Notes
	if !wasCompleted {
		cp.IsCompleted = true
		cp.CompletedAt = &now
		cp.PointsEarned = points
	}
	c := *cp
	return &c, wasCompleted, nil
}

func (r *testRepo) CountMealsForDate(_ context.Context, userID string, date time.Time) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	count := 0
	for _, cp := range r.meals {
		if cp.UserID == userID && cp.MealDate.Equal(date) {
			count++
		}
	}
	return count, nil
}

func inFilter(f Filter, userID string, userPlanID int, date time.Time, completed bool) bool {
	if userID != f.UserID {
		return false
	}
	if f.UserPlanID > 0 && userPlanID != f.UserPlanID {
		return false
	}
	if f.From != nil && date.Before(*f.From) {
		return false
	}
	if f.To != nil && date.After(*f.To) {
		return false
	}
	return !f.OnlyCompleted || completed
}

func (r *testRepo) ListExercises(_ context.Context, f Filter) ([]*ExerciseCheckpoint, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var list []*ExerciseCheckpoint
	for _, cp := range r.exercises {
		if inFilter(f, cp.UserID, cp.UserPlanID, cp.WorkoutDate, cp.IsCompleted) {
			c := *cp
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Position < list[j].Position
	})
	return list, nil
}

func (r *testRepo) ListMeals(_ context.Context, f Filter) ([]*MealCheckpoint, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var list []*MealCheckpoint
	for _, cp := range r.meals {
		if inFilter(f, cp.UserID, cp.UserPlanID, cp.MealDate, cp.IsCompleted) {
			c := *cp
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Position < list[j].Position
	})
	return list, nil
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

func (p *testPlans) EnsureActive(ctx context.Context, userID string, id int) (*plans.UserPlan, error) {
	plan, err := p.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if plan.IsCompleted {
		return nil, plans.ErrPlanCompleted
	}
	return plan, nil
}

// testNutrition keeps one additive goal per date. A repeated source key replaces its amounts.
type testNutrition struct {
	mutex      sync.Mutex
	goals      map[time.Time]*nutrition.Goal
	sources    map[string]nutrition.Consumption
	totalMeals map[time.Time]int
	fail       bool
}

func newTestNutrition() *testNutrition {
	return &testNutrition{
		goals:      map[time.Time]*nutrition.Goal{},
		sources:    map[string]nutrition.Consumption{},
		totalMeals: map[time.Time]int{},
	}
}

func (n *testNutrition) RecordForDate(_ context.Context, userID string, date time.Time, c nutrition.Consumption) (*nutrition.Goal, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if n.fail {
		return nil, errors.New("nutrition store down")
	}
	goal, ok := n.goals[date]
	if !ok {
		goal = &nutrition.Goal{ID: len(n.goals) + 1, UserID: userID, Date: date, TargetCalories: 2000}
		n.goals[date] = goal
	}
	prev, seen := n.sources[c.SourceKey]
	n.sources[c.SourceKey] = c
	goal.ConsumedCalories += c.Calories - prev.Calories
	goal.ConsumedProtein += c.Protein - prev.Protein
	if !seen {
		goal.MealsCompleted++
	}
	g := *goal
	return &g, nil
}

func (n *testNutrition) EnsureTotalMeals(_ context.Context, _ string, date time.Time, count int) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	if count > n.totalMeals[date] {
		n.totalMeals[date] = count
	}
	return nil
}

type testStorage struct {
	deleted []string
}

func (s *testStorage) GeneratePresignedUploadURL(_ context.Context, objectKey string, _ string, _ time.Duration) (string, error) {
	return "https://bucket.test/" + objectKey + "?upload", nil
}

func (s *testStorage) GeneratePresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://bucket.test/" + objectKey, nil
}

func (s *testStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	return nil
}
