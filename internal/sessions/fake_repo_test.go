package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/2beens/fitstreak/internal/catalog"
	"github.com/2beens/fitstreak/internal/checkpoints"
	"github.com/2beens/fitstreak/internal/plans"
)

// testCheckpoints keeps exercise checkpoints per (plan, date) in catalog order.
type testCheckpoints struct {
	mutex  sync.Mutex
	nextID int
	days   map[int]map[time.Time][]*checkpoints.ExerciseCheckpoint
}

func newTestCheckpoints() *testCheckpoints {
	return &testCheckpoints{
		nextID: 1,
		days:   map[int]map[time.Time][]*checkpoints.ExerciseCheckpoint{},
	}
}

func (c *testCheckpoints) CreateExerciseCheckpoints(_ context.Context, userID string, userPlanID int, items []catalog.Exercise, date time.Time) ([]*checkpoints.ExerciseCheckpoint, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.days[userPlanID] == nil {
		c.days[userPlanID] = map[time.Time][]*checkpoints.ExerciseCheckpoint{}
	}
	if len(c.days[userPlanID][date]) == 0 {
		for i, item := range items {
			c.days[userPlanID][date] = append(c.days[userPlanID][date], &checkpoints.ExerciseCheckpoint{
				ID:          c.nextID,
				UserID:      userID,
				UserPlanID:  userPlanID,
				ExerciseID:  item.ID,
				TotalSets:   item.Sets,
				Position:    i,
				WorkoutDate: date,
			})
			c.nextID++
		}
	}
	return c.copyDay(userPlanID, date), nil
}

func (c *testCheckpoints) copyDay(userPlanID int, date time.Time) []*checkpoints.ExerciseCheckpoint {
	list := []*checkpoints.ExerciseCheckpoint{}
	for _, cp := range c.days[userPlanID][date] {
		cpCopy := *cp
		list = append(list, &cpCopy)
	}
	return list
}

func (c *testCheckpoints) CompleteExerciseByKey(_ context.Context, _ string, userPlanID int, exerciseID string, date time.Time, accrual checkpoints.ExerciseAccrual) (*checkpoints.ExerciseCompletion, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, cp := range c.days[userPlanID][date] {
		if cp.ExerciseID != exerciseID {
			continue
		}
		completion := &checkpoints.ExerciseCompletion{AlreadyCompleted: cp.IsCompleted}
		cp.SetsCompleted = accrual.SetsCompleted
		if !cp.IsCompleted {
			cp.IsCompleted = true
			cp.PointsEarned = checkpoints.ExercisePoints
			completion.PointsAwarded = checkpoints.ExercisePoints
		}
		cpCopy := *cp
		completion.Checkpoint = &cpCopy
		return completion, nil
	}
	return nil, checkpoints.ErrCheckpointNotFound
}

func (c *testCheckpoints) ListForDate(_ context.Context, _ string, userPlanID int, date time.Time) (*checkpoints.DayCheckpoints, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return &checkpoints.DayCheckpoints{
		Date:      date,
		Exercises: c.copyDay(userPlanID, date),
		Meals:     []*checkpoints.MealCheckpoint{},
	}, nil
}

func (c *testCheckpoints) stats(userPlanID int, date time.Time) (completed, points int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, cp := range c.days[userPlanID][date] {
		if cp.IsCompleted {
			completed++
		}
		points += cp.PointsEarned
	}
	return completed, points
}

type testRepo struct {
	mutex       sync.Mutex
	nextID      int
	sessions    map[int]*Session
	checkpoints *testCheckpoints
	// plans removed after the service checked them, as seen by the store
	removedPlans map[int]bool
}

func newTestRepo(cps *testCheckpoints) *testRepo {
	return &testRepo{
		nextID:       1,
		sessions:     map[int]*Session{},
		checkpoints:  cps,
		removedPlans: map[int]bool{},
	}
}

func (r *testRepo) Create(_ context.Context, session Session) (*Session, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, s := range r.sessions {
		if s.UserPlanID == session.UserPlanID && s.WorkoutDate.Equal(session.WorkoutDate) {
			if session.TotalExercises > s.TotalExercises {
				s.TotalExercises = session.TotalExercises
			}
			sCopy := *s
			return &sCopy, nil
		}
	}

	session.ID = r.nextID
	r.nextID++
	r.sessions[session.ID] = &session
	sCopy := session
	return &sCopy, nil
}

func (r *testRepo) get(userID string, id int) (*Session, error) {
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *testRepo) Get(_ context.Context, userID string, id int) (*Session, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s, err := r.get(userID, id)
	if err != nil {
		return nil, err
	}
	sCopy := *s
	return &sCopy, nil
}

func (r *testRepo) Start(_ context.Context, userID string, id int, now time.Time) (*Session, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s, err := r.get(userID, id)
	if err != nil {
		return nil, err
	}
	if s.StartedAt == nil {
		s.StartedAt = &now
	}
	sCopy := *s
	return &sCopy, nil
}

func (r *testRepo) Recount(_ context.Context, userID string, id int, now time.Time) (*Session, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s, err := r.get(userID, id)
	if err != nil {
		return nil, err
	}
	completed, points := r.checkpoints.stats(s.UserPlanID, s.WorkoutDate)
	s.CompletedExercises = min(completed, s.TotalExercises)
	s.PointsEarned = s.BonusPoints + points
	if s.StartedAt == nil {
		s.StartedAt = &now
	}
	sCopy := *s
	return &sCopy, nil
}

func (r *testRepo) Finish(_ context.Context, userID string, id int, caloriesBurned int, bonus int, now time.Time) (*Session, bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s, err := r.get(userID, id)
	if err != nil {
		return nil, false, err
	}
	if r.removedPlans[s.UserPlanID] {
		return nil, false, plans.ErrPlanCompleted
	}
	wasCompleted := s.IsCompleted
	if !wasCompleted {
		if s.StartedAt == nil {
			s.StartedAt = &now
		}
		s.IsCompleted = true
		s.CompletedAt = &now
		s.TotalDurationMinutes = int(now.Sub(*s.StartedAt).Minutes())
		s.CaloriesBurned = caloriesBurned
		s.BonusPoints = bonus
		s.PointsEarned += bonus
	}
	sCopy := *s
	return &sCopy, wasCompleted, nil
}

type testPlans struct {
	plans map[int]*plans.UserPlan
}

func (p *testPlans) EnsureActive(_ context.Context, userID string, id int) (*plans.UserPlan, error) {
	plan, ok := p.plans[id]
	if !ok || plan.UserID != userID {
		return nil, plans.ErrPlanNotFound
	}
	if plan.IsCompleted {
		return nil, plans.ErrPlanCompleted
	}
	return plan, nil
}
