package plans

import (
	"context"
	"sort"
	"sync"
	"time"
)

type testRepo struct {
	mutex   sync.Mutex
	nextID  int
	plans   map[int]*UserPlan
	deleted []int
}

func newTestRepo() *testRepo {
	return &testRepo{
		nextID: 1,
		plans:  map[int]*UserPlan{},
	}
}

func (r *testRepo) Add(_ context.Context, plan UserPlan) (*UserPlan, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	plan.ID = r.nextID
	r.nextID++
	r.plans[plan.ID] = &plan
	cp := plan
	return &cp, nil
}

func (r *testRepo) Get(_ context.Context, userID string, id int) (*UserPlan, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, ok := r.plans[id]
	if !ok || p.UserID != userID {
		return nil, ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *testRepo) List(_ context.Context, userID string, onlyActive bool) ([]*UserPlan, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var userPlans []*UserPlan
	for _, p := range r.plans {
		if p.UserID != userID || (onlyActive && p.IsCompleted) {
			continue
		}
		cp := *p
		userPlans = append(userPlans, &cp)
	}
	sort.Slice(userPlans, func(i, j int) bool {
		return userPlans[i].ID < userPlans[j].ID
	})
	return userPlans, nil
}

func (r *testRepo) MarkCompleted(_ context.Context, userID string, id int, at time.Time) (*UserPlan, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, ok := r.plans[id]
	if !ok || p.UserID != userID {
		return nil, ErrPlanNotFound
	}
	if !p.IsCompleted {
		p.IsCompleted = true
		p.CompletedAt = &at
		p.UpdatedAt = at
	}
	cp := *p
	return &cp, nil
}

func (r *testRepo) DeleteAllData(_ context.Context, userID string, id int) (*DeleteResult, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	p, ok := r.plans[id]
	if !ok || p.UserID != userID {
		return nil, ErrPlanNotFound
	}
	delete(r.plans, id)
	r.deleted = append(r.deleted, id)
	return &DeleteResult{PlanID: id}, nil
}
