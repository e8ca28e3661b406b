package catalog

import (
	"fmt"
	"sync"
)

// Provider serves read-only catalog lookups. The catalog can be swapped at runtime.
type Provider struct {
	mutex   sync.RWMutex
	catalog *Catalog
}

func NewProvider(c *Catalog) *Provider {
	return &Provider{
		catalog: c,
	}
}

func (p *Provider) Replace(c *Catalog) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.catalog = c
}

func (p *Provider) Plan(id int) (Plan, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	plan, ok := p.catalog.Plan(id)
	if !ok {
		return Plan{}, fmt.Errorf("%w: %d", ErrPlanNotFound, id)
	}
	return plan, nil
}

func (p *Provider) Plans() []Plan {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.catalog.SortedPlans()
}

// ItemsForDay returns the ordered exercises and meals of a plan day.
// ErrDayNotFound means a rest day.
func (p *Provider) ItemsForDay(planID int, ref DayRef) (Day, error) {
	plan, err := p.Plan(planID)
	if err != nil {
		return Day{}, err
	}

	day, ok := plan.Day(ref)
	if !ok {
		return Day{}, fmt.Errorf("%w: plan %d day %s", ErrDayNotFound, planID, ref)
	}
	return day, nil
}
