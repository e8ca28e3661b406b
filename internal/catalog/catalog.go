package catalog

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var (
	ErrPlanNotFound   = errors.New("catalog plan not found")
	ErrDayNotFound    = errors.New("catalog day not found")
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// PlanKind can be one of:
//   - workout
//   - meal
//   - diet
type PlanKind string

const (
	PlanKindWorkout PlanKind = "workout"
	PlanKindMeal    PlanKind = "meal"
	PlanKindDiet    PlanKind = "diet"
)

func (k PlanKind) IsValid() bool {
	switch k {
	case PlanKindWorkout, PlanKindMeal, PlanKindDiet:
		return true
	default:
		return false
	}
}

type Schedule string

const (
	ScheduleWeekday  Schedule = "weekday"
	ScheduleDayIndex Schedule = "day_index"
)

type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

func (mt MealType) IsValid() bool {
	switch mt {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	default:
		return false
	}
}

type Exercise struct {
	ID              string `toml:"id" json:"id"`
	Name            string `toml:"name" json:"name"`
	Sets            int    `toml:"sets" json:"sets"`
	Reps            string `toml:"reps" json:"reps"`
	RestSeconds     int    `toml:"rest_seconds" json:"restSeconds"`
	DurationMinutes int    `toml:"duration_minutes" json:"durationMinutes"`
	Calories        int    `toml:"calories" json:"calories"`
}

type Meal struct {
	ID       string   `toml:"id" json:"id"`
	Name     string   `toml:"name" json:"name"`
	MealType MealType `toml:"meal_type" json:"mealType"`
	Quantity string   `toml:"quantity" json:"quantity"`
	Calories int      `toml:"calories" json:"calories"`
	Protein  float64  `toml:"protein" json:"protein"`
	Carbs    float64  `toml:"carbs" json:"carbs"`
	Fat      float64  `toml:"fat" json:"fat"`
}

type Day struct {
	Weekday   string     `toml:"weekday" json:"weekday,omitempty"`
	Index     int        `toml:"index" json:"index,omitempty"`
	Label     string     `toml:"label" json:"label"`
	Exercises []Exercise `toml:"exercises" json:"exercises"`
	Meals     []Meal     `toml:"meals" json:"meals"`
}

// TotalCalories is the sum of the exercises' catalog calorie burn.
func (d Day) TotalCalories() int {
	total := 0
	for _, e := range d.Exercises {
		total += e.Calories
	}
	return total
}

type Plan struct {
	ID           int      `toml:"id" json:"id"`
	Kind         PlanKind `toml:"kind" json:"kind"`
	Title        string   `toml:"title" json:"title"`
	DurationDays int      `toml:"duration_days" json:"durationDays"`
	Schedule     Schedule `toml:"schedule" json:"schedule"`
	Days         []Day    `toml:"days" json:"days"`
}

// DayRef points to a plan day either by weekday name or by 1-based index.
type DayRef struct {
	Weekday string
	Index   int
}

func (r DayRef) String() string {
	if r.Weekday != "" {
		return r.Weekday
	}
	return strconv.Itoa(r.Index)
}

// ParseDayRef accepts a weekday name (monday, Tue...) or a positive day index.
func ParseDayRef(s string) (DayRef, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DayRef{}, errors.New("empty day")
	}
	if idx, err := strconv.Atoi(s); err == nil {
		if idx < 1 {
			return DayRef{}, fmt.Errorf("day index must be positive: %d", idx)
		}
		return DayRef{Index: idx}, nil
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || s == name[:3] {
			return DayRef{Weekday: name}, nil
		}
	}
	return DayRef{}, fmt.Errorf("unknown day: %s", s)
}

// DayForDate maps a calendar date of an enrollment that started on startDate to a plan day.
// Weekday schedules use the date's weekday; day index schedules cycle over the plan days.
func (p Plan) DayForDate(startDate, date time.Time) DayRef {
	if p.Schedule == ScheduleWeekday {
		return DayRef{Weekday: strings.ToLower(date.Weekday().String())}
	}

	cycle := p.cycleLength()
	diff := int(date.Sub(startDate).Hours() / 24)
	if diff < 0 || cycle == 0 {
		return DayRef{Index: 0}
	}
	return DayRef{Index: diff%cycle + 1}
}

func (p Plan) cycleLength() int {
	maxIdx := 0
	for _, d := range p.Days {
		if d.Index > maxIdx {
			maxIdx = d.Index
		}
	}
	return maxIdx
}

func (p Plan) Day(ref DayRef) (Day, bool) {
	for _, d := range p.Days {
		if ref.Weekday != "" && strings.EqualFold(d.Weekday, ref.Weekday) {
			return d, true
		}
		if ref.Weekday == "" && ref.Index > 0 && d.Index == ref.Index {
			return d, true
		}
	}
	return Day{}, false
}

type Catalog struct {
	Plans []Plan `toml:"plans"`

	byID map[int]Plan
}

func Decode(r io.Reader) (*Catalog, error) {
	c := &Catalog{}
	if _, err := toml.NewDecoder(r).Decode(c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Validate() error {
	c.byID = make(map[int]Plan, len(c.Plans))
	for _, p := range c.Plans {
		if err := validatePlan(p); err != nil {
			return fmt.Errorf("%w: plan %d: %w", ErrInvalidCatalog, p.ID, err)
		}
		if _, exists := c.byID[p.ID]; exists {
			return fmt.Errorf("%w: duplicate plan id %d", ErrInvalidCatalog, p.ID)
		}
		c.byID[p.ID] = p
	}
	return nil
}

func validatePlan(p Plan) error {
	if p.ID <= 0 {
		return errors.New("id must be positive")
	}
	if !p.Kind.IsValid() {
		return fmt.Errorf("unknown kind [%s]", p.Kind)
	}
	if p.Title == "" {
		return errors.New("missing title")
	}
	if p.DurationDays <= 0 {
		return errors.New("duration_days must be positive")
	}
	if p.Schedule != ScheduleWeekday && p.Schedule != ScheduleDayIndex {
		return fmt.Errorf("unknown schedule [%s]", p.Schedule)
	}
	if len(p.Days) == 0 {
		return errors.New("no days")
	}

	seenDays := make(map[string]bool, len(p.Days))
	for i, d := range p.Days {
		var dayKey string
		switch p.Schedule {
		case ScheduleWeekday:
			ref, err := ParseDayRef(d.Weekday)
			if err != nil || ref.Weekday == "" {
				return fmt.Errorf("day %d: invalid weekday [%s]", i, d.Weekday)
			}
			dayKey = ref.Weekday
		case ScheduleDayIndex:
			if d.Index < 1 {
				return fmt.Errorf("day %d: index must be positive", i)
			}
			dayKey = strconv.Itoa(d.Index)
		}
		if seenDays[dayKey] {
			return fmt.Errorf("duplicate day [%s]", dayKey)
		}
		seenDays[dayKey] = true

		if len(d.Exercises) == 0 && len(d.Meals) == 0 {
			return fmt.Errorf("day [%s] has no items", dayKey)
		}
		if err := validateItems(d); err != nil {
			return fmt.Errorf("day [%s]: %w", dayKey, err)
		}
	}
	return nil
}

func validateItems(d Day) error {
	seen := make(map[string]bool)
	for _, e := range d.Exercises {
		if e.ID == "" || e.Name == "" {
			return errors.New("exercise missing id or name")
		}
		if seen[e.ID] {
			return fmt.Errorf("duplicate item id [%s]", e.ID)
		}
		seen[e.ID] = true
		if e.Sets < 0 || e.RestSeconds < 0 || e.DurationMinutes < 0 || e.Calories < 0 {
			return fmt.Errorf("exercise [%s]: negative target", e.ID)
		}
	}
	for _, m := range d.Meals {
		if m.ID == "" || m.Name == "" {
			return errors.New("meal missing id or name")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate item id [%s]", m.ID)
		}
		seen[m.ID] = true
		if !m.MealType.IsValid() {
			return fmt.Errorf("meal [%s]: unknown meal type [%s]", m.ID, m.MealType)
		}
		if m.Calories < 0 || m.Protein < 0 || m.Carbs < 0 || m.Fat < 0 {
			return fmt.Errorf("meal [%s]: negative target", m.ID)
		}
	}
	return nil
}

func (c *Catalog) Plan(id int) (Plan, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// SortedPlans returns plans ordered by id.
func (c *Catalog) SortedPlans() []Plan {
	plans := make([]Plan, len(c.Plans))
	copy(plans, c.Plans)
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].ID < plans[j].ID
	})
	return plans
}
