package nutrition

import (
	"errors"
	"time"
)

var (
	ErrGoalNotFound  = errors.New("nutrition goal not found")
	ErrInvalidAmount = errors.New("invalid nutrition amount")
)

// CompletionBonusPoints is awarded once, on the first evaluation where every dimension is met.
const CompletionBonusPoints = 20

// Goal is the per (user, calendar date) nutrition record. It is shared by all of the
// user's meal and diet plans. Consumed values may exceed targets.
type Goal struct {
	ID               int       `json:"id"`
	UserID           string    `json:"userId"`
	Date             time.Time `json:"date"`
	TargetCalories   int       `json:"targetCalories"`
	ConsumedCalories int       `json:"consumedCalories"`
	TargetProtein    *float64  `json:"targetProtein,omitempty"`
	TargetCarbs      *float64  `json:"targetCarbs,omitempty"`
	TargetFat        *float64  `json:"targetFat,omitempty"`
	ConsumedProtein  float64   `json:"consumedProtein"`
	ConsumedCarbs    float64   `json:"consumedCarbs"`
	ConsumedFat      float64   `json:"consumedFat"`
	WaterTarget      float64   `json:"waterTarget"`
	WaterConsumed    float64   `json:"waterConsumed"`
	MealsCompleted   int       `json:"mealsCompleted"`
	TotalMeals       int       `json:"totalMeals"`
	PointsEarned     int       `json:"pointsEarned"`
	IsCompleted      bool      `json:"isCompleted"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Met reports whether calories, water and meals are all at or above target right now.
func (g Goal) Met() bool {
	return g.ConsumedCalories >= g.TargetCalories &&
		g.WaterConsumed >= g.WaterTarget &&
		g.MealsCompleted >= g.TotalMeals
}

// ManualSourcePrefix namespaces the source keys of client-logged meals, so they never
// collide with keys the engine derives from meal checkpoints.
const ManualSourcePrefix = "manual:"

// ManualSourceKey namespaces a client supplied key. Empty stays empty.
func ManualSourceKey(key string) string {
	if key == "" {
		return ""
	}
	return ManualSourcePrefix + key
}

// Consumption is an additive delta. A non-empty SourceKey makes it count at most once per
// goal; recording the same source again replaces the earlier amounts.
type Consumption struct {
	Calories   int     `json:"calories"`
	Protein    float64 `json:"protein"`
	Carbs      float64 `json:"carbs"`
	Fat        float64 `json:"fat"`
	SourceKey  string  `json:"sourceKey,omitempty"`
	UserPlanID *int    `json:"userPlanId,omitempty"`
}

func (c Consumption) Validate() error {
	if c.Calories < 0 || c.Protein < 0 || c.Carbs < 0 || c.Fat < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Consumption) minus(o Consumption) Consumption {
	return Consumption{
		Calories: c.Calories - o.Calories,
		Protein:  c.Protein - o.Protein,
		Carbs:    c.Carbs - o.Carbs,
		Fat:      c.Fat - o.Fat,
	}
}

func (c Consumption) isZero() bool {
	return c.Calories == 0 && c.Protein == 0 && c.Carbs == 0 && c.Fat == 0
}

// Targets holds the fields to change; nil fields are kept.
type Targets struct {
	Calories   *int     `json:"calories,omitempty"`
	Protein    *float64 `json:"protein,omitempty"`
	Carbs      *float64 `json:"carbs,omitempty"`
	Fat        *float64 `json:"fat,omitempty"`
	Water      *float64 `json:"water,omitempty"`
	TotalMeals *int     `json:"totalMeals,omitempty"`
}

func (t Targets) Validate() error {
	if t.Calories != nil && *t.Calories < 0 {
		return ErrInvalidAmount
	}
	if t.TotalMeals != nil && *t.TotalMeals < 0 {
		return ErrInvalidAmount
	}
	for _, v := range []*float64{t.Protein, t.Carbs, t.Fat, t.Water} {
		if v != nil && *v < 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}

// Defaults are applied to goals created on first read.
type Defaults struct {
	Calories   int
	Water      float64
	TotalMeals int
}

// Progress holds display percentages per dimension, each clamped to [0, 100].
type Progress struct {
	Calories float64  `json:"calories"`
	Protein  *float64 `json:"protein,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
	Water    float64  `json:"water"`
	Meals    float64  `json:"meals"`
}

func ProgressOf(g Goal) Progress {
	p := Progress{
		Calories: percent(float64(g.ConsumedCalories), float64(g.TargetCalories)),
		Water:    percent(g.WaterConsumed, g.WaterTarget),
		Meals:    percent(float64(g.MealsCompleted), float64(g.TotalMeals)),
	}
	if g.TargetProtein != nil {
		v := percent(g.ConsumedProtein, *g.TargetProtein)
		p.Protein = &v
	}
	if g.TargetCarbs != nil {
		v := percent(g.ConsumedCarbs, *g.TargetCarbs)
		p.Carbs = &v
	}
	if g.TargetFat != nil {
		v := percent(g.ConsumedFat, *g.TargetFat)
		p.Fat = &v
	}
	return p
}

// percent treats a zero target as already met.
func percent(consumed, target float64) float64 {
	if target <= 0 {
		return 100
	}
	v := consumed / target * 100
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
