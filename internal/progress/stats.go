package progress

import (
	"time"

	"github.com/2beens/fitstreak/internal/nutrition"
)

// Period bounds a query by calendar date, nil ends are open.
type Period struct {
	From *time.Time
	To   *time.Time
}

type Points struct {
	Exercises    int `json:"exercises"`
	Meals        int `json:"meals"`
	SessionBonus int `json:"sessionBonus"`
	Nutrition    int `json:"nutrition"`
}

func (p Points) Total() int {
	return p.Exercises + p.Meals + p.SessionBonus + p.Nutrition
}

type Counts struct {
	ExercisesCompleted int `json:"exercisesCompleted"`
	ExercisesTotal     int `json:"exercisesTotal"`
	MealsCompleted     int `json:"mealsCompleted"`
	MealsTotal         int `json:"mealsTotal"`
	SessionsCompleted  int `json:"sessionsCompleted"`
	SessionsTotal      int `json:"sessionsTotal"`
}

func (c Counts) CheckpointsCompleted() int {
	return c.ExercisesCompleted + c.MealsCompleted
}

func (c Counts) CheckpointsTotal() int {
	return c.ExercisesTotal + c.MealsTotal
}

type PlanProgress struct {
	UserPlanID  int     `json:"userPlanId"`
	TargetDays  int     `json:"targetDays"`
	ActiveDays  int     `json:"activeDays"`
	Percent     float64 `json:"percent"`
	IsCompleted bool    `json:"isCompleted"`
}

type TodayStats struct {
	Date                 time.Time           `json:"date"`
	Counts               Counts              `json:"counts"`
	CheckpointsCompleted int                 `json:"checkpointsCompleted"`
	CheckpointsTotal     int                 `json:"checkpointsTotal"`
	Points               Points              `json:"points"`
	TotalPoints          int                 `json:"totalPoints"`
	NutritionGoal        *nutrition.Goal     `json:"nutritionGoal,omitempty"`
	NutritionProgress    *nutrition.Progress `json:"nutritionProgress,omitempty"`
}

type WeekStats struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Counts      Counts    `json:"counts"`
	Points      Points    `json:"points"`
	TotalPoints int       `json:"totalPoints"`
	ActiveDays  int       `json:"activeDays"`
}

type Summary struct {
	TotalPoints       int    `json:"totalPoints"`
	Points            Points `json:"points"`
	Level             int    `json:"level"`
	PointsToNextLevel int    `json:"pointsToNextLevel"`
	Streak            Streak `json:"streak"`
}
