package checkpoints

import (
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitstreak/internal/catalog"
)

const (
	ExercisePoints = 5
	MealPoints     = 10
)

var (
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrInvalidCheckpoint  = errors.New("invalid checkpoint")
)

type ExerciseCheckpoint struct {
	ID            int        `json:"id"`
	UserID        string     `json:"userId"`
	UserPlanID    int        `json:"userPlanId"`
	ExerciseID    string     `json:"exerciseId"`
	ExerciseName  string     `json:"exerciseName"`
	TotalSets     int        `json:"totalSets"`
	TargetReps    string     `json:"targetReps"`
	SetsCompleted int        `json:"setsCompleted"`
	RepsCompleted string     `json:"repsCompleted"`
	WeightUsed    float64    `json:"weightUsed"`
	IsCompleted   bool       `json:"isCompleted"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	PointsEarned  int        `json:"pointsEarned"`
	Notes         string     `json:"notes"`
	Position      int        `json:"position"`
	WorkoutDate   time.Time  `json:"workoutDate"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type MealCheckpoint struct {
	ID               int              `json:"id"`
	UserID           string           `json:"userId"`
	UserPlanID       int              `json:"userPlanId"`
	MealItemID       string           `json:"mealItemId"`
	FoodName         string           `json:"foodName"`
	MealType         catalog.MealType `json:"mealType"`
	TargetQuantity   string           `json:"targetQuantity"`
	TargetCalories   int              `json:"targetCalories"`
	TargetProtein    float64          `json:"targetProtein"`
	TargetCarbs      float64          `json:"targetCarbs"`
	TargetFat        float64          `json:"targetFat"`
	QuantityConsumed string           `json:"quantityConsumed"`
	CaloriesConsumed int              `json:"caloriesConsumed"`
	IsCompleted      bool             `json:"isCompleted"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
	PointsEarned     int              `json:"pointsEarned"`
	PhotoRef         string           `json:"photoRef"`
	Notes            string           `json:"notes"`
	Position         int              `json:"position"`
	MealDate         time.Time        `json:"mealDate"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// ExerciseAccrual holds what the user reports when completing an exercise.
// Zero sets and empty reps fall back to the targets.
type ExerciseAccrual struct {
	SetsCompleted int     `json:"setsCompleted"`
	RepsCompleted string  `json:"repsCompleted"`
	WeightUsed    float64 `json:"weightUsed"`
	Notes         string  `json:"notes"`
}

func (a ExerciseAccrual) Validate() error {
	if a.SetsCompleted < 0 {
		return fmt.Errorf("%w: negative sets", ErrInvalidCheckpoint)
	}
	if a.WeightUsed < 0 {
		return fmt.Errorf("%w: negative weight", ErrInvalidCheckpoint)
	}
	return nil
}

// withDefaults fills unset fields from the checkpoint targets.
func (a ExerciseAccrual) withDefaults(cp *ExerciseCheckpoint) ExerciseAccrual {
	if a.SetsCompleted == 0 {
		a.SetsCompleted = cp.TotalSets
	}
	if a.RepsCompleted == "" {
		a.RepsCompleted = cp.TargetReps
	}
	return a
}

// MealAccrual holds what the user reports when completing a meal.
// Nil amounts fall back to the catalog targets.
type MealAccrual struct {
	Quantity string   `json:"quantity"`
	Calories *int     `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
	PhotoRef string   `json:"photoRef"`
	Notes    string   `json:"notes"`
}

func (a MealAccrual) Validate() error {
	if a.Calories != nil && *a.Calories < 0 {
		return fmt.Errorf("%w: negative calories", ErrInvalidCheckpoint)
	}
	for _, v := range []*float64{a.Protein, a.Carbs, a.Fat} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: negative macros", ErrInvalidCheckpoint)
		}
	}
	return nil
}

func (a MealAccrual) withDefaults(cp *MealCheckpoint) MealAccrual {
	if a.Quantity == "" {
		a.Quantity = cp.TargetQuantity
	}
	if a.Calories == nil {
		a.Calories = &cp.TargetCalories
	}
	if a.Protein == nil {
		a.Protein = &cp.TargetProtein
	}
	if a.Carbs == nil {
		a.Carbs = &cp.TargetCarbs
	}
	if a.Fat == nil {
		a.Fat = &cp.TargetFat
	}
	return a
}

type ExerciseCompletion struct {
	Checkpoint       *ExerciseCheckpoint `json:"checkpoint"`
	AlreadyCompleted bool                `json:"alreadyCompleted"`
	PointsAwarded    int                 `json:"pointsAwarded"`
}

type MealCompletion struct {
	Checkpoint       *MealCheckpoint `json:"checkpoint"`
	AlreadyCompleted bool            `json:"alreadyCompleted"`
	PointsAwarded    int             `json:"pointsAwarded"`
	NutritionGoalID  int             `json:"nutritionGoalId,omitempty"`
}

type Filter struct {
	UserID        string
	UserPlanID    int
	From          *time.Time
	To            *time.Time
	OnlyCompleted bool
}

// MealSourceKey identifies a meal checkpoint's contribution to the daily nutrition goal.
func MealSourceKey(checkpointID int) string {
	return fmt.Sprintf("meal-checkpoint:%d", checkpointID)
}
