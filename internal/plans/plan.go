package plans

import (
	"errors"
	"time"

	"github.com/2beens/fitstreak/internal/catalog"
)

var (
	ErrPlanNotFound  = errors.New("user plan not found")
	ErrPlanCompleted = errors.New("user plan is completed")
	ErrInvalidPlan   = errors.New("invalid user plan")
)

// UserPlan is a user's enrollment in a catalog plan. Progress is derived from
// checkpoint history and never stored here.
type UserPlan struct {
	ID            int              `json:"id"`
	UserID        string           `json:"userId"`
	CatalogPlanID int              `json:"catalogPlanId"`
	Kind          catalog.PlanKind `json:"kind"`
	Title         string           `json:"title"`
	StartDate     time.Time        `json:"startDate"`
	TargetDays    int              `json:"targetDays"`
	IsCompleted   bool             `json:"isCompleted"`
	CompletedAt   *time.Time       `json:"completedAt,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

type StartParams struct {
	CatalogPlanID int    `json:"catalogPlanId"`
	Title         string `json:"title"`
	TargetDays    int    `json:"targetDays"`
	// StartDate is YYYY-MM-DD; today when empty
	StartDate string `json:"startDate"`
}

// DeleteResult counts the rows removed by a plan deletion.
type DeleteResult struct {
	PlanID              int   `json:"planId"`
	ExerciseCheckpoints int64 `json:"exerciseCheckpoints"`
	MealCheckpoints     int64 `json:"mealCheckpoints"`
	Sessions            int64 `json:"sessions"`
	NutritionEntries    int   `json:"nutritionEntries"`
}
