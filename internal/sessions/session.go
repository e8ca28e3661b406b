package sessions

import (
	"errors"
	"time"

	"github.com/2beens/fitstreak/internal/checkpoints"
)

const FinishBonusPoints = 50

var ErrSessionNotFound = errors.New("workout session not found")

// State can be one of:
//   - initialized: checkpoints seeded, not started
//   - started
//   - completed: finished by the user, possibly with exercises left undone
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitialized   State = "initialized"
	StateStarted       State = "started"
	StateCompleted     State = "completed"
)

type Session struct {
	ID                   int        `json:"id"`
	UserID               string     `json:"userId"`
	UserPlanID           int        `json:"userPlanId"`
	CatalogPlanID        int        `json:"catalogPlanId"`
	Label                string     `json:"label"`
	TotalExercises       int        `json:"totalExercises"`
	CompletedExercises   int        `json:"completedExercises"`
	TotalDurationMinutes int        `json:"totalDurationMinutes"`
	CaloriesBurned       int        `json:"caloriesBurned"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
	IsCompleted          bool       `json:"isCompleted"`
	PointsEarned         int        `json:"pointsEarned"`
	BonusPoints          int        `json:"bonusPoints"`
	WorkoutDate          time.Time  `json:"workoutDate"`
	CreatedAt            time.Time  `json:"createdAt"`
}

func (s *Session) State() State {
	switch {
	case s == nil || s.ID == 0:
		return StateUninitialized
	case s.IsCompleted:
		return StateCompleted
	case s.StartedAt != nil:
		return StateStarted
	default:
		return StateInitialized
	}
}

// SessionDay is a session together with its exercise checkpoints in catalog order.
type SessionDay struct {
	Session   *Session                          `json:"session"`
	State     State                             `json:"state"`
	Exercises []*checkpoints.ExerciseCheckpoint `json:"exercises"`
}

type ExerciseResult struct {
	Session    *Session                        `json:"session"`
	Completion *checkpoints.ExerciseCompletion `json:"completion"`
}

type FinishResult struct {
	Session          *Session `json:"session"`
	State            State    `json:"state"`
	AlreadyCompleted bool     `json:"alreadyCompleted"`
	BonusAwarded     int      `json:"bonusAwarded"`
}
