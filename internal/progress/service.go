package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/nutrition"
	"github.com/2beens/fitstreak/internal/plans"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

const WeekDays = 7

type progressRepo interface {
	ActivityDates(ctx context.Context, userID string) ([]time.Time, error)
	PlanActiveDays(ctx context.Context, userID string, userPlanID int) (int, error)
	Points(ctx context.Context, userID string, period Period) (Points, error)
	Counts(ctx context.Context, userID string, period Period) (Counts, error)
}

type userPlans interface {
	Get(ctx context.Context, userID string, id int) (*plans.UserPlan, error)
}

type nutritionGoals interface {
	FindByDate(ctx context.Context, userID string, date time.Time) (*nutrition.Goal, error)
}

// Service derives progress figures on read. It performs no writes.
type Service struct {
	repo      progressRepo
	plans     userPlans
	nutrition nutritionGoals
	loc       *time.Location
	NowFunc   func() time.Time
}

func NewService(repo progressRepo, plans userPlans, nutrition nutritionGoals, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:      repo,
		plans:     plans,
		nutrition: nutrition,
		loc:       loc,
		NowFunc:   time.Now,
	}
}

func (s *Service) Today() time.Time {
	return DayOf(s.NowFunc(), s.loc)
}

func (s *Service) PlanProgress(ctx context.Context, userID string, planID int) (_ *PlanProgress, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.plan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", planID))

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	plan, err := s.plans.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}

	activeDays, err := s.repo.PlanActiveDays(ctx, userID, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("plan active days: %w", err)
	}

	return &PlanProgress{
		UserPlanID:  plan.ID,
		TargetDays:  plan.TargetDays,
		ActiveDays:  activeDays,
		Percent:     PlanProgressPercent(activeDays, plan.TargetDays),
		IsCompleted: plan.IsCompleted,
	}, nil
}

// TodayStats covers the current calendar day, including the nutrition goal when one exists.
func (s *Service) TodayStats(ctx context.Context, userID string) (_ *TodayStats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.today")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	today := s.Today()
	period := Period{From: &today, To: &today}

	counts, err := s.repo.Counts(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	points, err := s.repo.Points(ctx, userID, period)
	if err != nil {
		return nil, err
	}

	stats := &TodayStats{
		Date:                 today,
		Counts:               counts,
		CheckpointsCompleted: counts.CheckpointsCompleted(),
		CheckpointsTotal:     counts.CheckpointsTotal(),
		Points:               points,
		TotalPoints:          points.Total(),
	}

	goal, err := s.nutrition.FindByDate(ctx, userID, today)
	switch {
	case errors.Is(err, nutrition.ErrGoalNotFound):
	case err != nil:
		return nil, fmt.Errorf("nutrition goal: %w", err)
	default:
		progress := nutrition.ProgressOf(*goal)
		stats.NutritionGoal = goal
		stats.NutritionProgress = &progress
	}

	return stats, nil
}

// Week covers today and the seven days before it.
func (s *Service) Week(ctx context.Context, userID string) (_ *WeekStats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.week")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	to := s.Today()
	from := to.AddDate(0, 0, -WeekDays)
	period := Period{From: &from, To: &to}

	counts, err := s.repo.Counts(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	points, err := s.repo.Points(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	activity, err := s.repo.ActivityDates(ctx, userID)
	if err != nil {
		return nil, err
	}

	activeDays := 0
	for _, d := range activity {
		d = DayOf(d, time.UTC)
		if !d.Before(from) && !d.After(to) {
			activeDays++
		}
	}

	return &WeekStats{
		From:        from,
		To:          to,
		Counts:      counts,
		Points:      points,
		TotalPoints: points.Total(),
		ActiveDays:  activeDays,
	}, nil
}

func (s *Service) Summary(ctx context.Context, userID string) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.progress.summary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	points, err := s.repo.Points(ctx, userID, Period{})
	if err != nil {
		return nil, err
	}
	activity, err := s.repo.ActivityDates(ctx, userID)
	if err != nil {
		return nil, err
	}

	total := points.Total()
	return &Summary{
		TotalPoints:       total,
		Points:            points,
		Level:             Level(total),
		PointsToNextLevel: PointsToNextLevel(total),
		Streak:            Streaks(activity, s.Today()),
	}, nil
}
