package nutrition

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/telemetry/metrics"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"
	"github.com/2beens/fitstreak/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type goalsRepo interface {
	GetOrCreate(ctx context.Context, userID string, date time.Time, defaults Defaults, now time.Time) (*Goal, error)
	Get(ctx context.Context, userID string, id int) (*Goal, error)
	FindByDate(ctx context.Context, userID string, date time.Time) (*Goal, error)
	AddConsumption(ctx context.Context, userID string, goalID int, c Consumption, completionBonus int, now time.Time) (_ *Goal, applied bool, completedNow bool, err error)
	SetWater(ctx context.Context, userID string, goalID int, litres float64, completionBonus int, now time.Time) (_ *Goal, completedNow bool, err error)
	SetTargets(ctx context.Context, userID string, goalID int, targets Targets, completionBonus int, now time.Time) (_ *Goal, completedNow bool, err error)
	EnsureTotalMeals(ctx context.Context, userID string, goalID int, n int) error
}

type Service struct {
	repo           goalsRepo
	metricsManager *metrics.Manager
	defaults       Defaults
	loc            *time.Location
	NowFunc        func() time.Time
}

func NewService(repo goalsRepo, defaults Defaults, loc *time.Location, metricsManager *metrics.Manager) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:           repo,
		metricsManager: metricsManager,
		defaults:       defaults,
		loc:            loc,
		NowFunc:        time.Now,
	}
}

func (s *Service) Today() time.Time {
	return pkg.CalendarDate(s.NowFunc(), s.loc)
}

// GetOrCreate returns the goal of the date, creating it with default targets on first read.
func (s *Service) GetOrCreate(ctx context.Context, userID string, date time.Time) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.nutrition.getOrCreate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	goal, err := s.repo.GetOrCreate(ctx, userID, pkg.CalendarDate(date, time.UTC), s.defaults, s.NowFunc())
	if err != nil {
		return nil, fmt.Errorf("get or create goal: %w", err)
	}
	return goal, nil
}

// FindByDate returns the goal of the date or ErrGoalNotFound, it never creates one.
func (s *Service) FindByDate(ctx context.Context, userID string, date time.Time) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.nutrition.findByDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}
	return s.repo.FindByDate(ctx, userID, pkg.CalendarDate(date, time.UTC))
}

func (s *Service) Get(ctx context.Context, userID string, goalID int) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.nutrition.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	goal, err := s.repo.Get(ctx, userID, goalID)
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return goal, nil
}

// RecordMealConsumption adds the consumed amounts and counts one more completed meal. A source
// that was already counted only has its amounts replaced.
func (s *Service) RecordMealConsumption(ctx context.Context, userID string, goalID int, c Consumption) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.nutrition.recordMeal")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("goal.id", goalID))

	if userID == "" {
		return nil, auth.ErrNoUser
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	goal, applied, completedNow, err := s.repo.AddConsumption(ctx, userID, goalID, c, CompletionBonusPoints, s.NowFunc())
	if err != nil {
		return nil, fmt.Errorf("add consumption: %w", err)
	}

	if !applied {
		log.Debugf("nutrition goal %d: source [%s] already counted, amounts replaced", goalID, c.SourceKey)
		s.countEvent("duplicate")
	} else {
		s.countEvent("meal")
	}
	s.onCompletion(goal, completedNow)

	return goal, nil
}

// RecordForDate is RecordMealConsumption on the goal of the date, created if missing.
func (s *Service) RecordForDate(ctx context.Context, userID string, date time.Time, c Consumption) (*Goal, error) {
	goal, err := s.GetOrCreate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	return s.RecordMealConsumption(ctx, userID, goal.ID, c)
}

// UpdateWater replaces the consumed water with an absolute amount in litres.
func (s *Service) UpdateWater(ctx context.Context, userID string, goalID int, litres float64) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.nutrition.updateWater")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("goal.id", goalID))

	if userID == "" {
		return nil, auth.ErrNoUser
	}
	if litres < 0 {
		return nil, ErrInvalidAmount
	}

	goal, completedNow, err := s.repo.SetWater(ctx, userID, goalID, litres, CompletionBonusPoints, s.NowFunc())
	if err != nil {
		return nil, fmt.Errorf("set water: %w", err)
	}

	s.countEvent("water")
	s.onCompletion(goal, completedNow)
	return goal, nil
}

func (s *Service) SetTargets(ctx context.Context, userID string, goalID int, targets Targets) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.nutrition.setTargets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}
	if err := targets.Validate(); err != nil {
		return nil, err
	}

	goal, completedNow, err := s.repo.SetTargets(ctx, userID, goalID, targets, CompletionBonusPoints, s.NowFunc())
	if err != nil {
		return nil, fmt.Errorf("set targets: %w", err)
	}

	s.countEvent("targets")
	s.onCompletion(goal, completedNow)
	return goal, nil
}

// EnsureTotalMeals makes the goal of the date expect at least n meals.
func (s *Service) EnsureTotalMeals(ctx context.Context, userID string, date time.Time, n int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.nutrition.ensureTotalMeals")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	goal, err := s.GetOrCreate(ctx, userID, date)
	if err != nil {
		return err
	}
	if goal.TotalMeals >= n {
		return nil
	}
	if err := s.repo.EnsureTotalMeals(ctx, userID, goal.ID, n); err != nil {
		return fmt.Errorf("ensure total meals: %w", err)
	}
	return nil
}

func (s *Service) onCompletion(goal *Goal, completedNow bool) {
	if !completedNow {
		return
	}
	log.Debugf("nutrition goal %d [%s] completed, +%d points", goal.ID, pkg.FormatDate(goal.Date), CompletionBonusPoints)
	s.countEvent("completed")
	if s.metricsManager != nil {
		s.metricsManager.CounterPointsAwarded.WithLabelValues("nutrition_goal").Add(CompletionBonusPoints)
	}
}

func (s *Service) countEvent(kind string) {
	if s.metricsManager != nil {
		s.metricsManager.CounterNutritionEvents.WithLabelValues(kind).Inc()
	}
}
