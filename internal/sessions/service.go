package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/catalog"
	"github.com/2beens/fitstreak/internal/checkpoints"
	"github.com/2beens/fitstreak/internal/plans"
	"github.com/2beens/fitstreak/internal/telemetry/metrics"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"
	"github.com/2beens/fitstreak/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type sessionsRepo interface {
	Create(ctx context.Context, session Session) (*Session, error)
	Get(ctx context.Context, userID string, id int) (*Session, error)
	Start(ctx context.Context, userID string, id int, now time.Time) (*Session, error)
	Recount(ctx context.Context, userID string, id int, now time.Time) (*Session, error)
	Finish(ctx context.Context, userID string, id int, caloriesBurned int, bonus int, now time.Time) (*Session, bool, error)
}

type userPlans interface {
	EnsureActive(ctx context.Context, userID string, id int) (*plans.UserPlan, error)
}

type exerciseCheckpoints interface {
	CreateExerciseCheckpoints(ctx context.Context, userID string, userPlanID int, items []catalog.Exercise, date time.Time) ([]*checkpoints.ExerciseCheckpoint, error)
	CompleteExerciseByKey(ctx context.Context, userID string, userPlanID int, exerciseID string, date time.Time, accrual checkpoints.ExerciseAccrual) (*checkpoints.ExerciseCompletion, error)
	ListForDate(ctx context.Context, userID string, userPlanID int, date time.Time) (*checkpoints.DayCheckpoints, error)
}

type catalogDays interface {
	Plan(id int) (catalog.Plan, error)
	ItemsForDay(planID int, ref catalog.DayRef) (catalog.Day, error)
}

type Service struct {
	repo           sessionsRepo
	plans          userPlans
	checkpoints    exerciseCheckpoints
	catalog        catalogDays
	metricsManager *metrics.Manager
	loc            *time.Location
	NowFunc        func() time.Time
}

func NewService(
	repo sessionsRepo,
	plans userPlans,
	checkpoints exerciseCheckpoints,
	catalog catalogDays,
	loc *time.Location,
	metricsManager *metrics.Manager,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:           repo,
		plans:          plans,
		checkpoints:    checkpoints,
		catalog:        catalog,
		metricsManager: metricsManager,
		loc:            loc,
		NowFunc:        time.Now,
	}
}

func (s *Service) workoutDay(plan *plans.UserPlan, date time.Time) (catalog.Day, error) {
	catalogPlan, err := s.catalog.Plan(plan.CatalogPlanID)
	if err != nil {
		return catalog.Day{}, err
	}
	day, err := s.catalog.ItemsForDay(plan.CatalogPlanID, catalogPlan.DayForDate(plan.StartDate, date))
	if err != nil {
		return catalog.Day{}, err
	}
	if len(day.Exercises) == 0 {
		return catalog.Day{}, fmt.Errorf("%w: plan %d has no exercises on %s", catalog.ErrDayNotFound, plan.CatalogPlanID, pkg.FormatDate(date))
	}
	return day, nil
}

// Initialize seeds the day's exercise checkpoints and creates the session of (plan, date).
// Initializing an existing day returns it unchanged.
func (s *Service) Initialize(ctx context.Context, userID string, userPlanID int, date time.Time) (_ *SessionDay, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.sessions.initialize")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", userPlanID))

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	plan, err := s.plans.EnsureActive(ctx, userID, userPlanID)
	if err != nil {
		return nil, err
	}

	if date.IsZero() {
		date = pkg.CalendarDate(s.NowFunc(), s.loc)
	}
	day, err := s.workoutDay(plan, date)
	if err != nil {
		return nil, err
	}

	exercises, err := s.checkpoints.CreateExerciseCheckpoints(ctx, userID, userPlanID, day.Exercises, date)
	if err != nil {
		return nil, fmt.Errorf("seed exercise checkpoints: %w", err)
	}

	label := day.Label
	if label == "" {
		label = plan.Title
	}
	session, err := s.repo.Create(ctx, Session{
		UserID:         userID,
		UserPlanID:     userPlanID,
		CatalogPlanID:  plan.CatalogPlanID,
		Label:          label,
		TotalExercises: len(exercises),
		WorkoutDate:    date,
		CreatedAt:      s.NowFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	log.Debugf("session %d initialized for plan %d on %s", session.ID, userPlanID, pkg.FormatDate(date))
	return &SessionDay{
		Session:   session,
		State:     session.State(),
		Exercises: exercises,
	}, nil
}

func (s *Service) Get(ctx context.Context, userID string, id int) (_ *SessionDay, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.sessions.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("session.id", id))

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	session, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	day, err := s.checkpoints.ListForDate(ctx, userID, session.UserPlanID, session.WorkoutDate)
	if err != nil {
		return nil, fmt.Errorf("list session checkpoints: %w", err)
	}

	return &SessionDay{
		Session:   session,
		State:     session.State(),
		Exercises: day.Exercises,
	}, nil
}

// activeSession loads the session and checks its plan still takes writes.
func (s *Service) activeSession(ctx context.Context, userID string, id int) (*Session, *plans.UserPlan, error) {
	if userID == "" {
		return nil, nil, auth.ErrNoUser
	}
	session, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	plan, err := s.plans.EnsureActive(ctx, userID, session.UserPlanID)
	if err != nil {
		return nil, nil, err
	}
	return session, plan, nil
}

func (s *Service) Start(ctx context.Context, userID string, id int) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.sessions.start")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("session.id", id))

	if _, _, err := s.activeSession(ctx, userID, id); err != nil {
		return nil, err
	}

	session, err := s.repo.Start(ctx, userID, id, s.NowFunc())
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return session, nil
}

// RecordExerciseCompletion completes one exercise of the session by its catalog id and
// recounts the session counters from the stored checkpoints.
func (s *Service) RecordExerciseCompletion(
	ctx context.Context,
	userID string, id int,
	exerciseID string,
	accrual checkpoints.ExerciseAccrual,
) (_ *ExerciseResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.sessions.recordExerciseCompletion")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("session.id", id))
	span.SetAttributes(attribute.String("exercise.id", exerciseID))

	session, _, err := s.activeSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	completion, err := s.checkpoints.CompleteExerciseByKey(ctx, userID, session.UserPlanID, exerciseID, session.WorkoutDate, accrual)
	if err != nil {
		return nil, err
	}

	session, err = s.repo.Recount(ctx, userID, id, s.NowFunc())
	if err != nil {
		return nil, fmt.Errorf("recount session: %w", err)
	}

	return &ExerciseResult{
		Session:    session,
		Completion: completion,
	}, nil
}

// Finish completes the session and awards the finish bonus once. Calories burned are taken
// from the catalog for the exercises actually completed.
func (s *Service) Finish(ctx context.Context, userID string, id int) (_ *FinishResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.sessions.finish")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("session.id", id))

	session, plan, err := s.activeSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	caloriesBurned := 0
	if !session.IsCompleted {
		caloriesBurned, err = s.caloriesBurned(ctx, userID, plan, session.WorkoutDate)
		if err != nil {
			return nil, err
		}
	}

	now := s.NowFunc()
	if _, err := s.repo.Recount(ctx, userID, id, now); err != nil {
		return nil, fmt.Errorf("recount session: %w", err)
	}

	finished, wasCompleted, err := s.repo.Finish(ctx, userID, id, caloriesBurned, FinishBonusPoints, now)
	if err != nil {
		return nil, fmt.Errorf("finish session: %w", err)
	}

	result := &FinishResult{
		Session:          finished,
		State:            finished.State(),
		AlreadyCompleted: wasCompleted,
	}
	if wasCompleted {
		log.Debugf("session %d already finished", id)
		if s.metricsManager != nil {
			s.metricsManager.CounterDuplicateCompletions.WithLabelValues("session").Inc()
		}
		return result, nil
	}

	result.BonusAwarded = FinishBonusPoints
	log.Debugf(
		"session %d finished: %d/%d exercises, %d points",
		id, finished.CompletedExercises, finished.TotalExercises, finished.PointsEarned,
	)
	if s.metricsManager != nil {
		s.metricsManager.CounterSessionsFinished.Inc()
		s.metricsManager.CounterPointsAwarded.WithLabelValues("session_bonus").Add(FinishBonusPoints)
	}
	return result, nil
}

func (s *Service) caloriesBurned(ctx context.Context, userID string, plan *plans.UserPlan, date time.Time) (int, error) {
	day, err := s.workoutDay(plan, date)
	if err != nil {
		// catalog day removed since initialization
		log.Warnf("calories of plan %d on %s: %s", plan.ID, pkg.FormatDate(date), err)
		return 0, nil
	}

	stored, err := s.checkpoints.ListForDate(ctx, userID, plan.ID, date)
	if err != nil {
		return 0, fmt.Errorf("list session checkpoints: %w", err)
	}

	completed := make(map[string]bool, len(stored.Exercises))
	for _, cp := range stored.Exercises {
		if cp.IsCompleted {
			completed[cp.ExerciseID] = true
		}
	}

	calories := 0
	for _, e := range day.Exercises {
		if completed[e.ID] {
			calories += e.Calories
		}
	}
	return calories, nil
}
