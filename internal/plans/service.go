package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/catalog"
	"github.com/2beens/fitstreak/internal/telemetry/metrics"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"
	"github.com/2beens/fitstreak/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type plansRepo interface {
	Add(ctx context.Context, plan UserPlan) (*UserPlan, error)
	Get(ctx context.Context, userID string, id int) (*UserPlan, error)
	List(ctx context.Context, userID string, onlyActive bool) ([]*UserPlan, error)
	MarkCompleted(ctx context.Context, userID string, id int, at time.Time) (*UserPlan, error)
	DeleteAllData(ctx context.Context, userID string, id int) (*DeleteResult, error)
}

type catalogPlans interface {
	Plan(id int) (catalog.Plan, error)
}

type Service struct {
	repo           plansRepo
	catalog        catalogPlans
	metricsManager *metrics.Manager
	loc            *time.Location
	NowFunc        func() time.Time
}

func NewService(repo plansRepo, catalog catalogPlans, loc *time.Location, metricsManager *metrics.Manager) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:           repo,
		catalog:        catalog,
		metricsManager: metricsManager,
		loc:            loc,
		NowFunc:        time.Now,
	}
}

// Start enrolls the user in a catalog plan. Title and target days default to the catalog values.
// Starting the same catalog plan twice is allowed; callers hide the action for active plans.
func (s *Service) Start(ctx context.Context, userID string, params StartParams) (_ *UserPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.plans.start")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("catalog.plan.id", params.CatalogPlanID))

	if userID == "" {
		return nil, auth.ErrNoUser
	}
	if params.CatalogPlanID <= 0 {
		return nil, fmt.Errorf("%w: missing catalog plan id", ErrInvalidPlan)
	}
	if params.TargetDays < 0 {
		return nil, fmt.Errorf("%w: negative target days", ErrInvalidPlan)
	}

	catalogPlan, err := s.catalog.Plan(params.CatalogPlanID)
	if err != nil {
		if errors.Is(err, catalog.ErrPlanNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
		}
		return nil, err
	}

	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = catalogPlan.Title
	}
	if title == "" {
		return nil, fmt.Errorf("%w: missing title", ErrInvalidPlan)
	}

	targetDays := params.TargetDays
	if targetDays == 0 {
		targetDays = catalogPlan.DurationDays
	}

	now := s.NowFunc()
	startDate := pkg.CalendarDate(now, s.loc)
	if params.StartDate != "" {
		startDate, err = pkg.ParseDate(params.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: start date: %w", ErrInvalidPlan, err)
		}
	}

	added, err := s.repo.Add(ctx, UserPlan{
		UserID:        userID,
		CatalogPlanID: catalogPlan.ID,
		Kind:          catalogPlan.Kind,
		Title:         title,
		StartDate:     startDate,
		TargetDays:    targetDays,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("add user plan: %w", err)
	}

	log.Debugf("user %s started plan %d [catalog %d]", userID, added.ID, added.CatalogPlanID)
	s.countEvent("start")
	return added, nil
}

func (s *Service) Get(ctx context.Context, userID string, id int) (_ *UserPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.plans.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	plan, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get user plan: %w", err)
	}
	return plan, nil
}

// EnsureActive returns the plan if it still accepts checkpoint writes.
func (s *Service) EnsureActive(ctx context.Context, userID string, id int) (*UserPlan, error) {
	plan, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if plan.IsCompleted {
		return nil, fmt.Errorf("%w: %d", ErrPlanCompleted, id)
	}
	return plan, nil
}

func (s *Service) List(ctx context.Context, userID string, onlyActive bool) (_ []*UserPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.plans.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	userPlans, err := s.repo.List(ctx, userID, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("list user plans: %w", err)
	}
	return userPlans, nil
}

// RemoveFromActive completes the plan without touching its history. Repeated calls are no-ops.
func (s *Service) RemoveFromActive(ctx context.Context, userID string, id int) (_ *UserPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.plans.removeFromActive")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	plan, err := s.repo.MarkCompleted(ctx, userID, id, s.NowFunc())
	if err != nil {
		return nil, fmt.Errorf("mark plan completed: %w", err)
	}

	s.countEvent("remove")
	return plan, nil
}

// DeleteAllData hard deletes the plan and everything it produced. Nutrition goals shared
// with other plans only lose this plan's contributions.
func (s *Service) DeleteAllData(ctx context.Context, userID string, id int) (_ *DeleteResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.plans.deleteAllData")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	result, err := s.repo.DeleteAllData(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("delete plan data: %w", err)
	}

	log.Debugf(
		"user %s deleted plan %d: %d exercise cps, %d meal cps, %d sessions, %d nutrition entries",
		userID, id, result.ExerciseCheckpoints, result.MealCheckpoints, result.Sessions, result.NutritionEntries,
	)
	s.countEvent("delete")
	return result, nil
}

func (s *Service) countEvent(event string) {
	if s.metricsManager != nil {
		s.metricsManager.CounterPlanLifecycleEvents.WithLabelValues(event).Inc()
	}
}
