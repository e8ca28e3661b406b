package checkpoints

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/catalog"
	"github.com/2beens/fitstreak/internal/nutrition"
	"github.com/2beens/fitstreak/internal/plans"
	"github.com/2beens/fitstreak/internal/storage"
	"github.com/2beens/fitstreak/internal/telemetry/metrics"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"
	"github.com/2beens/fitstreak/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type checkpointsRepo interface {
	CreateExercises(ctx context.Context, userID string, userPlanID int, date time.Time, items []catalog.Exercise, now time.Time) ([]*ExerciseCheckpoint, error)
	CreateMeals(ctx context.Context, userID string, userPlanID int, date time.Time, items []catalog.Meal, now time.Time) ([]*MealCheckpoint, error)
	GetExercise(ctx context.Context, userID string, id int) (*ExerciseCheckpoint, error)
	GetExerciseByKey(ctx context.Context, userID string, userPlanID int, exerciseID string, date time.Time) (*ExerciseCheckpoint, error)
	GetMeal(ctx context.Context, userID string, id int) (*MealCheckpoint, error)
	CompleteExercise(ctx context.Context, userID string, id int, accrual ExerciseAccrual, points int, now time.Time) (*ExerciseCheckpoint, bool, error)
	CompleteMeal(ctx context.Context, userID string, id int, accrual MealAccrual, points int, now time.Time) (*MealCheckpoint, bool, error)
	CountMealsForDate(ctx context.Context, userID string, date time.Time) (int, error)
	ListExercises(ctx context.Context, f Filter) ([]*ExerciseCheckpoint, error)
	ListMeals(ctx context.Context, f Filter) ([]*MealCheckpoint, error)
}

type userPlans interface {
	Get(ctx context.Context, userID string, id int) (*plans.UserPlan, error)
	EnsureActive(ctx context.Context, userID string, id int) (*plans.UserPlan, error)
}

type nutritionFeed interface {
	RecordForDate(ctx context.Context, userID string, date time.Time, c nutrition.Consumption) (*nutrition.Goal, error)
	EnsureTotalMeals(ctx context.Context, userID string, date time.Time, n int) error
}

type catalogDays interface {
	Plan(id int) (catalog.Plan, error)
	ItemsForDay(planID int, ref catalog.DayRef) (catalog.Day, error)
}

type DayCheckpoints struct {
	Date      time.Time             `json:"date"`
	Exercises []*ExerciseCheckpoint `json:"exercises"`
	Meals     []*MealCheckpoint     `json:"meals"`
}

type PhotoURL struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Service struct {
	repo           checkpointsRepo
	plans          userPlans
	nutrition      nutritionFeed
	catalog        catalogDays
	photos         storage.FileStorage
	photoURLExpiry time.Duration
	metricsManager *metrics.Manager
	loc            *time.Location
	NowFunc        func() time.Time
}

type ServiceParams struct {
	Repo           checkpointsRepo
	Plans          userPlans
	Nutrition      nutritionFeed
	Catalog        catalogDays
	Photos         storage.FileStorage
	PhotoURLExpiry time.Duration
	MetricsManager *metrics.Manager
	Location       *time.Location
}

func NewService(params ServiceParams) *Service {
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	photos := params.Photos
	if photos == nil {
		photos = storage.NoopStorage{}
	}
	expiry := params.PhotoURLExpiry
	if expiry <= 0 {
		expiry = storage.DefaultPresignedURLExpiry
	}
	return &Service{
		repo:           params.Repo,
		plans:          params.Plans,
		nutrition:      params.Nutrition,
		catalog:        params.Catalog,
		photos:         photos,
		photoURLExpiry: expiry,
		metricsManager: params.MetricsManager,
		loc:            loc,
		NowFunc:        time.Now,
	}
}

func (s *Service) Today() time.Time {
	return pkg.CalendarDate(s.NowFunc(), s.loc)
}

func (s *Service) dateOrToday(date time.Time) time.Time {
	if date.IsZero() {
		return s.Today()
	}
	return pkg.CalendarDate(date, time.UTC)
}

// CreateExerciseCheckpoints seeds the given catalog exercises for a date (today when zero).
func (s *Service) CreateExerciseCheckpoints(
	ctx context.Context,
	userID string, userPlanID int,
	items []catalog.Exercise,
	date time.Time,
) (_ []*ExerciseCheckpoint, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.checkpoints.createExerciseCheckpoints")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", userPlanID))

	if userID == "" {
		return nil, auth.ErrNoUser
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no exercises", ErrInvalidCheckpoint)
	}
	for _, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("%w: missing exercise id", ErrInvalidCheckpoint)
		}
	}

	if _, err := s.plans.EnsureActive(ctx, userID, userPlanID); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateExercises(ctx, userID, userPlanID, s.dateOrToday(date), items, s.NowFunc())
	if err != nil {
		return nil, fmt.Errorf("create exercise checkpoints: %w", err)
	}
	return created, nil
}

// CreateMealCheckpoints seeds meals for a date and makes the day's nutrition goal expect them.
func (s *Service) CreateMealCheckpoints(
	ctx context.Context,
	userID string, userPlanID int,
	items []catalog.Meal,
	date time.Time,
) (_ []*MealCheckpoint, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.checkpoints.createMealCheckpoints")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", userPlanID))

	if userID == "" {
		return nil, auth.ErrNoUser
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no meals", ErrInvalidCheckpoint)
	}
	for _, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("%w: missing meal item id", ErrInvalidCheckpoint)
		}
	}

	if _, err := s.plans.EnsureActive(ctx, userID, userPlanID); err != nil {
		return nil, err
	}

	date = s.dateOrToday(date)
	created, err := s.repo.CreateMeals(ctx, userID, userPlanID, date, items, s.NowFunc())
	if err != nil {
		return nil, fmt.Errorf("create meal checkpoints: %w", err)
	}

	mealsCount, err := s.repo.CountMealsForDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("count meals: %w", err)
	}
	if err := s.nutrition.EnsureTotalMeals(ctx, userID, date, mealsCount); err != nil {
		return nil, fmt.Errorf("update nutrition total meals: %w", err)
	}

	return created, nil
}

// SeedMealsForDate seeds the catalog meals of the plan day matching date.
func (s *Service) SeedMealsForDate(ctx context.Context, userID string, userPlanID int, date time.Time) ([]*MealCheckpoint, error) {
	if userID == "" {
		return nil, auth.ErrNoUser
	}

	plan, err := s.plans.EnsureActive(ctx, userID, userPlanID)
	if err != nil {
		return nil, err
	}

	date = s.dateOrToday(date)
	day, err := s.dayFor(plan, date)
	if err != nil {
		return nil, err
	}
	if len(day.Meals) == 0 {
		return nil, fmt.Errorf("%w: plan %d has no meals on %s", catalog.ErrDayNotFound, plan.CatalogPlanID, pkg.FormatDate(date))
	}

	return s.CreateMealCheckpoints(ctx, userID, userPlanID, day.Meals, date)
}

func (s *Service) dayFor(plan *plans.UserPlan, date time.Time) (catalog.Day, error) {
	catalogPlan, err := s.catalog.Plan(plan.CatalogPlanID)
	if err != nil {
		return catalog.Day{}, err
	}
	ref := catalogPlan.DayForDate(plan.StartDate, date)
	return s.catalog.ItemsForDay(plan.CatalogPlanID, ref)
}

func (s *Service) CompleteExercise(ctx context.Context, userID string, id int, accrual ExerciseAccrual) (_ *ExerciseCompletion, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.checkpoints.completeExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("checkpoint.id", id))

	if userID == "" {
		return nil, auth.ErrNoUser
	}
	if err := accrual.Validate(); err != nil {
		return nil, err
	}

	cp, err := s.repo.GetExercise(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get exercise checkpoint: %w", err)
	}

	return s.completeExercise(ctx, userID, cp, accrual)
}

// CompleteExerciseByKey completes the checkpoint of (plan, exercise, date).
func (s *Service) CompleteExerciseByKey(
	ctx context.Context,
	userID string, userPlanID int,
	exerciseID string,
	date time.Time,
	accrual ExerciseAccrual,
) (_ *ExerciseCompletion, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.checkpoints.completeExerciseByKey")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise.id", exerciseID))

	if userID == "" {
		return nil, auth.ErrNoUser
	}
	if exerciseID == "" {
		return nil, fmt.Errorf("%w: missing exercise id", ErrInvalidCheckpoint)
	}
	if err := accrual.Validate(); err != nil {
		return nil, err
	}

	cp, err := s.repo.GetExerciseByKey(ctx, userID, userPlanID, exerciseID, s.dateOrToday(date))
	if err != nil {
		return nil, fmt.Errorf("get exercise checkpoint by key: %w", err)
	}

	return s.completeExercise(ctx, userID, cp, accrual)
}

func (s *Service) completeExercise(ctx context.Context, userID string, cp *ExerciseCheckpoint, accrual ExerciseAccrual) (*ExerciseCompletion, error) {
	if _, err := s.plans.EnsureActive(ctx, userID, cp.UserPlanID); err != nil {
		return nil, err
	}

	completed, wasCompleted, err := s.repo.CompleteExercise(
		ctx, userID, cp.ID, accrual.withDefaults(cp), ExercisePoints, s.NowFunc(),
	)
	if err != nil {
		return nil, fmt.Errorf("complete exercise checkpoint: %w", err)
	}

	result := &ExerciseCompletion{
		Checkpoint:       completed,
		AlreadyCompleted: wasCompleted,
	}
	if wasCompleted {
		log.Debugf("exercise checkpoint %d already completed, accrual updated", cp.ID)
		s.countDuplicate("exercise")
	} else {
		result.PointsAwarded = completed.PointsEarned
		s.countCompletion("exercise", result.PointsAwarded)
	}

	return result, nil
}

// CompleteMeal completes a meal checkpoint and feeds the day's nutrition goal. The feed is keyed
// by the checkpoint, so a retried completion never counts the meal twice.
func (s *Service) CompleteMeal(ctx context.Context, userID string, id int, accrual MealAccrual) (_ *MealCompletion, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.checkpoints.completeMeal")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("checkpoint.id", id))

	if userID == "" {
		return nil, auth.ErrNoUser
	}
	if err := accrual.Validate(); err != nil {
		return nil, err
	}
	if accrual.PhotoRef != "" && !storage.IsMealPhotoKeyOf(userID, accrual.PhotoRef) {
		return nil, fmt.Errorf("%w: foreign photo reference", ErrInvalidCheckpoint)
	}

	cp, err := s.repo.GetMeal(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get meal checkpoint: %w", err)
	}
	if _, err := s.plans.EnsureActive(ctx, userID, cp.UserPlanID); err != nil {
		return nil, err
	}

	accrual = accrual.withDefaults(cp)
	completed, wasCompleted, err := s.repo.CompleteMeal(ctx, userID, cp.ID, accrual, MealPoints, s.NowFunc())
	if err != nil {
		return nil, fmt.Errorf("complete meal checkpoint: %w", err)
	}

	if accrual.PhotoRef != "" && cp.PhotoRef != "" && cp.PhotoRef != completed.PhotoRef {
		if err := s.photos.DeleteObject(ctx, cp.PhotoRef); err != nil {
			log.Warnf("delete replaced meal photo %s: %s", cp.PhotoRef, err)
		}
	}

	userPlanID := completed.UserPlanID
	goal, err := s.nutrition.RecordForDate(ctx, userID, completed.MealDate, nutrition.Consumption{
		Calories:   completed.CaloriesConsumed,
		Protein:    *accrual.Protein,
		Carbs:      *accrual.Carbs,
		Fat:        *accrual.Fat,
		SourceKey:  MealSourceKey(completed.ID),
		UserPlanID: &userPlanID,
	})
	if err != nil {
		return nil, fmt.Errorf("feed nutrition goal: %w", err)
	}

	result := &MealCompletion{
		Checkpoint:       completed,
		AlreadyCompleted: wasCompleted,
		NutritionGoalID:  goal.ID,
	}
	if wasCompleted {
		log.Debugf("meal checkpoint %d already completed, accrual updated", cp.ID)
		s.countDuplicate("meal")
	} else {
		result.PointsAwarded = completed.PointsEarned
		s.countCompletion("meal", result.PointsAwarded)
	}

	return result, nil
}

// MealPhotoUploadURL issues a presigned upload URL. The returned key is passed back as photoRef
// when completing the meal.
func (s *Service) MealPhotoUploadURL(ctx context.Context, userID string, id int, contentType string) (_ *PhotoURL, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.checkpoints.mealPhotoUploadURL")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("checkpoint.id", id))

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	cp, err := s.repo.GetMeal(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get meal checkpoint: %w", err)
	}
	if _, err := s.plans.EnsureActive(ctx, userID, cp.UserPlanID); err != nil {
		return nil, err
	}

	key, err := storage.MealPhotoKey(userID, cp.ID, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCheckpoint, err)
	}

	url, err := s.photos.GeneratePresignedUploadURL(ctx, key, contentType, s.photoURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &PhotoURL{
		Key:       key,
		URL:       url,
		ExpiresAt: s.NowFunc().Add(s.photoURLExpiry),
	}, nil
}

func (s *Service) MealPhotoDownloadURL(ctx context.Context, userID string, id int) (_ *PhotoURL, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.checkpoints.mealPhotoDownloadURL")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("checkpoint.id", id))

	if userID == "" {
		return nil, auth.ErrNoUser
	}

	cp, err := s.repo.GetMeal(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("get meal checkpoint: %w", err)
	}
	if cp.PhotoRef == "" {
		return nil, fmt.Errorf("%w: meal %d has no photo", ErrCheckpointNotFound, id)
	}

	url, err := s.photos.GeneratePresignedDownloadURL(ctx, cp.PhotoRef, s.photoURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign download: %w", err)
	}

	return &PhotoURL{
		Key:       cp.PhotoRef,
		URL:       url,
		ExpiresAt: s.NowFunc().Add(s.photoURLExpiry),
	}, nil
}

// ListForDate returns the plan's exercise and meal checkpoints of a date in catalog order.
func (s *Service) ListForDate(ctx context.Context, userID string, userPlanID int, date time.Time) (_ *DayCheckpoints, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.checkpoints.listForDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if userID == "" {
		return nil, auth.ErrNoUser
	}
	if _, err := s.plans.Get(ctx, userID, userPlanID); err != nil {
		return nil, err
	}

	date = s.dateOrToday(date)
	filter := Filter{
		UserID:     userID,
		UserPlanID: userPlanID,
		From:       &date,
		To:         &date,
	}

	exercises, err := s.repo.ListExercises(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list exercise checkpoints: %w", err)
	}
	meals, err := s.repo.ListMeals(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list meal checkpoints: %w", err)
	}

	if exercises == nil {
		exercises = []*ExerciseCheckpoint{}
	}
	if meals == nil {
		meals = []*MealCheckpoint{}
	}

	return &DayCheckpoints{
		Date:      date,
		Exercises: exercises,
		Meals:     meals,
	}, nil
}

// IsNotFound reports errors that mean a missing checkpoint, plan or catalog day.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCheckpointNotFound) ||
		errors.Is(err, plans.ErrPlanNotFound) ||
		errors.Is(err, catalog.ErrDayNotFound) ||
		errors.Is(err, catalog.ErrPlanNotFound)
}

func (s *Service) countCompletion(domain string, points int) {
	if s.metricsManager == nil {
		return
	}
	s.metricsManager.CounterCheckpointsCompleted.WithLabelValues(domain).Inc()
	s.metricsManager.CounterPointsAwarded.WithLabelValues(domain).Add(float64(points))
}

func (s *Service) countDuplicate(domain string) {
	if s.metricsManager != nil {
		s.metricsManager.CounterDuplicateCompletions.WithLabelValues(domain).Inc()
	}
}
