package checkpoints

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/fitstreak/internal/catalog"
	"github.com/2beens/fitstreak/internal/plans"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const exerciseColumns = `id, user_id, user_plan_id, exercise_id, exercise_name, total_sets, target_reps,
	sets_completed, reps_completed, weight_used, is_completed, completed_at, points_earned, notes,
	position, workout_date, created_at`

const mealColumns = `id, user_id, user_plan_id, meal_item_id, food_name, meal_type, target_quantity,
	target_calories, target_protein, target_carbs, target_fat, quantity_consumed, calories_consumed,
	is_completed, completed_at, points_earned, photo_ref, notes, position, meal_date, created_at`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func scanExercise(row pgx.Row, extra ...any) (*ExerciseCheckpoint, error) {
	cp := &ExerciseCheckpoint{}
	dest := append(extra,
		&cp.ID, &cp.UserID, &cp.UserPlanID, &cp.ExerciseID, &cp.ExerciseName, &cp.TotalSets, &cp.TargetReps,
		&cp.SetsCompleted, &cp.RepsCompleted, &cp.WeightUsed, &cp.IsCompleted, &cp.CompletedAt, &cp.PointsEarned, &cp.Notes,
		&cp.Position, &cp.WorkoutDate, &cp.CreatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckpointNotFound
		}
		return nil, err
	}
	return cp, nil
}

func scanMeal(row pgx.Row, extra ...any) (*MealCheckpoint, error) {
	cp := &MealCheckpoint{}
	dest := append(extra,
		&cp.ID, &cp.UserID, &cp.UserPlanID, &cp.MealItemID, &cp.FoodName, &cp.MealType, &cp.TargetQuantity,
		&cp.TargetCalories, &cp.TargetProtein, &cp.TargetCarbs, &cp.TargetFat, &cp.QuantityConsumed, &cp.CaloriesConsumed,
		&cp.IsCompleted, &cp.CompletedAt, &cp.PointsEarned, &cp.PhotoRef, &cp.Notes, &cp.Position, &cp.MealDate, &cp.CreatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckpointNotFound
		}
		return nil, err
	}
	return cp, nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (r *Repo) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()
	return fn(tx)
}

// CreateExercises seeds one incomplete checkpoint per catalog exercise. Rows already present
// for the natural key are kept as they are, so seeding a day twice is harmless.
func (r *Repo) CreateExercises(
	ctx context.Context,
	userID string, userPlanID int,
	date time.Time,
	items []catalog.Exercise,
	now time.Time,
) (_ []*ExerciseCheckpoint, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkpoints.createExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", userPlanID))
	span.SetAttributes(attribute.Int("items", len(items)))

	ids := make([]string, 0, len(items))
	var created []*ExerciseCheckpoint
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		for i, item := range items {
			ids = append(ids, item.ID)
			if _, err := tx.Exec(ctx, `
				INSERT INTO exercise_checkpoint
					(user_id, user_plan_id, exercise_id, exercise_name, total_sets, target_reps, position, workout_date, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (user_plan_id, exercise_id, workout_date) DO NOTHING
			`, userID, userPlanID, item.ID, item.Name, item.Sets, item.Reps, i, date, now); err != nil {
				return fmt.Errorf("insert exercise checkpoint %s: %w", item.ID, err)
			}
		}

		rows, err := tx.Query(ctx, `
			SELECT `+exerciseColumns+`
			FROM exercise_checkpoint
			WHERE user_plan_id = $1 AND workout_date = $2 AND exercise_id = ANY($3)
			ORDER BY position, id
		`, userPlanID, date, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			cp, err := scanExercise(rows)
			if err != nil {
				return err
			}
			created = append(created, cp)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *Repo) CreateMeals(
	ctx context.Context,
	userID string, userPlanID int,
	date time.Time,
	items []catalog.Meal,
	now time.Time,
) (_ []*MealCheckpoint, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkpoints.createMeals")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", userPlanID))
	span.SetAttributes(attribute.Int("items", len(items)))

	ids := make([]string, 0, len(items))
	var created []*MealCheckpoint
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		for i, item := range items {
			ids = append(ids, item.ID)
			if _, err := tx.Exec(ctx, `
				INSERT INTO meal_checkpoint
					(user_id, user_plan_id, meal_item_id, food_name, meal_type, target_quantity,
					 target_calories, target_protein, target_carbs, target_fat, position, meal_date, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
				ON CONFLICT (user_plan_id, meal_item_id, meal_date) DO NOTHING
			`,
				userID, userPlanID, item.ID, item.Name, item.MealType, item.Quantity,
				item.Calories, item.Protein, item.Carbs, item.Fat, i, date, now,
			); err != nil {
				return fmt.Errorf("insert meal checkpoint %s: %w", item.ID, err)
			}
		}

		rows, err := tx.Query(ctx, `
			SELECT `+mealColumns+`
			FROM meal_checkpoint
			WHERE user_plan_id = $1 AND meal_date = $2 AND meal_item_id = ANY($3)
			ORDER BY position, id
		`, userPlanID, date, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			cp, err := scanMeal(rows)
			if err != nil {
				return err
			}
			created = append(created, cp)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *Repo) GetExercise(ctx context.Context, userID string, id int) (_ *ExerciseCheckpoint, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkpoints.getExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("checkpoint.id", id))

	return scanExercise(r.db.QueryRow(ctx, `
		SELECT `+exerciseColumns+` FROM exercise_checkpoint WHERE id = $1 AND user_id = $2
	`, id, userID))
}

func (r *Repo) GetExerciseByKey(
	ctx context.Context,
	userID string, userPlanID int,
	exerciseID string,
	date time.Time,
) (_ *ExerciseCheckpoint, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkpoints.getExerciseByKey")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return scanExercise(r.db.QueryRow(ctx, `
		SELECT `+exerciseColumns+`
		FROM exercise_checkpoint
		WHERE user_plan_id = $1 AND exercise_id = $2 AND workout_date = $3 AND user_id = $4
	`, userPlanID, exerciseID, date, userID))
}

func (r *Repo) GetMeal(ctx context.Context, userID string, id int) (_ *MealCheckpoint, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkpoints.getMeal")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("checkpoint.id", id))

	return scanMeal(r.db.QueryRow(ctx, `
		SELECT `+mealColumns+` FROM meal_checkpoint WHERE id = $1 AND user_id = $2
	`, id, userID))
}

// CompleteExercise marks the checkpoint done. Points and completed_at are only set by the
// first completion; a repeated one overwrites the accrual fields and reports wasCompleted.
// The plan row is share-locked, so a completion never lands on a removed plan.
func (r *Repo) CompleteExercise(
	ctx context.Context,
	userID string, id int,
	accrual ExerciseAccrual,
	points int,
	now time.Time,
) (_ *ExerciseCheckpoint, wasCompleted bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkpoints.completeExercise")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("checkpoint.id", id))

	cp, err := scanExercise(r.db.QueryRow(ctx, `
		WITH prev AS (
			SELECT c.id AS prev_id, c.is_completed AS was_completed
			FROM exercise_checkpoint c
			JOIN user_plan p ON p.id = c.user_plan_id
			WHERE c.id = $1 AND c.user_id = $2 AND NOT p.is_completed
			FOR UPDATE OF c FOR SHARE OF p
		)
		UPDATE exercise_checkpoint
		SET sets_completed = $3,
		    reps_completed = $4,
		    weight_used = $5,
		    notes = $6,
		    is_completed = TRUE,
		    completed_at = COALESCE(completed_at, $7),
		    points_earned = CASE WHEN prev.was_completed THEN points_earned ELSE $8 END
		FROM prev
		WHERE id = prev.prev_id
		RETURNING prev.was_completed, `+exerciseColumns,
		id, userID, accrual.SetsCompleted, accrual.RepsCompleted, accrual.WeightUsed, accrual.Notes, now, points,
	), &wasCompleted)
	if errors.Is(err, ErrCheckpointNotFound) {
		return nil, false, r.missingOrFrozen(ctx, "exercise_checkpoint", userID, id)
	}
	if err != nil {
		return nil, false, err
	}

	return cp, wasCompleted, nil
}

func (r *Repo) CompleteMeal(
	ctx context.Context,
	userID string, id int,
	accrual MealAccrual,
	points int,
	now time.Time,
) (_ *MealCheckpoint, wasCompleted bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkpoints.completeMeal")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("checkpoint.id", id))

	var calories int
	if accrual.Calories != nil {
		calories = *accrual.Calories
	}

	cp, err := scanMeal(r.db.QueryRow(ctx, `
		WITH prev AS (
			SELECT c.id AS prev_id, c.is_completed AS was_completed
			FROM meal_checkpoint c
			JOIN user_plan p ON p.id = c.user_plan_id
			WHERE c.id = $1 AND c.user_id = $2 AND NOT p.is_completed
			FOR UPDATE OF c FOR SHARE OF p
		)
		UPDATE meal_checkpoint
		SET quantity_consumed = $3,
		    calories_consumed = $4,
		    photo_ref = COALESCE(NULLIF($5, ''), photo_ref),
		    notes = $6,
		    is_completed = TRUE,
		    completed_at = COALESCE(completed_at, $7),
		    points_earned = CASE WHEN prev.was_completed THEN points_earned ELSE $8 END
		FROM prev
		WHERE id = prev.prev_id
		RETURNING prev.was_completed, `+mealColumns,
		id, userID, accrual.Quantity, calories, accrual.PhotoRef, accrual.Notes, now, points,
	), &wasCompleted)
	if errors.Is(err, ErrCheckpointNotFound) {
		return nil, false, r.missingOrFrozen(ctx, "meal_checkpoint", userID, id)
	}
	if err != nil {
		return nil, false, err
	}

	return cp, wasCompleted, nil
}

// missingOrFrozen tells why a guarded completion matched no row: the checkpoint is gone or its
// plan was removed from the active list.
func (r *Repo) missingOrFrozen(ctx context.Context, table string, userID string, id int) error {
	var planCompleted bool
	err := r.db.QueryRow(ctx, `
		SELECT p.is_completed
		FROM `+table+` c
		JOIN user_plan p ON p.id = c.user_plan_id
		WHERE c.id = $1 AND c.user_id = $2
	`, id, userID).Scan(&planCompleted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrCheckpointNotFound
	case err != nil:
		return err
	case planCompleted:
		return plans.ErrPlanCompleted
	default:
		return ErrCheckpointNotFound
	}
}

// CountMealsForDate counts the user's meal checkpoints of a date across all plans.
func (r *Repo) CountMealsForDate(ctx context.Context, userID string, date time.Time) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkpoints.countMealsForDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM meal_checkpoint WHERE user_id = $1 AND meal_date = $2
	`, userID, date).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func filterClause(f Filter, dateColumn string) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{f.UserID}
	if f.UserPlanID > 0 {
		args = append(args, f.UserPlanID)
		conds = append(conds, fmt.Sprintf("user_plan_id = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		conds = append(conds, fmt.Sprintf("%s >= $%d", dateColumn, len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conds = append(conds, fmt.Sprintf("%s <= $%d", dateColumn, len(args)))
	}
	if f.OnlyCompleted {
		conds = append(conds, "is_completed = TRUE")
	}
	return strings.Join(conds, " AND "), args
}

func (r *Repo) ListExercises(ctx context.Context, f Filter) (_ []*ExerciseCheckpoint, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkpoints.listExercises")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	where, args := filterClause(f, "workout_date")
	rows, err := r.db.Query(ctx, `
		SELECT `+exerciseColumns+`
		FROM exercise_checkpoint
		WHERE `+where+`
		ORDER BY workout_date, user_plan_id, position, id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*ExerciseCheckpoint
	for rows.Next() {
		cp, err := scanExercise(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, cp)
	}
	return list, rows.Err()
}

func (r *Repo) ListMeals(ctx context.Context, f Filter) (_ []*MealCheckpoint, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.checkpoints.listMeals")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	where, args := filterClause(f, "meal_date")
	rows, err := r.db.Query(ctx, `
		SELECT `+mealColumns+`
		FROM meal_checkpoint
		WHERE `+where+`
		ORDER BY meal_date, user_plan_id, position, id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*MealCheckpoint
	for rows.Next() {
		cp, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, cp)
	}
	return list, rows.Err()
}
