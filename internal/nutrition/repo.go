package nutrition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitstreak/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const goalColumns = `id, user_id, goal_date, target_calories, consumed_calories,
	target_protein, target_carbs, target_fat, consumed_protein, consumed_carbs, consumed_fat,
	water_target, water_consumed, meals_completed, total_meals, points_earned, is_completed,
	created_at, updated_at`

type Repo struct {
	db *pgxpool.Pool
	// defaults decide the meal count floor and which goals are still untouched on plan retraction
	defaults Defaults
}

func NewRepo(db *pgxpool.Pool, defaults Defaults) *Repo {
	return &Repo{
		db:       db,
		defaults: defaults,
	}
}

func scanGoal(row pgx.Row) (*Goal, error) {
	g := &Goal{}
	if err := row.Scan(
		&g.ID, &g.UserID, &g.Date, &g.TargetCalories, &g.ConsumedCalories,
		&g.TargetProtein, &g.TargetCarbs, &g.TargetFat, &g.ConsumedProtein, &g.ConsumedCarbs, &g.ConsumedFat,
		&g.WaterTarget, &g.WaterConsumed, &g.MealsCompleted, &g.TotalMeals, &g.PointsEarned, &g.IsCompleted,
		&g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return g, nil
}

func (r *Repo) GetOrCreate(ctx context.Context, userID string, date time.Time, defaults Defaults, now time.Time) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.getOrCreate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := r.db.Exec(ctx, `
		INSERT INTO daily_nutrition_goal
			(user_id, goal_date, target_calories, water_target, total_meals, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id, goal_date) DO NOTHING;
	`, userID, date, defaults.Calories, defaults.Water, defaults.TotalMeals, now); err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}

	return scanGoal(r.db.QueryRow(ctx, `
		SELECT `+goalColumns+`
		FROM daily_nutrition_goal
		WHERE user_id = $1 AND goal_date = $2
	`, userID, date))
}

func (r *Repo) Get(ctx context.Context, userID string, id int) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("goal.id", id))

	return scanGoal(r.db.QueryRow(ctx, `
		SELECT `+goalColumns+`
		FROM daily_nutrition_goal
		WHERE id = $1 AND user_id = $2
	`, id, userID))
}

// FindByDate reads the goal of a date without creating it.
func (r *Repo) FindByDate(ctx context.Context, userID string, date time.Time) (_ *Goal, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.findByDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return scanGoal(r.db.QueryRow(ctx, `
		SELECT `+goalColumns+`
		FROM daily_nutrition_goal
		WHERE user_id = $1 AND goal_date = $2
	`, userID, date))
}

// inTx locks the goal row, runs fn and evaluates completion, all in one transaction.
func (r *Repo) inTx(
	ctx context.Context,
	userID string, goalID int,
	completionBonus int,
	fn func(tx pgx.Tx) error,
) (_ *Goal, completedNow bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
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

	var lockedID int
	if err := tx.QueryRow(ctx, `
		SELECT id FROM daily_nutrition_goal WHERE id = $1 AND user_id = $2 FOR UPDATE
	`, goalID, userID).Scan(&lockedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrGoalNotFound
		}
		return nil, false, err
	}

	if err := fn(tx); err != nil {
		return nil, false, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE daily_nutrition_goal
		SET is_completed = TRUE, points_earned = points_earned + $2
		WHERE id = $1
		  AND is_completed = FALSE
		  AND consumed_calories >= target_calories
		  AND water_consumed >= water_target
		  AND meals_completed >= total_meals
	`, goalID, completionBonus)
	if err != nil {
		return nil, false, fmt.Errorf("evaluate completion: %w", err)
	}

	goal, err := scanGoal(tx.QueryRow(ctx, `
		SELECT `+goalColumns+` FROM daily_nutrition_goal WHERE id = $1
	`, goalID))
	if err != nil {
		return nil, false, err
	}

	return goal, tag.RowsAffected() == 1, nil
}

// AddConsumption adds c to the goal totals. With a source key the meal is counted at most
// once: a repeat replaces the recorded amounts, moves the totals by the difference and
// leaves meals_completed alone. applied is true only when the source was counted now.
func (r *Repo) AddConsumption(
	ctx context.Context,
	userID string, goalID int,
	c Consumption,
	completionBonus int,
	now time.Time,
) (_ *Goal, applied bool, completedNow bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.addConsumption")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("goal.id", goalID))
	span.SetAttributes(attribute.String("source", c.SourceKey))

	goal, completedNow, err := r.inTx(ctx, userID, goalID, completionBonus, func(tx pgx.Tx) error {
		delta := c
		mealsDelta := 1

		if c.SourceKey != "" {
			var prev Consumption
			err := tx.QueryRow(ctx, `
				SELECT calories, protein, carbs, fat FROM nutrition_entry
				WHERE goal_id = $1 AND source_key = $2
			`, goalID, c.SourceKey).Scan(&prev.Calories, &prev.Protein, &prev.Carbs, &prev.Fat)
			switch {
			case err == nil:
				delta = c.minus(prev)
				mealsDelta = 0
			case !errors.Is(err, pgx.ErrNoRows):
				return fmt.Errorf("read entry: %w", err)
			}
		}

		if mealsDelta == 0 {
			if delta.isZero() {
				return nil
			}
			if _, err := tx.Exec(ctx, `
				UPDATE nutrition_entry
				SET calories = $3, protein = $4, carbs = $5, fat = $6
				WHERE goal_id = $1 AND source_key = $2
			`, goalID, c.SourceKey, c.Calories, c.Protein, c.Carbs, c.Fat); err != nil {
				return fmt.Errorf("update entry: %w", err)
			}
		} else {
			var sourceKey *string
			if c.SourceKey != "" {
				sourceKey = &c.SourceKey
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO nutrition_entry
					(goal_id, user_plan_id, source_key, calories, protein, carbs, fat, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, goalID, c.UserPlanID, sourceKey, c.Calories, c.Protein, c.Carbs, c.Fat, now); err != nil {
				return fmt.Errorf("insert entry: %w", err)
			}
			applied = true
		}

		if _, err := tx.Exec(ctx, `
			UPDATE daily_nutrition_goal
			SET consumed_calories = consumed_calories + $2,
			    consumed_protein = consumed_protein + $3,
			    consumed_carbs = consumed_carbs + $4,
			    consumed_fat = consumed_fat + $5,
			    meals_completed = meals_completed + $6,
			    updated_at = $7
			WHERE id = $1
		`, goalID, delta.Calories, delta.Protein, delta.Carbs, delta.Fat, mealsDelta, now); err != nil {
			return fmt.Errorf("update totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, false, err
	}

	return goal, applied, completedNow, nil
}

// SetWater replaces the consumed water amount.
func (r *Repo) SetWater(
	ctx context.Context,
	userID string, goalID int,
	litres float64,
	completionBonus int,
	now time.Time,
) (_ *Goal, completedNow bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.setWater")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("goal.id", goalID))

	return r.inTx(ctx, userID, goalID, completionBonus, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE daily_nutrition_goal SET water_consumed = $2, updated_at = $3 WHERE id = $1
		`, goalID, litres, now)
		return err
	})
}

func (r *Repo) SetTargets(
	ctx context.Context,
	userID string, goalID int,
	targets Targets,
	completionBonus int,
	now time.Time,
) (_ *Goal, completedNow bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.setTargets")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("goal.id", goalID))

	return r.inTx(ctx, userID, goalID, completionBonus, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE daily_nutrition_goal
			SET target_calories = COALESCE($2, target_calories),
			    target_protein = COALESCE($3, target_protein),
			    target_carbs = COALESCE($4, target_carbs),
			    target_fat = COALESCE($5, target_fat),
			    water_target = COALESCE($6, water_target),
			    total_meals = COALESCE($7, total_meals),
			    updated_at = $8
			WHERE id = $1
		`, goalID, targets.Calories, targets.Protein, targets.Carbs, targets.Fat, targets.Water, targets.TotalMeals, now)
		return err
	})
}

// EnsureTotalMeals raises total_meals to at least n, it never lowers it.
func (r *Repo) EnsureTotalMeals(ctx context.Context, userID string, goalID int, n int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.ensureTotalMeals")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tag, err := r.db.Exec(ctx, `
		UPDATE daily_nutrition_goal SET total_meals = GREATEST(total_meals, $3)
		WHERE id = $1 AND user_id = $2
	`, goalID, userID, n)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGoalNotFound
	}
	return nil
}

type retractedEntry struct {
	calories int
	protein  float64
	carbs    float64
	fat      float64
	meals    int
}

// RetractPlan removes the nutrition entries contributed by a user plan and subtracts them
// from the goals they fed. mealDates are the dates of the plan's meal checkpoints, which the
// caller has already deleted in tx. Every touched goal gets total_meals recounted from the
// remaining meal checkpoints. A goal is deleted only when nothing references it anymore and
// its targets are still the defaults. Returns the number of removed entries.
func (r *Repo) RetractPlan(
	ctx context.Context,
	tx pgx.Tx,
	userID string, userPlanID int,
	mealDates []time.Time,
) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.nutrition.retractPlan")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", userPlanID))

	rows, err := tx.Query(ctx, `
		DELETE FROM nutrition_entry WHERE user_plan_id = $1
		RETURNING goal_id, calories, protein, carbs, fat
	`, userPlanID)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}

	removed := 0
	perGoal := make(map[int]*retractedEntry)
	var goalIDs []int
	for rows.Next() {
		var (
			goalID int
			e      retractedEntry
		)
		if err := rows.Scan(&goalID, &e.calories, &e.protein, &e.carbs, &e.fat); err != nil {
			rows.Close()
			return 0, err
		}
		removed++
		sum, ok := perGoal[goalID]
		if !ok {
			sum = &retractedEntry{}
			perGoal[goalID] = sum
			goalIDs = append(goalIDs, goalID)
		}
		sum.calories += e.calories
		sum.protein += e.protein
		sum.carbs += e.carbs
		sum.fat += e.fat
		sum.meals++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, goalID := range goalIDs {
		sum := perGoal[goalID]
		if _, err := tx.Exec(ctx, `
			UPDATE daily_nutrition_goal
			SET consumed_calories = consumed_calories - $2,
			    consumed_protein = consumed_protein - $3,
			    consumed_carbs = consumed_carbs - $4,
			    consumed_fat = consumed_fat - $5,
			    meals_completed = GREATEST(meals_completed - $6, 0)
			WHERE id = $1
		`, goalID, sum.calories, sum.protein, sum.carbs, sum.fat, sum.meals); err != nil {
			return 0, fmt.Errorf("subtract from goal %d: %w", goalID, err)
		}
	}

	if len(goalIDs) == 0 && len(mealDates) == 0 {
		return removed, nil
	}
	if goalIDs == nil {
		goalIDs = []int{}
	}
	if mealDates == nil {
		mealDates = []time.Time{}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE daily_nutrition_goal g
		SET total_meals = GREATEST($4, (
			SELECT COUNT(*) FROM meal_checkpoint m
			WHERE m.user_id = g.user_id AND m.meal_date = g.goal_date
		))
		WHERE g.user_id = $1 AND (g.id = ANY($2) OR g.goal_date = ANY($3::date[]))
	`, userID, goalIDs, mealDates, r.defaults.TotalMeals); err != nil {
		return 0, fmt.Errorf("recount total meals: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM daily_nutrition_goal g
		WHERE g.user_id = $1 AND (g.id = ANY($2) OR g.goal_date = ANY($3::date[]))
		  AND g.water_consumed = 0
		  AND g.target_calories = $4
		  AND g.water_target = $5
		  AND g.target_protein IS NULL AND g.target_carbs IS NULL AND g.target_fat IS NULL
		  AND NOT EXISTS (SELECT 1 FROM nutrition_entry e WHERE e.goal_id = g.id)
		  AND NOT EXISTS (
			SELECT 1 FROM meal_checkpoint m
			WHERE m.user_id = g.user_id AND m.meal_date = g.goal_date
		  )
	`, userID, goalIDs, mealDates, r.defaults.Calories, r.defaults.Water); err != nil {
		return 0, fmt.Errorf("delete emptied goals: %w", err)
	}

	return removed, nil
}
