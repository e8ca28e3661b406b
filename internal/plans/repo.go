package plans

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

const planColumns = `id, user_id, catalog_plan_id, kind, title, start_date, target_days,
	is_completed, completed_at, created_at, updated_at`

// NutritionRetractor removes a plan's contributions to the shared daily nutrition goals.
type NutritionRetractor interface {
	RetractPlan(ctx context.Context, tx pgx.Tx, userID string, userPlanID int, mealDates []time.Time) (int, error)
}

type Repo struct {
	db        *pgxpool.Pool
	retractor NutritionRetractor
}

func NewRepo(db *pgxpool.Pool, retractor NutritionRetractor) *Repo {
	return &Repo{
		db:        db,
		retractor: retractor,
	}
}

func scanPlan(row pgx.Row) (*UserPlan, error) {
	p := &UserPlan{}
	if err := row.Scan(
		&p.ID, &p.UserID, &p.CatalogPlanID, &p.Kind, &p.Title, &p.StartDate, &p.TargetDays,
		&p.IsCompleted, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *Repo) Add(ctx context.Context, plan UserPlan) (_ *UserPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	added, err := scanPlan(r.db.QueryRow(ctx, `
		INSERT INTO user_plan
			(user_id, catalog_plan_id, kind, title, start_date, target_days, is_completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $7)
		RETURNING `+planColumns,
		plan.UserID, plan.CatalogPlanID, plan.Kind, plan.Title, plan.StartDate, plan.TargetDays, plan.CreatedAt,
	))
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("userplan.id", added.ID))
	return added, nil
}

func (r *Repo) Get(ctx context.Context, userID string, id int) (_ *UserPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", id))

	return scanPlan(r.db.QueryRow(ctx, `
		SELECT `+planColumns+`
		FROM user_plan
		WHERE id = $1 AND user_id = $2
	`, id, userID))
}

func (r *Repo) List(ctx context.Context, userID string, onlyActive bool) (_ []*UserPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Bool("only-active", onlyActive))

	rows, err := r.db.Query(ctx, `
		SELECT `+planColumns+`
		FROM user_plan
		WHERE user_id = $1 AND ($2::boolean IS FALSE OR is_completed = FALSE)
		ORDER BY created_at DESC, id DESC
	`, userID, onlyActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	userPlans := make([]*UserPlan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		userPlans = append(userPlans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return userPlans, nil
}

// MarkCompleted moves the plan out of the active list. completed_at is kept from the first call.
func (r *Repo) MarkCompleted(ctx context.Context, userID string, id int, at time.Time) (_ *UserPlan, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.markCompleted")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", id))

	return scanPlan(r.db.QueryRow(ctx, `
		UPDATE user_plan
		SET is_completed = TRUE,
		    completed_at = COALESCE(completed_at, $3),
		    updated_at = CASE WHEN is_completed THEN updated_at ELSE $3 END
		WHERE id = $1 AND user_id = $2
		RETURNING `+planColumns,
		id, userID, at,
	))
}

// DeleteAllData removes the plan with its checkpoints, sessions and nutrition
// contributions in one transaction.
func (r *Repo) DeleteAllData(ctx context.Context, userID string, id int) (_ *DeleteResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.plans.deleteAllData")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", id))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
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
		SELECT id FROM user_plan WHERE id = $1 AND user_id = $2 FOR UPDATE
	`, id, userID).Scan(&lockedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	result := &DeleteResult{PlanID: id}

	tag, err := tx.Exec(ctx, `DELETE FROM exercise_checkpoint WHERE user_plan_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete exercise checkpoints: %w", err)
	}
	result.ExerciseCheckpoints = tag.RowsAffected()

	rows, err := tx.Query(ctx, `
		WITH removed AS (
			DELETE FROM meal_checkpoint WHERE user_plan_id = $1 RETURNING meal_date
		)
		SELECT meal_date, COUNT(*) FROM removed GROUP BY meal_date
	`, id)
	if err != nil {
		return nil, fmt.Errorf("delete meal checkpoints: %w", err)
	}
	var mealDates []time.Time
	for rows.Next() {
		var (
			date  time.Time
			count int64
		)
		if err := rows.Scan(&date, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan removed meal date: %w", err)
		}
		mealDates = append(mealDates, date)
		result.MealCheckpoints += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete meal checkpoints: %w", err)
	}

	tag, err = tx.Exec(ctx, `DELETE FROM workout_session WHERE user_plan_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("delete sessions: %w", err)
	}
	result.Sessions = tag.RowsAffected()

	if r.retractor != nil {
		result.NutritionEntries, err = r.retractor.RetractPlan(ctx, tx, userID, id, mealDates)
		if err != nil {
			return nil, fmt.Errorf("retract nutrition: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM user_plan WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete plan: %w", err)
	}

	return result, nil
}
