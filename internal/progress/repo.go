package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/2beens/fitstreak/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

// Repo only reads, all derived values are computed from the stored checkpoint history.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// periodArgs maps open period ends to the widest dates postgres accepts.
func periodArgs(p Period) (time.Time, time.Time) {
	from := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	if p.From != nil {
		from = *p.From
	}
	if p.To != nil {
		to = *p.To
	}
	return from, to
}

// ActivityDates lists the distinct days with a completed checkpoint or a finished session.
func (r *Repo) ActivityDates(ctx context.Context, userID string) (_ []time.Time, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progress.activityDates")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT workout_date FROM exercise_checkpoint WHERE user_id = $1 AND is_completed
		UNION
		SELECT meal_date FROM meal_checkpoint WHERE user_id = $1 AND is_completed
		UNION
		SELECT workout_date FROM workout_session WHERE user_id = $1 AND is_completed
		ORDER BY 1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// PlanActiveDays counts the distinct days the plan has at least one completed checkpoint.
func (r *Repo) PlanActiveDays(ctx context.Context, userID string, userPlanID int) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progress.planActiveDays")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", userPlanID))

	var days int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT workout_date FROM exercise_checkpoint
			WHERE user_id = $1 AND user_plan_id = $2 AND is_completed
			UNION
			SELECT meal_date FROM meal_checkpoint
			WHERE user_id = $1 AND user_plan_id = $2 AND is_completed
		) active_days
	`, userID, userPlanID).Scan(&days); err != nil {
		return 0, err
	}
	return days, nil
}

func (r *Repo) Points(ctx context.Context, userID string, period Period) (_ Points, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progress.points")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	from, to := periodArgs(period)
	var p Points
	if err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COALESCE(SUM(points_earned), 0) FROM exercise_checkpoint
			 WHERE user_id = $1 AND workout_date BETWEEN $2 AND $3),
			(SELECT COALESCE(SUM(points_earned), 0) FROM meal_checkpoint
			 WHERE user_id = $1 AND meal_date BETWEEN $2 AND $3),
			(SELECT COALESCE(SUM(bonus_points), 0) FROM workout_session
			 WHERE user_id = $1 AND workout_date BETWEEN $2 AND $3),
			(SELECT COALESCE(SUM(points_earned), 0) FROM daily_nutrition_goal
			 WHERE user_id = $1 AND goal_date BETWEEN $2 AND $3)
	`, userID, from, to).Scan(&p.Exercises, &p.Meals, &p.SessionBonus, &p.Nutrition); err != nil {
		return Points{}, fmt.Errorf("sum points: %w", err)
	}
	return p, nil
}

func (r *Repo) Counts(ctx context.Context, userID string, period Period) (_ Counts, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.progress.counts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	from, to := periodArgs(period)
	var c Counts
	if err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FILTER (WHERE is_completed) FROM exercise_checkpoint
			 WHERE user_id = $1 AND workout_date BETWEEN $2 AND $3),
			(SELECT COUNT(*) FROM exercise_checkpoint
			 WHERE user_id = $1 AND workout_date BETWEEN $2 AND $3),
			(SELECT COUNT(*) FILTER (WHERE is_completed) FROM meal_checkpoint
			 WHERE user_id = $1 AND meal_date BETWEEN $2 AND $3),
			(SELECT COUNT(*) FROM meal_checkpoint
			 WHERE user_id = $1 AND meal_date BETWEEN $2 AND $3),
			(SELECT COUNT(*) FILTER (WHERE is_completed) FROM workout_session
			 WHERE user_id = $1 AND workout_date BETWEEN $2 AND $3),
			(SELECT COUNT(*) FROM workout_session
			 WHERE user_id = $1 AND workout_date BETWEEN $2 AND $3)
	`, userID, from, to).Scan(
		&c.ExercisesCompleted, &c.ExercisesTotal,
		&c.MealsCompleted, &c.MealsTotal,
		&c.SessionsCompleted, &c.SessionsTotal,
	); err != nil {
		return Counts{}, fmt.Errorf("count checkpoints: %w", err)
	}
	return c, nil
}
