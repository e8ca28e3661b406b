package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/2beens/fitstreak/internal/plans"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const sessionColumns = `id, user_id, user_plan_id, catalog_plan_id, label, total_exercises, completed_exercises,
	total_duration_minutes, calories_burned, started_at, completed_at, is_completed, points_earned, bonus_points,
	workout_date, created_at`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func scanSession(row pgx.Row, extra ...any) (*Session, error) {
	s := &Session{}
	dest := append(extra,
		&s.ID, &s.UserID, &s.UserPlanID, &s.CatalogPlanID, &s.Label, &s.TotalExercises, &s.CompletedExercises,
		&s.TotalDurationMinutes, &s.CaloriesBurned, &s.StartedAt, &s.CompletedAt, &s.IsCompleted, &s.PointsEarned, &s.BonusPoints,
		&s.WorkoutDate, &s.CreatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

// Create inserts the session of (plan, date) or returns the existing one. The target count
// only grows when the catalog day got more exercises since the first initialization.
func (r *Repo) Create(ctx context.Context, session Session) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("userplan.id", session.UserPlanID))

	return scanSession(r.db.QueryRow(ctx, `
		INSERT INTO workout_session
			(user_id, user_plan_id, catalog_plan_id, label, total_exercises, workout_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_plan_id, workout_date) DO UPDATE
			SET total_exercises = GREATEST(workout_session.total_exercises, EXCLUDED.total_exercises)
		RETURNING `+sessionColumns,
		session.UserID, session.UserPlanID, session.CatalogPlanID, session.Label,
		session.TotalExercises, session.WorkoutDate, session.CreatedAt,
	))
}

func (r *Repo) Get(ctx context.Context, userID string, id int) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("session.id", id))

	return scanSession(r.db.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM workout_session WHERE id = $1 AND user_id = $2
	`, id, userID))
}

// Start sets started_at once, later calls keep the first value.
func (r *Repo) Start(ctx context.Context, userID string, id int, now time.Time) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.start")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("session.id", id))

	return scanSession(r.db.QueryRow(ctx, `
		UPDATE workout_session
		SET started_at = COALESCE(started_at, $3::timestamptz)
		WHERE id = $1 AND user_id = $2
		RETURNING `+sessionColumns,
		id, userID, now,
	))
}

// Recount derives the completed exercise count and points from the session's checkpoint rows
// in a single statement. It also starts the session if it was not started yet.
func (r *Repo) Recount(ctx context.Context, userID string, id int, now time.Time) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.recount")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("session.id", id))

	return scanSession(r.db.QueryRow(ctx, `
		UPDATE workout_session s
		SET completed_exercises = LEAST(s.total_exercises, (
		        SELECT COUNT(*)
		        FROM exercise_checkpoint c
		        WHERE c.user_plan_id = s.user_plan_id AND c.workout_date = s.workout_date AND c.is_completed
		    )),
		    points_earned = s.bonus_points + (
		        SELECT COALESCE(SUM(c.points_earned), 0)
		        FROM exercise_checkpoint c
		        WHERE c.user_plan_id = s.user_plan_id AND c.workout_date = s.workout_date
		    ),
		    started_at = COALESCE(s.started_at, $3::timestamptz)
		WHERE s.id = $1 AND s.user_id = $2
		RETURNING `+sessionColumns,
		id, userID, now,
	))
}

// Finish completes the session. Bonus, duration and calories are only set by the first call;
// wasCompleted reports a repeated one. A session of a removed plan is never finished.
func (r *Repo) Finish(
	ctx context.Context,
	userID string, id int,
	caloriesBurned int,
	bonus int,
	now time.Time,
) (_ *Session, wasCompleted bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.sessions.finish")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("session.id", id))

	session, err := scanSession(r.db.QueryRow(ctx, `
		WITH prev AS (
			SELECT s.id AS prev_id, s.is_completed AS was_completed
			FROM workout_session s
			JOIN user_plan p ON p.id = s.user_plan_id
			WHERE s.id = $1 AND s.user_id = $2 AND NOT p.is_completed
			FOR UPDATE OF s FOR SHARE OF p
		)
		UPDATE workout_session
		SET is_completed = TRUE,
		    started_at = COALESCE(started_at, $3::timestamptz),
		    completed_at = COALESCE(completed_at, $3::timestamptz),
		    total_duration_minutes = CASE
		        WHEN prev.was_completed THEN total_duration_minutes
		        ELSE GREATEST(0, FLOOR(EXTRACT(EPOCH FROM ($3::timestamptz - COALESCE(started_at, $3::timestamptz))) / 60))::INTEGER
		    END,
		    calories_burned = CASE WHEN prev.was_completed THEN calories_burned ELSE $4 END,
		    bonus_points = CASE WHEN prev.was_completed THEN bonus_points ELSE $5 END,
		    points_earned = CASE WHEN prev.was_completed THEN points_earned ELSE points_earned + $5 END
		FROM prev
		WHERE id = prev.prev_id
		RETURNING prev.was_completed, `+sessionColumns,
		id, userID, now, caloriesBurned, bonus,
	), &wasCompleted)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, false, r.missingOrFrozen(ctx, userID, id)
	}
	if err != nil {
		return nil, false, err
	}

	return session, wasCompleted, nil
}

func (r *Repo) missingOrFrozen(ctx context.Context, userID string, id int) error {
	var planCompleted bool
	err := r.db.QueryRow(ctx, `
		SELECT p.is_completed
		FROM workout_session s
		JOIN user_plan p ON p.id = s.user_plan_id
		WHERE s.id = $1 AND s.user_id = $2
	`, id, userID).Scan(&planCompleted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrSessionNotFound
	case err != nil:
		return err
	case planCompleted:
		return plans.ErrPlanCompleted
	default:
		return ErrSessionNotFound
	}
}
