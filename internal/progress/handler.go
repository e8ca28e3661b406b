package progress

import (
	"context"
	"errors"
	"net/http"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/plans"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"
	"github.com/2beens/fitstreak/pkg"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=progress_test

type service interface {
	PlanProgress(ctx context.Context, userID string, planID int) (*PlanProgress, error)
	TodayStats(ctx context.Context, userID string) (*TodayStats, error)
	Week(ctx context.Context, userID string) (*WeekStats, error)
	Summary(ctx context.Context, userID string) (*Summary, error)
}

type Handler struct {
	service service
}

func NewHandler(service service) *Handler {
	return &Handler{
		service: service,
	}
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrNoUser):
		return http.StatusUnauthorized
	case errors.Is(err, plans.ErrPlanNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) HandlePlanProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.plan")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	planID, err := plans.PlanID(r)
	if err != nil {
		http.Error(w, "error, invalid plan id", http.StatusBadRequest)
		return
	}

	progress, err := h.service.PlanProgress(ctx, userID, planID)
	if err != nil {
		log.Errorf("plan %d progress: %s", planID, err)
		http.Error(w, "error, failed to get plan progress", errStatus(err))
		return
	}

	pkg.WriteJSON(w, progress, http.StatusOK)
}

func (h *Handler) HandleToday(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.today")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	stats, err := h.service.TodayStats(ctx, userID)
	if err != nil {
		log.Errorf("today stats for %s: %s", userID, err)
		http.Error(w, "error, failed to get today stats", errStatus(err))
		return
	}

	pkg.WriteJSON(w, stats, http.StatusOK)
}

func (h *Handler) HandleWeek(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.week")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	stats, err := h.service.Week(ctx, userID)
	if err != nil {
		log.Errorf("week stats for %s: %s", userID, err)
		http.Error(w, "error, failed to get week stats", errStatus(err))
		return
	}

	pkg.WriteJSON(w, stats, http.StatusOK)
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.progress.summary")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	summary, err := h.service.Summary(ctx, userID)
	if err != nil {
		log.Errorf("summary for %s: %s", userID, err)
		http.Error(w, "error, failed to get summary", errStatus(err))
		return
	}

	pkg.WriteJSON(w, summary, http.StatusOK)
}
