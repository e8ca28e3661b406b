package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"
	"github.com/2beens/fitstreak/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=nutrition_test

type service interface {
	Today() time.Time
	GetOrCreate(ctx context.Context, userID string, date time.Time) (*Goal, error)
	RecordMealConsumption(ctx context.Context, userID string, goalID int, c Consumption) (*Goal, error)
	UpdateWater(ctx context.Context, userID string, goalID int, litres float64) (*Goal, error)
	SetTargets(ctx context.Context, userID string, goalID int, targets Targets) (*Goal, error)
}

type GoalResponse struct {
	Goal     *Goal    `json:"goal"`
	Progress Progress `json:"progress"`
}

type WaterRequest struct {
	Litres *float64 `json:"litres"`
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
	case errors.Is(err, ErrGoalNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// goalForRequest resolves the {date} path var ("today" or YYYY-MM-DD) to the user's goal.
func (h *Handler) goalForRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, *Goal, bool) {
	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return "", nil, false
	}

	dateStr := strings.ToLower(mux.Vars(r)["date"])
	var date time.Time
	if dateStr == "" || dateStr == "today" {
		date = h.service.Today()
	} else {
		date, err = pkg.ParseDate(dateStr)
		if err != nil {
			http.Error(w, "error, invalid date", http.StatusBadRequest)
			return "", nil, false
		}
	}

	goal, err := h.service.GetOrCreate(ctx, userID, date)
	if err != nil {
		log.Errorf("get nutrition goal [%s] for %s: %s", dateStr, userID, err)
		http.Error(w, "error, failed to get nutrition goal", errStatus(err))
		return "", nil, false
	}

	return userID, goal, true
}

func writeGoal(w http.ResponseWriter, goal *Goal) {
	pkg.WriteJSON(w, GoalResponse{
		Goal:     goal,
		Progress: ProgressOf(*goal),
	}, http.StatusOK)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.get")
	defer span.End()

	_, goal, ok := h.goalForRequest(ctx, w, r)
	if !ok {
		return
	}
	writeGoal(w, goal)
}

func (h *Handler) HandleRecordMeal(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.recordMeal")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var c Consumption
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		log.Tracef("record meal, unmarshal json params: %s", err)
		http.Error(w, "record meal failed", http.StatusBadRequest)
		return
	}
	// manual entries never belong to a plan
	c.UserPlanID = nil
	c.SourceKey = ManualSourceKey(c.SourceKey)
	if err := c.Validate(); err != nil {
		http.Error(w, "error, amounts must not be negative", http.StatusBadRequest)
		return
	}

	userID, goal, ok := h.goalForRequest(ctx, w, r)
	if !ok {
		return
	}

	updated, err := h.service.RecordMealConsumption(ctx, userID, goal.ID, c)
	if err != nil {
		log.Errorf("record meal consumption for goal %d: %s", goal.ID, err)
		http.Error(w, "error, failed to record meal", errStatus(err))
		return
	}

	writeGoal(w, updated)
}

func (h *Handler) HandleUpdateWater(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.updateWater")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req WaterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("update water, unmarshal json params: %s", err)
		http.Error(w, "update water failed", http.StatusBadRequest)
		return
	}
	if req.Litres == nil || *req.Litres < 0 {
		http.Error(w, "error, litres missing or negative", http.StatusBadRequest)
		return
	}

	userID, goal, ok := h.goalForRequest(ctx, w, r)
	if !ok {
		return
	}

	updated, err := h.service.UpdateWater(ctx, userID, goal.ID, *req.Litres)
	if err != nil {
		log.Errorf("update water for goal %d: %s", goal.ID, err)
		http.Error(w, "error, failed to update water", errStatus(err))
		return
	}

	writeGoal(w, updated)
}

func (h *Handler) HandleSetTargets(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.nutrition.setTargets")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var targets Targets
	if err := json.NewDecoder(r.Body).Decode(&targets); err != nil {
		log.Tracef("set targets, unmarshal json params: %s", err)
		http.Error(w, "set targets failed", http.StatusBadRequest)
		return
	}
	if err := targets.Validate(); err != nil {
		http.Error(w, "error, targets must not be negative", http.StatusBadRequest)
		return
	}

	userID, goal, ok := h.goalForRequest(ctx, w, r)
	if !ok {
		return
	}

	updated, err := h.service.SetTargets(ctx, userID, goal.ID, targets)
	if err != nil {
		log.Errorf("set targets for goal %d: %s", goal.ID, err)
		http.Error(w, "error, failed to set targets", errStatus(err))
		return
	}

	writeGoal(w, updated)
}
