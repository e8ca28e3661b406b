package plans

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"
	"github.com/2beens/fitstreak/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=plans_test

type service interface {
	Start(ctx context.Context, userID string, params StartParams) (*UserPlan, error)
	Get(ctx context.Context, userID string, id int) (*UserPlan, error)
	List(ctx context.Context, userID string, onlyActive bool) ([]*UserPlan, error)
	RemoveFromActive(ctx context.Context, userID string, id int) (*UserPlan, error)
	DeleteAllData(ctx context.Context, userID string, id int) (*DeleteResult, error)
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
	case errors.Is(err, ErrPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidPlan):
		return http.StatusBadRequest
	case errors.Is(err, ErrPlanCompleted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PlanID reads the {id} path var shared by all plan scoped routes.
func PlanID(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["id"])
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.start")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var params StartParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Tracef("start plan, unmarshal json params: %s", err)
		http.Error(w, "start plan failed", http.StatusBadRequest)
		return
	}

	plan, err := h.service.Start(ctx, userID, params)
	if err != nil {
		log.Errorf("start plan [catalog %d] for %s: %s", params.CatalogPlanID, userID, err)
		http.Error(w, "error, failed to start plan", errStatus(err))
		return
	}

	pkg.WriteJSON(w, plan, http.StatusCreated)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.list")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	onlyActive := false
	if activeStr := r.URL.Query().Get("active"); activeStr != "" {
		onlyActive, err = strconv.ParseBool(activeStr)
		if err != nil {
			http.Error(w, "error, invalid active param", http.StatusBadRequest)
			return
		}
	}

	userPlans, err := h.service.List(ctx, userID, onlyActive)
	if err != nil {
		log.Errorf("list plans for %s: %s", userID, err)
		http.Error(w, "error, failed to list plans", errStatus(err))
		return
	}
	if userPlans == nil {
		userPlans = []*UserPlan{}
	}

	pkg.WriteJSON(w, userPlans, http.StatusOK)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.get")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := PlanID(r)
	if err != nil {
		http.Error(w, "error, invalid plan id", http.StatusBadRequest)
		return
	}

	plan, err := h.service.Get(ctx, userID, id)
	if err != nil {
		log.Errorf("get plan %d: %s", id, err)
		http.Error(w, "error, failed to get plan", errStatus(err))
		return
	}

	pkg.WriteJSON(w, plan, http.StatusOK)
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.remove")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := PlanID(r)
	if err != nil {
		http.Error(w, "error, invalid plan id", http.StatusBadRequest)
		return
	}

	plan, err := h.service.RemoveFromActive(ctx, userID, id)
	if err != nil {
		log.Errorf("remove plan %d from active: %s", id, err)
		http.Error(w, "error, failed to remove plan", errStatus(err))
		return
	}

	pkg.WriteJSON(w, plan, http.StatusOK)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.delete")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := PlanID(r)
	if err != nil {
		http.Error(w, "error, invalid plan id", http.StatusBadRequest)
		return
	}

	result, err := h.service.DeleteAllData(ctx, userID, id)
	if err != nil {
		log.Errorf("delete plan %d: %s", id, err)
		http.Error(w, "error, failed to delete plan", errStatus(err))
		return
	}

	pkg.WriteJSON(w, result, http.StatusOK)
}
