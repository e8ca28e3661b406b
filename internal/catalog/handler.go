package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"
	"github.com/2beens/fitstreak/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const AdminSecretHeader = "X-ADMIN-SECRET"

type loader interface {
	Load(ctx context.Context) (*Catalog, error)
}

type PlanSummary struct {
	ID           int      `json:"id"`
	Kind         PlanKind `json:"kind"`
	Title        string   `json:"title"`
	DurationDays int      `json:"durationDays"`
	Schedule     Schedule `json:"schedule"`
	Days         int      `json:"days"`
}

type ReloadResponse struct {
	Plans int `json:"plans"`
}

type Handler struct {
	provider *Provider
	source   loader
	admin    auth.Admin
}

func NewHandler(provider *Provider, source loader, admin auth.Admin) *Handler {
	return &Handler{
		provider: provider,
		source:   source,
		admin:    admin,
	}
}

func (h *Handler) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.listPlans")
	defer span.End()

	plans := h.provider.Plans()
	summaries := make([]PlanSummary, 0, len(plans))
	for _, p := range plans {
		summaries = append(summaries, PlanSummary{
			ID:           p.ID,
			Kind:         p.Kind,
			Title:        p.Title,
			DurationDays: p.DurationDays,
			Schedule:     p.Schedule,
			Days:         len(p.Days),
		})
	}

	pkg.WriteJSON(w, summaries, http.StatusOK)
}

func (h *Handler) HandleGetDay(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.getDay")
	defer span.End()

	vars := mux.Vars(r)
	planID, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "error, invalid plan id", http.StatusBadRequest)
		return
	}
	ref, err := ParseDayRef(vars["day"])
	if err != nil {
		http.Error(w, "error, invalid day", http.StatusBadRequest)
		return
	}

	day, err := h.provider.ItemsForDay(planID, ref)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) || errors.Is(err, ErrDayNotFound) {
			http.Error(w, "error, not found", http.StatusNotFound)
			return
		}
		log.Errorf("catalog plan %d day %s: %s", planID, ref, err)
		http.Error(w, "error, failed to get catalog day", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSON(w, day, http.StatusOK)
}

// HandleReload swaps in a freshly loaded catalog. The old one stays in place if loading fails.
func (h *Handler) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.catalog.reload")
	defer span.End()

	if !h.admin.Check(r.Header.Get(AdminSecretHeader)) {
		log.Warnf("catalog reload: invalid admin secret")
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	c, err := h.source.Load(ctx)
	if err != nil {
		log.Errorf("catalog reload: %s", err)
		http.Error(w, "error, failed to reload catalog", http.StatusBadGateway)
		return
	}
	h.provider.Replace(c)

	log.Infof("catalog reloaded: %d plans", len(c.Plans))
	pkg.WriteJSON(w, ReloadResponse{Plans: len(c.Plans)}, http.StatusOK)
}
