package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/checkpoints"
	"github.com/2beens/fitstreak/internal/plans"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"
	"github.com/2beens/fitstreak/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=sessions_test

type service interface {
	Initialize(ctx context.Context, userID string, userPlanID int, date time.Time) (*SessionDay, error)
	Get(ctx context.Context, userID string, id int) (*SessionDay, error)
	Start(ctx context.Context, userID string, id int) (*Session, error)
	RecordExerciseCompletion(ctx context.Context, userID string, id int, exerciseID string, accrual checkpoints.ExerciseAccrual) (*ExerciseResult, error)
	Finish(ctx context.Context, userID string, id int) (*FinishResult, error)
}

type InitializeRequest struct {
	// Date is YYYY-MM-DD; today when empty
	Date string `json:"date"`
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
	case errors.Is(err, ErrSessionNotFound), checkpoints.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, checkpoints.ErrInvalidCheckpoint):
		return http.StatusBadRequest
	case errors.Is(err, plans.ErrPlanCompleted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func sessionID(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["id"])
}

func (h *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.initialize")
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

	var req InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Tracef("initialize session, unmarshal json params: %s", err)
		http.Error(w, "initialize session failed", http.StatusBadRequest)
		return
	}
	date, err := checkpoints.ParseDateParam(req.Date)
	if err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return
	}

	day, err := h.service.Initialize(ctx, userID, planID, date)
	if err != nil {
		log.Errorf("initialize session of plan %d: %s", planID, err)
		http.Error(w, "error, failed to initialize session", errStatus(err))
		return
	}

	pkg.WriteJSON(w, day, http.StatusCreated)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.get")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := sessionID(r)
	if err != nil {
		http.Error(w, "error, invalid session id", http.StatusBadRequest)
		return
	}

	day, err := h.service.Get(ctx, userID, id)
	if err != nil {
		log.Errorf("get session %d: %s", id, err)
		http.Error(w, "error, failed to get session", errStatus(err))
		return
	}

	pkg.WriteJSON(w, day, http.StatusOK)
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.start")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := sessionID(r)
	if err != nil {
		http.Error(w, "error, invalid session id", http.StatusBadRequest)
		return
	}

	session, err := h.service.Start(ctx, userID, id)
	if err != nil {
		log.Errorf("start session %d: %s", id, err)
		http.Error(w, "error, failed to start session", errStatus(err))
		return
	}

	pkg.WriteJSON(w, session, http.StatusOK)
}

func (h *Handler) HandleCompleteExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.completeExercise")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := sessionID(r)
	if err != nil {
		http.Error(w, "error, invalid session id", http.StatusBadRequest)
		return
	}
	exerciseID := mux.Vars(r)["exerciseId"]
	if exerciseID == "" {
		http.Error(w, "error, missing exercise id", http.StatusBadRequest)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var accrual checkpoints.ExerciseAccrual
	if err := json.NewDecoder(r.Body).Decode(&accrual); err != nil && !errors.Is(err, io.EOF) {
		log.Tracef("complete session exercise, unmarshal json params: %s", err)
		http.Error(w, "complete exercise failed", http.StatusBadRequest)
		return
	}

	result, err := h.service.RecordExerciseCompletion(ctx, userID, id, exerciseID, accrual)
	if err != nil {
		log.Errorf("complete exercise %s of session %d: %s", exerciseID, id, err)
		http.Error(w, "error, failed to complete exercise", errStatus(err))
		return
	}

	pkg.WriteJSON(w, result, http.StatusOK)
}

func (h *Handler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.sessions.finish")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := sessionID(r)
	if err != nil {
		http.Error(w, "error, invalid session id", http.StatusBadRequest)
		return
	}

	result, err := h.service.Finish(ctx, userID, id)
	if err != nil {
		log.Errorf("finish session %d: %s", id, err)
		http.Error(w, "error, failed to finish session", errStatus(err))
		return
	}

	pkg.WriteJSON(w, result, http.StatusOK)
}
