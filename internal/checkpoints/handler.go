package checkpoints

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fitstreak/internal/auth"
	"github.com/2beens/fitstreak/internal/nutrition"
	"github.com/2beens/fitstreak/internal/plans"
	"github.com/2beens/fitstreak/internal/storage"
	"github.com/2beens/fitstreak/internal/telemetry/tracing"
	"github.com/2beens/fitstreak/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=checkpoints_test

type service interface {
	CompleteExercise(ctx context.Context, userID string, id int, accrual ExerciseAccrual) (*ExerciseCompletion, error)
	CompleteMeal(ctx context.Context, userID string, id int, accrual MealAccrual) (*MealCompletion, error)
	MealPhotoUploadURL(ctx context.Context, userID string, id int, contentType string) (*PhotoURL, error)
	MealPhotoDownloadURL(ctx context.Context, userID string, id int) (*PhotoURL, error)
	ListForDate(ctx context.Context, userID string, userPlanID int, date time.Time) (*DayCheckpoints, error)
	SeedMealsForDate(ctx context.Context, userID string, userPlanID int, date time.Time) ([]*MealCheckpoint, error)
}

type PhotoRequest struct {
	ContentType string `json:"contentType"`
}

type SeedRequest struct {
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
	case IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidCheckpoint), errors.Is(err, nutrition.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, plans.ErrPlanCompleted):
		return http.StatusConflict
	case errors.Is(err, storage.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ParseDateParam parses an optional YYYY-MM-DD value, the zero time means today.
func ParseDateParam(value string) (time.Time, error) {
	if value == "" || value == "today" {
		return time.Time{}, nil
	}
	return pkg.ParseDate(value)
}

// decodeOptional decodes a JSON body, an empty body leaves v untouched.
func decodeOptional(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func checkpointID(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["id"])
}

func (h *Handler) HandleCompleteExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkpoints.completeExercise")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := checkpointID(r)
	if err != nil {
		http.Error(w, "error, invalid checkpoint id", http.StatusBadRequest)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var accrual ExerciseAccrual
	if err := decodeOptional(r, &accrual); err != nil {
		log.Tracef("complete exercise, unmarshal json params: %s", err)
		http.Error(w, "complete exercise failed", http.StatusBadRequest)
		return
	}

	completion, err := h.service.CompleteExercise(ctx, userID, id, accrual)
	if err != nil {
		log.Errorf("complete exercise checkpoint %d: %s", id, err)
		http.Error(w, "error, failed to complete exercise", errStatus(err))
		return
	}

	pkg.WriteJSON(w, completion, http.StatusOK)
}

func (h *Handler) HandleCompleteMeal(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkpoints.completeMeal")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := checkpointID(r)
	if err != nil {
		http.Error(w, "error, invalid checkpoint id", http.StatusBadRequest)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var accrual MealAccrual
	if err := decodeOptional(r, &accrual); err != nil {
		log.Tracef("complete meal, unmarshal json params: %s", err)
		http.Error(w, "complete meal failed", http.StatusBadRequest)
		return
	}

	completion, err := h.service.CompleteMeal(ctx, userID, id, accrual)
	if err != nil {
		log.Errorf("complete meal checkpoint %d: %s", id, err)
		http.Error(w, "error, failed to complete meal", errStatus(err))
		return
	}

	pkg.WriteJSON(w, completion, http.StatusOK)
}

func (h *Handler) HandleMealPhotoUpload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkpoints.mealPhotoUpload")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := checkpointID(r)
	if err != nil {
		http.Error(w, "error, invalid checkpoint id", http.StatusBadRequest)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req PhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ContentType == "" {
		log.Tracef("meal photo upload, unmarshal json params: %v", err)
		http.Error(w, "error, photo content type missing", http.StatusBadRequest)
		return
	}

	photoURL, err := h.service.MealPhotoUploadURL(ctx, userID, id, req.ContentType)
	if err != nil {
		log.Errorf("meal photo upload url for checkpoint %d: %s", id, err)
		http.Error(w, "error, failed to prepare photo upload", errStatus(err))
		return
	}

	pkg.WriteJSON(w, photoURL, http.StatusOK)
}

func (h *Handler) HandleMealPhotoDownload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkpoints.mealPhotoDownload")
	defer span.End()

	userID, err := auth.UserID(ctx)
	if err != nil {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	id, err := checkpointID(r)
	if err != nil {
		http.Error(w, "error, invalid checkpoint id", http.StatusBadRequest)
		return
	}

	photoURL, err := h.service.MealPhotoDownloadURL(ctx, userID, id)
	if err != nil {
		log.Errorf("meal photo download url for checkpoint %d: %s", id, err)
		http.Error(w, "error, failed to get photo", errStatus(err))
		return
	}

	pkg.WriteJSON(w, photoURL, http.StatusOK)
}

func (h *Handler) HandleListForDate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkpoints.listForDate")
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

	date, err := ParseDateParam(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return
	}

	day, err := h.service.ListForDate(ctx, userID, planID, date)
	if err != nil {
		log.Errorf("list checkpoints of plan %d: %s", planID, err)
		http.Error(w, "error, failed to list checkpoints", errStatus(err))
		return
	}

	pkg.WriteJSON(w, day, http.StatusOK)
}

func (h *Handler) HandleSeedMeals(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkpoints.seedMeals")
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

	var req SeedRequest
	if err := decodeOptional(r, &req); err != nil {
		log.Tracef("seed meals, unmarshal json params: %s", err)
		http.Error(w, "seed meals failed", http.StatusBadRequest)
		return
	}
	date, err := ParseDateParam(req.Date)
	if err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return
	}

	meals, err := h.service.SeedMealsForDate(ctx, userID, planID, date)
	if err != nil {
		log.Errorf("seed meals of plan %d: %s", planID, err)
		http.Error(w, "error, failed to seed meals", errStatus(err))
		return
	}

	pkg.WriteJSON(w, meals, http.StatusCreated)
}
