package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/2beens/fitstreak/internal/checkpoints"
	"github.com/2beens/fitstreak/internal/middleware"
	"github.com/2beens/fitstreak/internal/nutrition"
	"github.com/2beens/fitstreak/internal/plans"
	"github.com/2beens/fitstreak/internal/progress"
	"github.com/2beens/fitstreak/internal/sessions"

	"github.com/google/uuid"
)

// bcrypt of "testpass"
const testAdminSecretHash = "$2a$14$6Gmhg85si2etd3K9oB8nYu1cxfbrdmhkg6wI6OXsa88IF4L2r/L9i"

type testUser struct {
	ID    string
	Token string
}

func (s *IntegrationTestSuite) newUser() testUser {
	userID := uuid.NewString()
	token, err := s.authService.Login(context.Background(), userID, time.Now())
	s.Require().NoError(err)
	return testUser{ID: userID, Token: token}
}

func (s *IntegrationTestSuite) doRequest(
	user *testUser,
	method, path string,
	body any,
	headers map[string]string,
) *http.Response {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, serverEndpoint+path, reqBody)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set(middleware.TokenHeader, user.Token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *IntegrationTestSuite) doJSON(
	user *testUser,
	method, path string,
	body any,
	expectedStatus int,
	out any,
) {
	resp := s.doRequest(user, method, path, body, nil)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Require().Equal(expectedStatus, resp.StatusCode, "%s %s: %s", method, path, respBody)
	if out != nil {
		s.Require().NoError(json.Unmarshal(respBody, out))
	}
}

func (s *IntegrationTestSuite) startPlan(user testUser, catalogPlanID, targetDays int, startDate string) *plans.UserPlan {
	var plan plans.UserPlan
	s.doJSON(&user, http.MethodPost, "/plans", map[string]any{
		"catalogPlanId": catalogPlanID,
		"targetDays":    targetDays,
		"startDate":     startDate,
	}, http.StatusCreated, &plan)
	s.Require().Positive(plan.ID)
	return &plan
}

func (s *IntegrationTestSuite) TestAuth_RequiresToken() {
	resp := s.doRequest(nil, http.MethodGet, "/plans", nil, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.doRequest(&testUser{Token: "not-a-token"}, http.MethodGet, "/progress/summary", nil, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestCatalog_Public() {
	resp := s.doRequest(nil, http.MethodGet, "/catalog/plans", nil, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.doRequest(nil, http.MethodPost, "/admin/catalog/reload", nil, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestWorkoutSession_FullFlow() {
	user := s.newUser()
	plan := s.startPlan(user, 1, 28, "2026-10-19")
	s.Equal(28, plan.TargetDays)

	var day sessions.SessionDay
	s.doJSON(&user, http.MethodPost, fmt.Sprintf("/plans/%d/sessions", plan.ID), map[string]string{
		"date": "2026-10-19",
	}, http.StatusCreated, &day)
	s.Require().NotNil(day.Session)
	s.Len(day.Exercises, 5)
	s.Equal(5, day.Session.TotalExercises)
	s.Equal(0, day.Session.CompletedExercises)
	sessionID := day.Session.ID

	// initializing again returns the same session
	var again sessions.SessionDay
	s.doJSON(&user, http.MethodPost, fmt.Sprintf("/plans/%d/sessions", plan.ID), map[string]string{
		"date": "2026-10-19",
	}, http.StatusCreated, &again)
	s.Equal(sessionID, again.Session.ID)
	s.Len(again.Exercises, 5)

	var started sessions.Session
	s.doJSON(&user, http.MethodPost, fmt.Sprintf("/sessions/%d/start", sessionID), nil, http.StatusOK, &started)
	s.NotNil(started.StartedAt)

	for i, exerciseID := range []string{"squat", "bench-press", "row"} {
		var result sessions.ExerciseResult
		s.doJSON(&user, http.MethodPost,
			fmt.Sprintf("/sessions/%d/exercises/%s/complete", sessionID, exerciseID),
			map[string]any{"setsCompleted": 3},
			http.StatusOK, &result,
		)
		s.Require().NotNil(result.Completion)
		s.False(result.Completion.AlreadyCompleted)
		s.Equal(checkpoints.ExercisePoints, result.Completion.PointsAwarded)
		s.Equal(i+1, result.Session.CompletedExercises)
		s.Equal((i+1)*checkpoints.ExercisePoints, result.Session.PointsEarned)
	}

	// duplicate completion awards nothing and does not move the counter
	var duplicate sessions.ExerciseResult
	s.doJSON(&user, http.MethodPost,
		fmt.Sprintf("/sessions/%d/exercises/squat/complete", sessionID),
		map[string]any{},
		http.StatusOK, &duplicate,
	)
	s.True(duplicate.Completion.AlreadyCompleted)
	s.Zero(duplicate.Completion.PointsAwarded)
	s.Equal(3, duplicate.Session.CompletedExercises)

	var finished sessions.FinishResult
	s.doJSON(&user, http.MethodPost, fmt.Sprintf("/sessions/%d/finish", sessionID), nil, http.StatusOK, &finished)
	s.False(finished.AlreadyCompleted)
	s.Equal(sessions.FinishBonusPoints, finished.BonusAwarded)
	s.True(finished.Session.IsCompleted)
	s.Equal(65, finished.Session.PointsEarned)
	s.Equal(150, finished.Session.CaloriesBurned)

	var finishedAgain sessions.FinishResult
	s.doJSON(&user, http.MethodPost, fmt.Sprintf("/sessions/%d/finish", sessionID), nil, http.StatusOK, &finishedAgain)
	s.True(finishedAgain.AlreadyCompleted)
	s.Zero(finishedAgain.BonusAwarded)
	s.Equal(65, finishedAgain.Session.PointsEarned)

	var summary progress.Summary
	s.doJSON(&user, http.MethodGet, "/progress/summary", nil, http.StatusOK, &summary)
	s.Equal(65, summary.TotalPoints)
	s.Equal(15, summary.Points.Exercises)
	s.Equal(sessions.FinishBonusPoints, summary.Points.SessionBonus)
	s.Equal(1, summary.Level)
	s.Equal(35, summary.PointsToNextLevel)

	var planProgress progress.PlanProgress
	s.doJSON(&user, http.MethodGet, fmt.Sprintf("/plans/%d/progress", plan.ID), nil, http.StatusOK, &planProgress)
	s.Equal(1, planProgress.ActiveDays)
	s.Equal(28, planProgress.TargetDays)
	s.False(planProgress.IsCompleted)

	var completedRows int
	s.Require().NoError(s.DB.QueryRow(
		`SELECT COUNT(*) FROM exercise_checkpoint WHERE user_id = $1 AND is_completed`, user.ID,
	).Scan(&completedRows))
	s.Equal(3, completedRows)
}

func (s *IntegrationTestSuite) TestExerciseCheckpoint_Idempotency() {
	user := s.newUser()
	plan := s.startPlan(user, 1, 0, "2026-10-19")
	s.doJSON(&user, http.MethodPost, fmt.Sprintf("/plans/%d/sessions", plan.ID), map[string]string{
		"date": "2026-10-19",
	}, http.StatusCreated, nil)

	var dayCps checkpoints.DayCheckpoints
	s.doJSON(&user, http.MethodGet, fmt.Sprintf("/plans/%d/checkpoints?date=2026-10-19", plan.ID), nil, http.StatusOK, &dayCps)
	s.Require().NotEmpty(dayCps.Exercises)
	cpID := dayCps.Exercises[0].ID

	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	path := fmt.Sprintf("/checkpoints/exercise/%d/complete", cpID)

	first := s.doRequest(&user, http.MethodPost, path, map[string]any{}, headers)
	firstBody, err := io.ReadAll(first.Body)
	s.Require().NoError(err)
	first.Body.Close()
	s.Require().Equal(http.StatusOK, first.StatusCode, string(firstBody))
	s.Empty(first.Header.Get("Idempotent-Replayed"))

	second := s.doRequest(&user, http.MethodPost, path, map[string]any{}, headers)
	secondBody, err := io.ReadAll(second.Body)
	s.Require().NoError(err)
	second.Body.Close()
	s.Equal(http.StatusOK, second.StatusCode)
	s.Equal("true", second.Header.Get("Idempotent-Replayed"))
	s.JSONEq(string(firstBody), string(secondBody))

	// without the key, a repeat is a regular duplicate completion
	var duplicate checkpoints.ExerciseCompletion
	s.doJSON(&user, http.MethodPost, path, map[string]any{}, http.StatusOK, &duplicate)
	s.True(duplicate.AlreadyCompleted)
	s.Zero(duplicate.PointsAwarded)

	var summary progress.Summary
	s.doJSON(&user, http.MethodGet, "/progress/summary", nil, http.StatusOK, &summary)
	s.Equal(checkpoints.ExercisePoints, summary.TotalPoints)
}

func (s *IntegrationTestSuite) TestDeletePlan_KeepsSharedNutritionGoal() {
	user := s.newUser()
	mealPlan := s.startPlan(user, 2, 0, "2026-10-20")
	dietPlan := s.startPlan(user, 3, 0, "2026-10-20")

	completeFirstMeal := func(planID int) *checkpoints.MealCompletion {
		var meals []*checkpoints.MealCheckpoint
		s.doJSON(&user, http.MethodPost, fmt.Sprintf("/plans/%d/meals", planID), map[string]string{
			"date": "2026-10-20",
		}, http.StatusCreated, &meals)
		s.Require().NotEmpty(meals)

		var completion checkpoints.MealCompletion
		s.doJSON(&user, http.MethodPost,
			fmt.Sprintf("/checkpoints/meal/%d/complete", meals[0].ID),
			map[string]any{},
			http.StatusOK, &completion,
		)
		s.False(completion.AlreadyCompleted)
		s.Equal(checkpoints.MealPoints, completion.PointsAwarded)
		return &completion
	}

	oats := completeFirstMeal(mealPlan.ID)
	eggs := completeFirstMeal(dietPlan.ID)
	s.Equal(oats.NutritionGoalID, eggs.NutritionGoalID)

	var before nutrition.GoalResponse
	s.doJSON(&user, http.MethodGet, "/nutrition/2026-10-20", nil, http.StatusOK, &before)
	s.Equal(450+270, before.Goal.ConsumedCalories)
	s.Equal(2, before.Goal.MealsCompleted)
	// 3 seeded by the meal plan, 1 by the diet
	s.Equal(4, before.Goal.TotalMeals)

	var deleted plans.DeleteResult
	s.doJSON(&user, http.MethodDelete, fmt.Sprintf("/plans/%d", mealPlan.ID), nil, http.StatusOK, &deleted)
	s.Equal(mealPlan.ID, deleted.PlanID)
	s.EqualValues(3, deleted.MealCheckpoints)
	s.Equal(1, deleted.NutritionEntries)

	var goals int
	s.Require().NoError(s.DB.QueryRow(
		`SELECT COUNT(*) FROM daily_nutrition_goal WHERE user_id = $1`, user.ID,
	).Scan(&goals))
	s.Equal(1, goals)

	var mealCps int
	s.Require().NoError(s.DB.QueryRow(
		`SELECT COUNT(*) FROM meal_checkpoint WHERE user_plan_id = $1`, mealPlan.ID,
	).Scan(&mealCps))
	s.Zero(mealCps)

	var after nutrition.GoalResponse
	s.doJSON(&user, http.MethodGet, "/nutrition/2026-10-20", nil, http.StatusOK, &after)
	s.Equal(270, after.Goal.ConsumedCalories)
	s.Equal(1, after.Goal.MealsCompleted)
	// back to the configured default, the diet's single meal is below it
	s.Equal(3, after.Goal.TotalMeals)

	resp := s.doRequest(&user, http.MethodGet, fmt.Sprintf("/plans/%d", mealPlan.ID), nil, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) seedMeals(user testUser, planID int, date string) []*checkpoints.MealCheckpoint {
	var meals []*checkpoints.MealCheckpoint
	s.doJSON(&user, http.MethodPost, fmt.Sprintf("/plans/%d/meals", planID), map[string]string{
		"date": date,
	}, http.StatusCreated, &meals)
	s.Require().NotEmpty(meals)
	return meals
}

func (s *IntegrationTestSuite) countGoals(userID string) int {
	var goals int
	s.Require().NoError(s.DB.QueryRow(
		`SELECT COUNT(*) FROM daily_nutrition_goal WHERE user_id = $1`, userID,
	).Scan(&goals))
	return goals
}

func (s *IntegrationTestSuite) TestDeletePlan_KeepsGoalOfSeededMeals() {
	user := s.newUser()
	mealPlan := s.startPlan(user, 2, 0, "2026-10-21")
	dietPlan := s.startPlan(user, 3, 0, "2026-10-21")

	oats := s.seedMeals(user, mealPlan.ID, "2026-10-21")[0]
	s.seedMeals(user, dietPlan.ID, "2026-10-21")

	var completion checkpoints.MealCompletion
	s.doJSON(&user, http.MethodPost, fmt.Sprintf("/checkpoints/meal/%d/complete", oats.ID),
		map[string]any{}, http.StatusOK, &completion)

	// only the deleted plan fed the goal, the diet still has a seeded meal on that date
	var deleted plans.DeleteResult
	s.doJSON(&user, http.MethodDelete, fmt.Sprintf("/plans/%d", mealPlan.ID), nil, http.StatusOK, &deleted)
	s.Equal(1, deleted.NutritionEntries)
	s.Equal(1, s.countGoals(user.ID))

	var after nutrition.GoalResponse
	s.doJSON(&user, http.MethodGet, "/nutrition/2026-10-21", nil, http.StatusOK, &after)
	s.Equal(completion.NutritionGoalID, after.Goal.ID)
	s.Zero(after.Goal.ConsumedCalories)
	s.Zero(after.Goal.MealsCompleted)
	s.Equal(3, after.Goal.TotalMeals)

	// nothing references the goal once the diet is gone too
	s.doJSON(&user, http.MethodDelete, fmt.Sprintf("/plans/%d", dietPlan.ID), nil, http.StatusOK, &deleted)
	s.Zero(deleted.NutritionEntries)
	s.EqualValues(1, deleted.MealCheckpoints)
	s.Zero(s.countGoals(user.ID))
}

func (s *IntegrationTestSuite) TestDeletePlan_KeepsEditedGoal() {
	user := s.newUser()
	dietPlan := s.startPlan(user, 3, 0, "2026-10-22")
	s.seedMeals(user, dietPlan.ID, "2026-10-22")

	var edited nutrition.GoalResponse
	s.doJSON(&user, http.MethodPut, "/nutrition/2026-10-22/targets", map[string]any{
		"calories": 1800,
	}, http.StatusOK, &edited)
	s.Equal(1800, edited.Goal.TargetCalories)

	var deleted plans.DeleteResult
	s.doJSON(&user, http.MethodDelete, fmt.Sprintf("/plans/%d", dietPlan.ID), nil, http.StatusOK, &deleted)
	s.Equal(1, s.countGoals(user.ID))

	var after nutrition.GoalResponse
	s.doJSON(&user, http.MethodGet, "/nutrition/2026-10-22", nil, http.StatusOK, &after)
	s.Equal(edited.Goal.ID, after.Goal.ID)
	s.Equal(1800, after.Goal.TargetCalories)
}

func (s *IntegrationTestSuite) TestCompleteMeal_RepeatKeepsGoalInSync() {
	user := s.newUser()
	mealPlan := s.startPlan(user, 2, 0, "2026-10-23")
	oats := s.seedMeals(user, mealPlan.ID, "2026-10-23")[0]
	path := fmt.Sprintf("/checkpoints/meal/%d/complete", oats.ID)

	var first checkpoints.MealCompletion
	s.doJSON(&user, http.MethodPost, path, map[string]any{"calories": 450}, http.StatusOK, &first)
	var again checkpoints.MealCompletion
	s.doJSON(&user, http.MethodPost, path, map[string]any{"calories": 600}, http.StatusOK, &again)
	s.True(again.AlreadyCompleted)
	s.Equal(600, again.Checkpoint.CaloriesConsumed)

	var goal nutrition.GoalResponse
	s.doJSON(&user, http.MethodGet, "/nutrition/2026-10-23", nil, http.StatusOK, &goal)
	s.Equal(600, goal.Goal.ConsumedCalories)
	s.Equal(1, goal.Goal.MealsCompleted)
}

func (s *IntegrationTestSuite) TestRecordMeal_ClientKeyCannotClaimCheckpoint() {
	user := s.newUser()
	mealPlan := s.startPlan(user, 2, 0, "2026-10-24")
	oats := s.seedMeals(user, mealPlan.ID, "2026-10-24")[0]

	var manual nutrition.GoalResponse
	s.doJSON(&user, http.MethodPost, "/nutrition/2026-10-24/meals", map[string]any{
		"calories":  100,
		"sourceKey": checkpoints.MealSourceKey(oats.ID),
	}, http.StatusOK, &manual)
	s.Equal(100, manual.Goal.ConsumedCalories)

	var completion checkpoints.MealCompletion
	s.doJSON(&user, http.MethodPost, fmt.Sprintf("/checkpoints/meal/%d/complete", oats.ID),
		map[string]any{}, http.StatusOK, &completion)

	var goal nutrition.GoalResponse
	s.doJSON(&user, http.MethodGet, "/nutrition/2026-10-24", nil, http.StatusOK, &goal)
	s.Equal(100+450, goal.Goal.ConsumedCalories)
	s.Equal(2, goal.Goal.MealsCompleted)
}

func (s *IntegrationTestSuite) TestRemovePlan_RejectsCompletions() {
	user := s.newUser()
	plan := s.startPlan(user, 3, 0, "2026-10-19")

	var meals []*checkpoints.MealCheckpoint
	s.doJSON(&user, http.MethodPost, fmt.Sprintf("/plans/%d/meals", plan.ID), map[string]string{
		"date": "2026-10-19",
	}, http.StatusCreated, &meals)
	s.Require().NotEmpty(meals)

	var removed plans.UserPlan
	s.doJSON(&user, http.MethodPost, fmt.Sprintf("/plans/%d/remove", plan.ID), nil, http.StatusOK, &removed)
	s.True(removed.IsCompleted)

	resp := s.doRequest(&user, http.MethodPost, fmt.Sprintf("/checkpoints/meal/%d/complete", meals[0].ID), map[string]any{}, nil)
	defer resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)

	var active []*plans.UserPlan
	s.doJSON(&user, http.MethodGet, "/plans?active=true", nil, http.StatusOK, &active)
	s.Empty(active)
}

func (s *IntegrationTestSuite) TestProgress_TodayAndWeek() {
	user := s.newUser()

	var today progress.TodayStats
	s.doJSON(&user, http.MethodGet, "/progress/today", nil, http.StatusOK, &today)
	s.Zero(today.TotalPoints)
	s.Zero(today.CheckpointsTotal)
	s.Nil(today.NutritionGoal)

	var week progress.WeekStats
	s.doJSON(&user, http.MethodGet, "/progress/week", nil, http.StatusOK, &week)
	s.Zero(week.TotalPoints)
	s.Zero(week.ActiveDays)
	s.True(week.From.Before(week.To))
}
