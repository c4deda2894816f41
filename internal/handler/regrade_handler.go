package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/quiz-overview/internal/middleware"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/regrade"
	"github.com/stemsi/quiz-overview/internal/response"
	"github.com/stemsi/quiz-overview/internal/validator"
)

// RegradeRunner starts and inspects regrade batches.
type RegradeRunner interface {
	Start(ctx context.Context, quizID int64, req model.RegradeRequest, userID int64) (*model.RegradeRun, error)
	GetRun(ctx context.Context, runID string) (*model.RegradeRun, error)
	LatestRun(ctx context.Context, quizID int64) (*model.RegradeRun, error)
	PendingRegrades(ctx context.Context, quizID, groupID int64) (*model.RegradeListing, error)
	CloseAttempts(ctx context.Context, quizID int64, req model.CloseAttemptsRequest) (*regrade.BatchResult, error)
}

// RegradeHandler handles regrade and close-attempt endpoints.
type RegradeHandler struct {
	regradeService RegradeRunner
}

// NewRegradeHandler creates a new RegradeHandler.
func NewRegradeHandler(regradeService RegradeRunner) *RegradeHandler {
	return &RegradeHandler{regradeService: regradeService}
}

type groupQuery struct {
	GroupID int64 `form:"group_id" binding:"omitempty,gt=0"`
}

// ListRegrades godoc
// GET /api/v1/teacher/quizzes/:id/regrades?group_id=
// Lists attempts with stored regrade deltas and the number still needing a regrade.
func (h *RegradeHandler) ListRegrades(c *gin.Context) {
	quizID, err := validator.ParamID(c, "id")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var q groupQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	listing, err := h.regradeService.PendingRegrades(c.Request.Context(), quizID, q.GroupID)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, listing)
}

// StartRegrade godoc
// POST /api/v1/teacher/quizzes/:id/regrade
// Starts a regrade batch in the background and returns its run record.
func (h *RegradeHandler) StartRegrade(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	quizID, err := validator.ParamID(c, "id")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.RegradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	run, err := h.regradeService.Start(c.Request.Context(), quizID, req, claims.UserID)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"run": run})
}

// GetRun godoc
// GET /api/v1/teacher/regrade-runs/:run_id
// Returns the status record of a regrade run.
func (h *RegradeHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")
	if runID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	run, err := h.regradeService.GetRun(c.Request.Context(), runID)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"run": run})
}

// LatestRun godoc
// GET /api/v1/teacher/quizzes/:id/regrade/latest
// Returns the most recent run of a quiz, 404 when none is retained.
func (h *RegradeHandler) LatestRun(c *gin.Context) {
	quizID, err := validator.ParamID(c, "id")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	run, err := h.regradeService.LatestRun(c.Request.Context(), quizID)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"run": run})
}

// CloseAttempts godoc
// POST /api/v1/teacher/quizzes/:id/close-attempts
// Finishes every open attempt in scope and scores it as submitted.
func (h *RegradeHandler) CloseAttempts(c *gin.Context) {
	quizID, err := validator.ParamID(c, "id")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.CloseAttemptsRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	res, err := h.regradeService.CloseAttempts(c.Request.Context(), quizID, req)
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": res})
}
