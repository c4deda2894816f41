package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/quiz-overview/internal/locale"
	"github.com/stemsi/quiz-overview/internal/model"
	"github.com/stemsi/quiz-overview/internal/response"
	"github.com/stemsi/quiz-overview/internal/service"
	"github.com/stemsi/quiz-overview/internal/validator"
)

// OverviewProvider builds quiz dashboards.
type OverviewProvider interface {
	GetOverview(ctx context.Context, quizID int64, opts service.OverviewOptions) (*model.QuizOverview, error)
}

// OverviewHandler handles the teacher quiz overview endpoint.
type OverviewHandler struct {
	overviewService OverviewProvider
}

// NewOverviewHandler creates a new OverviewHandler.
func NewOverviewHandler(overviewService OverviewProvider) *OverviewHandler {
	return &OverviewHandler{overviewService: overviewService}
}

type overviewQuery struct {
	GroupID int64  `form:"group_id" binding:"omitempty,gt=0"`
	Lang    string `form:"lang" binding:"omitempty,max=35"`
}

// GetOverview godoc
// GET /api/v1/teacher/quizzes/:id/overview?group_id=&lang=
// Returns grade summary, submissions, grade histogram, band distribution and per-question stats.
func (h *OverviewHandler) GetOverview(c *gin.Context) {
	quizID, err := validator.ParamID(c, "id")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var q overviewQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	lang := q.Lang
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
	}

	overview, err := h.overviewService.GetOverview(c.Request.Context(), quizID, service.OverviewOptions{
		GroupID:           q.GroupID,
		Direction:         locale.FromAcceptLanguage(lang),
		NotSubmittedLabel: locale.NotSubmittedLabel(lang),
	})
	if err != nil {
		failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"overview": overview})
}
