package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quiz-overview/internal/binning"
	"github.com/stemsi/quiz-overview/internal/regrade"
	"github.com/stemsi/quiz-overview/internal/repository"
	"github.com/stemsi/quiz-overview/internal/response"
	"github.com/stemsi/quiz-overview/internal/service"
)

// failFromError maps service errors onto API error codes.
func failFromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrQuizNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
	case errors.Is(err, service.ErrRunNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrRunNotFound)
	case errors.Is(err, service.ErrRegradeInProgress):
		response.Fail(c, http.StatusConflict, response.ErrRegradeInProgress)
	case errors.Is(err, regrade.ErrInvalidScope):
		response.FailWithDetail(c, http.StatusBadRequest, response.ErrInvalidScope, err.Error())
	case errors.Is(err, binning.ErrInvalidBandConfiguration):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrInvalidBandConfig)
	case errors.Is(err, regrade.ErrGradeSync):
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("Grade sync failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrGradeSyncFailed)
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
