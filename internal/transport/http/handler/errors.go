package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"listwise/internal/app"
	"listwise/internal/factor"
	"listwise/internal/ranking"
	"listwise/internal/transport/http/middleware"
	"listwise/internal/transport/http/response"
)

// writeError maps service errors to API responses. Anything unknown becomes a 500
// carrying fallback as its message.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrListNotFound):
		response.Error(c, http.StatusNotFound, response.CodeListNotFound, err.Error())
	case errors.Is(err, app.ErrNoHistory):
		response.Error(c, http.StatusNotFound, response.CodeNoHistory, err.Error())
	case errors.Is(err, ranking.ErrNoQualifying):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeNoSuggestion, err.Error())
	case errors.Is(err, app.ErrInsufficientHistory),
		errors.Is(err, app.ErrInsufficientUsers),
		errors.Is(err, factor.ErrEmptyInput):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeNotEnoughData, err.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func requireUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
	}
	return userID, ok
}
