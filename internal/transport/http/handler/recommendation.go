package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"listwise/internal/app"
	"listwise/internal/ranking"
	"listwise/internal/transport/http/response"
)

type RecommendationHandler struct {
	recommendations *app.RecommendationService
}

type SuggestionRequest struct {
	List string `form:"list" binding:"required,max=255"`
}

type SuggestionResponse struct {
	List        string               `json:"list"`
	Suggestions []ranking.Suggestion `json:"suggestions"`
}

func NewRecommendationHandler(recommendations *app.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{recommendations: recommendations}
}

// History suggests items from the caller's own past lists.
func (h *RecommendationHandler) History(c *gin.Context) {
	h.suggest(c, h.recommendations.SuggestFromHistory)
}

// Community suggests items other users keep on lists of the same kind.
func (h *RecommendationHandler) Community(c *gin.Context) {
	h.suggest(c, h.recommendations.SuggestForList)
}

func (h *RecommendationHandler) suggest(c *gin.Context, fn func(ctx context.Context, userID, listName string) ([]ranking.Suggestion, error)) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req SuggestionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid query parameters")
		return
	}

	suggestions, err := fn(c.Request.Context(), userID, req.List)
	if err != nil {
		writeError(c, err, "recommendation failed")
		return
	}
	response.OK(c, SuggestionResponse{List: req.List, Suggestions: suggestions})
}
