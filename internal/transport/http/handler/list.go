package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"listwise/internal/app"
	"listwise/internal/model"
	"listwise/internal/transport/http/response"
)

type ListHandler struct {
	lists    *app.ListService
	affinity *app.AffinityService
}

type ListRequest struct {
	Name  string   `json:"name" binding:"required,max=255"`
	Items []string `json:"items" binding:"max=200,dive,max=255"`
}

type AppendResponse struct {
	List  *model.ListRecord `json:"list"`
	Found bool              `json:"found"`
}

type PastListsRequest struct {
	Name  string    `form:"name"`
	From  time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To    time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit int       `form:"limit" binding:"min=0,max=100"`
}

type DecrementRequest struct {
	List          string   `json:"list" binding:"required,max=255"`
	Items         []string `json:"items" binding:"required,min=1,max=200,dive,max=255"`
	RetractCounts bool     `json:"retract_counts"`
}

func NewListHandler(lists *app.ListService, affinity *app.AffinityService) *ListHandler {
	return &ListHandler{lists: lists, affinity: affinity}
}

func (h *ListHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req ListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	list, err := h.lists.CreateList(c.Request.Context(), app.ListInput{
		UserID: userID,
		Name:   req.Name,
		Items:  req.Items,
	})
	if err != nil {
		writeError(c, err, "create list failed")
		return
	}
	response.OK(c, list)
}

func (h *ListHandler) Append(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req ListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	list, found, err := h.lists.AppendToList(c.Request.Context(), app.ListInput{
		UserID: userID,
		Name:   req.Name,
		Items:  req.Items,
	})
	if err != nil {
		writeError(c, err, "append to list failed")
		return
	}
	response.OK(c, AppendResponse{List: list, Found: found})
}

func (h *ListHandler) Past(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req PastListsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid query parameters")
		return
	}

	lists, err := h.lists.PastLists(c.Request.Context(), app.PastListsInput{
		UserID: userID,
		Name:   req.Name,
		From:   req.From,
		To:     req.To,
		Limit:  req.Limit,
	})
	if err != nil {
		writeError(c, err, "query lists failed")
		return
	}
	response.OK(c, lists)
}

func (h *ListHandler) Find(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	list, err := h.lists.FindByName(c.Request.Context(), userID, c.Query("name"))
	if err != nil {
		writeError(c, err, "find list failed")
		return
	}
	response.OK(c, list)
}

// Reset wipes the caller's lists and history. It requires confirm=true.
func (h *ListHandler) Reset(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if c.Query("confirm") != "true" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "reset requires confirm=true")
		return
	}

	if err := h.lists.Reset(c.Request.Context(), userID); err != nil {
		writeError(c, err, "reset failed")
		return
	}
	response.OK(c, nil)
}

func (h *ListHandler) Decrement(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req DecrementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	record, err := h.affinity.Decrement(c.Request.Context(), app.DecrementInput{
		UserID:        userID,
		Category:      h.lists.Category(req.List),
		Items:         req.Items,
		RetractCounts: req.RetractCounts,
	})
	if err != nil {
		writeError(c, err, "decrement failed")
		return
	}
	response.OK(c, gin.H{
		"category": record.Category,
		"scores":   record.Scores(),
	})
}
