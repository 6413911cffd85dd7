package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/lorg-backend-go/internal/annotation"
	"github.com/jengzang/lorg-backend-go/pkg/response"
)

// AnnotationRunQuery selects the batch of POST /api/v1/annotations/run
type AnnotationRunQuery struct {
	Limit      int   `form:"limit"`
	ActivityID int64 `form:"activity_id"`
}

// AnnotationHandler handles HTTP requests for annotation dispatch
type AnnotationHandler struct {
	dispatcher *annotation.Dispatcher
}

// NewAnnotationHandler creates a new annotation handler
func NewAnnotationHandler(dispatcher *annotation.Dispatcher) *AnnotationHandler {
	return &AnnotationHandler{dispatcher: dispatcher}
}

// Run handles POST /api/v1/annotations/run
func (h *AnnotationHandler) Run(c *gin.Context) {
	var q AnnotationRunQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	results, err := h.dispatcher.Run(c.Request.Context(), annotation.RunOptions{Limit: q.Limit, ActivityID: q.ActivityID})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to run annotations", err)
		return
	}

	response.Success(c, gin.H{
		"data":  results,
		"count": len(results),
	})
}
