package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/lorg-backend-go/internal/middleware"
	"github.com/jengzang/lorg-backend-go/internal/models"
	"github.com/jengzang/lorg-backend-go/internal/service"
	"github.com/jengzang/lorg-backend-go/pkg/response"
)

// CellHandler handles HTTP requests for visited cells
type CellHandler struct {
	service *service.CellService
}

// NewCellHandler creates a new cell handler
func NewCellHandler(service *service.CellService) *CellHandler {
	return &CellHandler{service: service}
}

// GetCells handles GET /api/v1/cells
// The feature collection is returned bare so map clients can load it directly.
func (h *CellHandler) GetCells(c *gin.Context) {
	var filter models.CellFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	fc, err := h.service.VisitedCells(c.Request.Context(), c.GetString(middleware.UserIDKey), filter.Limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get visited cells", err)
		return
	}

	c.JSON(http.StatusOK, fc)
}

// GetCellCount handles GET /api/v1/cells/count
func (h *CellHandler) GetCellCount(c *gin.Context) {
	n, err := h.service.CountCells(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to count visited cells", err)
		return
	}

	response.Success(c, gin.H{"count": n})
}
