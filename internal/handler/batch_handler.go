package handler

import (
	"net/http"

	"retailpos/internal/middleware"
	"retailpos/internal/service"
	"retailpos/pkg/pagination"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
)

type BatchHandler struct {
	batchService service.BatchService
}

func NewBatchHandler(batchService service.BatchService) *BatchHandler {
	return &BatchHandler{batchService: batchService}
}

func (h *BatchHandler) RegisterRoutes(router *gin.RouterGroup) {
	staff := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleManager, middleware.RoleCashier)
	managers := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleManager)

	batches := router.Group("/api/batches")
	{
		batches.POST("", managers, h.ReceiveBatch)
		batches.GET("", staff, h.ListBatches)
		batches.GET("/:id", staff, h.GetBatch)
	}

	items := router.Group("/api/batch-items")
	{
		items.PATCH("/:id/status", managers, h.AdjustLotStatus)
	}
}

// ReceiveBatch registers an incoming supplier shipment
// @Summary      Receive batch
// @Description  Records a shipment as a new batch with its lots, writes IMPORT ledger entries, and updates stock
// @Tags         batches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ReceiveBatchRequest  true  "Receive Batch Payload"
// @Success      201      {object}  response.Response{data=model.Batch}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/batches [post]
func (h *BatchHandler) ReceiveBatch(c *gin.Context) {
	var req service.ReceiveBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	batch, err := h.batchService.ReceiveBatch(c.Request.Context(), actorID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, batch))
}

// ListBatches returns a paginated batch list
// @Summary      List batches
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200  {object}  response.Response{data=object}
// @Failure      500  {object}  response.Response
// @Router       /api/batches [get]
func (h *BatchHandler) ListBatches(c *gin.Context) {
	p := pagination.Parse(c)

	batches, total, err := h.batchService.ListBatches(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, batches, total, p.Page, p.Limit))
}

// GetBatch returns one batch with its lots
// @Summary      Get batch
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  response.Response{data=model.Batch}
// @Failure      404  {object}  response.Response
// @Router       /api/batches/{id} [get]
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	batch, err := h.batchService.GetBatch(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, batch))
}

// AdjustLotStatus flags a lot damaged or clears the flag
// @Summary      Adjust lot status
// @Description  Marks a batch item DAMAGED (removing it from sellable stock) or sets ACTIVE to clear the flag and re-derive the status
// @Tags         batches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Batch Item ID"
// @Param        payload  body      service.AdjustLotStatusRequest  true  "Adjustment Payload"
// @Success      200      {object}  response.Response{data=model.BatchItem}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/batch-items/{id}/status [patch]
func (h *BatchHandler) AdjustLotStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req service.AdjustLotStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	item, err := h.batchService.AdjustLotStatus(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}
