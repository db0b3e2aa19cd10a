package handler

import (
	"net/http"

	"retailpos/internal/middleware"
	"retailpos/internal/service"
	"retailpos/pkg/pagination"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
)

type SaleHandler struct {
	allocationService service.AllocationService
	returnService     service.ReturnService
}

func NewSaleHandler(allocationService service.AllocationService, returnService service.ReturnService) *SaleHandler {
	return &SaleHandler{
		allocationService: allocationService,
		returnService:     returnService,
	}
}

func (h *SaleHandler) RegisterRoutes(router *gin.RouterGroup) {
	staff := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleManager, middleware.RoleCashier)
	managers := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleManager)

	sales := router.Group("/api/sales")
	{
		sales.POST("", staff, h.CreateSale)
		sales.GET("", staff, h.ListSales)
		sales.GET("/:id", staff, h.GetSale)
		sales.POST("/:id/return", staff, h.ReverseSale)
	}

	allocations := router.Group("/api/allocations")
	{
		allocations.POST("", managers, h.Allocate)
		allocations.POST("/release", managers, h.ReleaseAllocation)
	}
}

// CreateSale commits a checkout
// @Summary      Create sale
// @Description  Allocates stock for every line from the oldest eligible lots, records the sale with lot bindings, and settles payment
// @Tags         sales
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateSaleRequest  true  "Create Sale Payload"
// @Success      201      {object}  response.Response{data=model.Sale}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/sales [post]
func (h *SaleHandler) CreateSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	sale, err := h.allocationService.CreateSale(c.Request.Context(), actorID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sale))
}

// ListSales returns a paginated sale list
// @Summary      List sales
// @Tags         sales
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200  {object}  response.Response{data=object}
// @Failure      500  {object}  response.Response
// @Router       /api/sales [get]
func (h *SaleHandler) ListSales(c *gin.Context) {
	p := pagination.Parse(c)

	sales, total, err := h.allocationService.ListSales(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, sales, total, p.Page, p.Limit))
}

// GetSale returns one sale with its lines and lot bindings
// @Summary      Get sale
// @Tags         sales
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Sale ID"
// @Success      200  {object}  response.Response{data=model.Sale}
// @Failure      404  {object}  response.Response
// @Router       /api/sales/{id} [get]
func (h *SaleHandler) GetSale(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	sale, err := h.allocationService.GetSale(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, sale))
}

// ReverseSale returns a sale fully or partially
// @Summary      Reverse sale
// @Description  Restores returned quantities to the exact lots the sale consumed and refunds wallet payments. One reversal per sale, inside the return window.
// @Tags         sales
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Sale ID"
// @Param        payload  body      service.ReverseSaleRequest  true  "Reverse Sale Payload"
// @Success      200      {object}  response.Response{data=service.ReversalResult}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/sales/{id}/return [post]
func (h *SaleHandler) ReverseSale(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req service.ReverseSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.returnService.ReverseSale(c.Request.Context(), actorID(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Allocate deducts stock outside of a sale
// @Summary      Allocate stock
// @Description  Deducts a quantity from the oldest eligible lots and returns the per-lot breakdown
// @Tags         allocations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.AllocateRequest  true  "Allocate Payload"
// @Success      200      {object}  response.Response{data=[]service.Allocation}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/allocations [post]
func (h *SaleHandler) Allocate(c *gin.Context) {
	var req service.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	plan, err := h.allocationService.Allocate(c.Request.Context(), actorID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, plan))
}

// ReleaseAllocation restores a previous allocation
// @Summary      Release allocation
// @Description  Restores a previously returned allocation breakdown lot by lot
// @Tags         allocations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      []service.Allocation  true  "Allocations to release"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Router       /api/allocations/release [post]
func (h *SaleHandler) ReleaseAllocation(c *gin.Context) {
	var req struct {
		Allocations []service.Allocation `json:"allocations" binding:"required,min=1"`
		Note        string               `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.allocationService.ReleaseAllocation(c.Request.Context(), actorID(c), req.Allocations, req.Note); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Allocation released"))
}
