package handler

import (
	"net/http"

	"retailpos/internal/middleware"
	"retailpos/internal/service"
	"retailpos/pkg/pagination"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LedgerHandler struct {
	ledgerService service.LedgerService
}

func NewLedgerHandler(ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

func (h *LedgerHandler) RegisterRoutes(router *gin.RouterGroup) {
	staff := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleManager, middleware.RoleCashier)
	managers := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleManager)

	api := router.Group("/api")
	{
		api.GET("/transactions", staff, h.ListTransactions)
		api.GET("/audit-logs", managers, h.ListAuditLogs)
		api.GET("/wallets/:customer_id", staff, h.GetWallet)
		api.GET("/statistics/sales", managers, h.GetSalesStatistics)
	}
}

// ListTransactions returns the append-only stock ledger
// @Summary      List inventory transactions
// @Description  Paginated stock ledger, newest first, filterable by product and type
// @Tags         ledger
// @Security     BearerAuth
// @Produce      json
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Param        product_id  query     string  false  "Filter by product"
// @Param        type        query     string  false  "Filter by type (IMPORT, EXPORT, ADJUST, RETURN)"
// @Success      200  {object}  response.Response{data=object}
// @Failure      400  {object}  response.Response
// @Router       /api/transactions [get]
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	p := pagination.Parse(c)
	txType := c.Query("type")

	var productID *uuid.UUID
	if raw := c.Query("product_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid product_id parameter"))
			return
		}
		productID = &parsed
	}

	entries, total, err := h.ledgerService.ListTransactions(c.Request.Context(), p.Page, p.Limit, productID, txType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, entries, total, p.Page, p.Limit))
}

// ListAuditLogs returns the audit trail
// @Summary      List audit logs
// @Tags         ledger
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        action  query     string  false  "Filter by action"
// @Success      200  {object}  response.Response{data=object}
// @Failure      500  {object}  response.Response
// @Router       /api/audit-logs [get]
func (h *LedgerHandler) ListAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)
	action := c.Query("action")

	logs, total, err := h.ledgerService.ListAuditLogs(c.Request.Context(), p.Page, p.Limit, action)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, logs, total, p.Page, p.Limit))
}

// GetWallet returns a customer's wallet balance
// @Summary      Get wallet
// @Tags         ledger
// @Security     BearerAuth
// @Produce      json
// @Param        customer_id  path      string  true  "Customer ID"
// @Success      200  {object}  response.Response{data=model.Wallet}
// @Failure      404  {object}  response.Response
// @Router       /api/wallets/{customer_id} [get]
func (h *LedgerHandler) GetWallet(c *gin.Context) {
	id, ok := parseID(c, "customer_id")
	if !ok {
		return
	}

	wallet, err := h.ledgerService.GetWallet(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, wallet))
}

// GetSalesStatistics returns sale totals grouped by period
// @Summary      Get sales statistics
// @Description  Sale counts, gross revenue, and refund totals grouped by day, week, or month
// @Tags         ledger
// @Security     BearerAuth
// @Produce      json
// @Param        group_by    query     string  false  "day, week or month (default day)"
// @Param        start_date  query     string  true   "Range start (RFC3339 or date)"
// @Param        end_date    query     string  true   "Range end (RFC3339 or date)"
// @Success      200  {object}  response.Response{data=[]repository.SalesDataRow}
// @Failure      400  {object}  response.Response
// @Router       /api/statistics/sales [get]
func (h *LedgerHandler) GetSalesStatistics(c *gin.Context) {
	groupBy := c.DefaultQuery("group_by", "day")
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")
	if startDate == "" || endDate == "" {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "start_date and end_date are required"))
		return
	}

	rows, err := h.ledgerService.GetSalesStatistics(c.Request.Context(), groupBy, startDate, endDate)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}
