package handler

import (
	"net/http"

	"retailpos/internal/middleware"
	"retailpos/internal/service"
	"retailpos/pkg/response"

	"github.com/gin-gonic/gin"
)

type MaintenanceHandler struct {
	reconciler service.ReconcileService
}

func NewMaintenanceHandler(reconciler service.ReconcileService) *MaintenanceHandler {
	return &MaintenanceHandler{reconciler: reconciler}
}

func (h *MaintenanceHandler) RegisterRoutes(router *gin.RouterGroup) {
	admins := middleware.RequireRole(middleware.RoleAdmin)

	maintenance := router.Group("/api/maintenance")
	{
		maintenance.POST("/prune-batches", admins, h.PruneBatches)
		maintenance.POST("/reconcile", admins, h.ReconcileAll)
	}
}

// PruneBatches hard-deletes exhausted batches
// @Summary      Prune empty batches
// @Description  Permanently removes batches whose lots are all at zero quantity
// @Tags         maintenance
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Failure      409  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/maintenance/prune-batches [post]
func (h *MaintenanceHandler) PruneBatches(c *gin.Context) {
	pruned, err := h.reconciler.PruneEmptyBatches(c.Request.Context(), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{"pruned": pruned}))
}

// ReconcileAll resyncs every trackable product
// @Summary      Reconcile all products
// @Description  Re-derives lot statuses and corrects stock aggregates across the catalog
// @Tags         maintenance
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Failure      500  {object}  response.Response
// @Router       /api/maintenance/reconcile [post]
func (h *MaintenanceHandler) ReconcileAll(c *gin.Context) {
	if err := h.reconciler.ReconcileAll(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Reconciliation completed"))
}
