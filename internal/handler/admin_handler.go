package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JGooseK41/NFTServiceApp-sub011/internal/models"
	"github.com/JGooseK41/NFTServiceApp-sub011/pkg/response"
)

type adminAuthenticator interface {
	Login(ctx context.Context, req models.AdminLoginRequest) (*models.AdminLoginResponse, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, req models.ReconcileRequest) (*models.ReconcileReport, error)
	Discrepancies(ctx context.Context, status string, limit int) ([]models.Discrepancy, error)
	Resolve(ctx context.Context, id string) error
}

type orphanSweeper interface {
	SweepOrphans(ctx context.Context) (int, error)
}

type metricsSnapshotter interface {
	Snapshot() models.SystemMetrics
}

// AdminHandler serves operator endpoints.
type AdminHandler struct {
	auth      adminAuthenticator
	reconcile reconciler
	sweeper   orphanSweeper
	metrics   metricsSnapshotter
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(auth adminAuthenticator, reconcile reconciler, sweeper orphanSweeper, metrics metricsSnapshotter) *AdminHandler {
	return &AdminHandler{auth: auth, reconcile: reconcile, sweeper: sweeper, metrics: metrics}
}

// Login godoc
// @Summary Issue an operator token
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.AdminLoginRequest true "Credentials"
// @Failure 401 {object} response.ErrorEnvelope
// @Router /admin/login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	var req models.AdminLoginRequest
	if !bindJSON(c, &req, "invalid login payload") {
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Reconcile godoc
// @Summary Compare chain tokens against stored notices
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ReconcileRequest true "Token or block range"
// @Router /admin/reconcile [post]
func (h *AdminHandler) Reconcile(c *gin.Context) {
	var req models.ReconcileRequest
	if !bindJSON(c, &req, "invalid reconcile payload") {
		return
	}
	report, err := h.reconcile.Reconcile(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Discrepancies godoc
// @Summary Recorded reconciliation findings
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "open or resolved"
// @Param limit query int false "Maximum rows"
// @Router /admin/discrepancies [get]
func (h *AdminHandler) Discrepancies(c *gin.Context) {
	status := c.DefaultQuery("status", string(models.DiscrepancyOpen))
	items, err := h.reconcile.Discrepancies(c.Request.Context(), status, parseLimit(c, 100, 1000))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"discrepancies": items, "total": len(items)})
}

// Resolve godoc
// @Summary Close a finding
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "Discrepancy id"
// @Router /admin/discrepancies/{id}/resolve [post]
func (h *AdminHandler) Resolve(c *gin.Context) {
	if err := h.reconcile.Resolve(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SweepOrphans godoc
// @Summary Remove uploads never attached to a notice
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Router /admin/orphans/sweep [post]
func (h *AdminHandler) SweepOrphans(c *gin.Context) {
	removed, err := h.sweeper.SweepOrphans(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": removed})
}

// Stats godoc
// @Summary Operational counters
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.SystemMetrics
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot())
}
