package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harshauii/medscan/internal/model"
	"github.com/harshauii/medscan/internal/storage"
)

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	analyses storage.AnalysisRepository
	calls    storage.APICallRepository
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(analyses storage.AnalysisRepository, calls storage.APICallRepository, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		analyses: analyses,
		calls:    calls,
		logger:   logger,
	}
}

// Stats returns request counts and upstream call statistics.
// Route: GET /api/v1/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := h.analyses.Count(ctx)
	if err != nil {
		h.logger.Error("counting analyses", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	byStatus := gin.H{}
	for _, status := range []model.AnalysisStatus{model.StatusOK, model.StatusDegraded, model.StatusFailed} {
		count, err := h.analyses.CountByStatus(ctx, status)
		if err != nil {
			h.logger.Error("counting analyses by status",
				zap.String("status", string(status)),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		byStatus[string(status)] = count
	}

	byKind := gin.H{}
	for _, kind := range []model.APICallKind{model.CallVision, model.CallRecommend, model.CallDrugLabel} {
		count, err := h.calls.CountByKind(ctx, kind)
		if err != nil {
			h.logger.Error("counting api calls",
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		failed, err := h.calls.CountFailedByKind(ctx, kind)
		if err != nil {
			h.logger.Error("counting failed api calls",
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		byKind[string(kind)] = gin.H{"total": count, "failed": failed}
	}

	c.JSON(http.StatusOK, gin.H{
		"analyses": gin.H{
			"total":     total,
			"by_status": byStatus,
		},
		"api_calls": byKind,
	})
}
