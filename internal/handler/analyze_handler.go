package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harshauii/medscan/internal/service"
)

// AnalyzeHandler handles the image upload + query endpoint. It owns the
// multipart intake and the mapping from pipeline errors to HTTP statuses;
// everything else lives in the service.
type AnalyzeHandler struct {
	analysis *service.AnalysisService
	logger   *zap.Logger
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(analysis *service.AnalysisService, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		analysis: analysis,
		logger:   logger,
	}
}

// UploadAndQuery processes a multipart form with an `image` file and a
// `query` string, returning the analysis and recommendation bundle.
// Route: POST /upload_and_query
//
// Status mapping: 400 bad upload, 502 vision upstream failure, 500 anything
// else. Failure detail is logged server-side; only generic messages cross
// the response boundary.
func (h *AnalyzeHandler) UploadAndQuery(c *gin.Context) {
	query := strings.TrimSpace(c.PostForm("query"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("opening uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("reading uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")

	result, err := h.analysis.Analyze(c.Request.Context(), data, contentType, query)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)

	case errors.Is(err, service.ErrInvalidImage):
		h.logger.Warn("rejected upload",
			zap.String("content_type", contentType),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file type or corrupt image"})

	case errors.Is(err, service.ErrUpstream):
		h.logger.Error("vision upstream failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "image analysis service unavailable"})

	default:
		h.logger.Error("analysis pipeline failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing error"})
	}
}
