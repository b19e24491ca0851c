package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PageHandler serves the HTML entry page. The template itself is embedded
// into the binary and registered on the gin engine at server construction,
// so this handler only triggers the render.
type PageHandler struct{}

// NewPageHandler creates a new PageHandler.
func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

// Index renders the upload form page.
// Route: GET /
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{})
}
