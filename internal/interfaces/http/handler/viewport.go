package handler

import (
	"github.com/erp/dashboard/internal/domain/viewport"
	"github.com/erp/dashboard/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ViewportRequest reports the width of the browser viewport
type ViewportRequest struct {
	Width *int `json:"width" binding:"required,min=0,max=100000"`
}

// ViewportResponse is the classification of a reported width
type ViewportResponse struct {
	Measured bool                `json:"measured"`
	Width    int                 `json:"width"`
	Tier     viewport.DeviceTier `json:"tier"`
	Compact  bool                `json:"compact"`
	Mobile   bool                `json:"mobile"`
}

// ViewportHandler records viewport measurements
type ViewportHandler struct {
	BaseHandler
	cookies middleware.Cookies
}

// NewViewportHandler creates a viewport handler
func NewViewportHandler(cookies middleware.Cookies) *ViewportHandler {
	return &ViewportHandler{cookies: cookies}
}

// Report records the width, notifying the client's live views, and keeps it
// in a cookie for the next full page load
func (h *ViewportHandler) Report(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}

	var req ViewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	width := *req.Width

	client.Viewport().Set(width)
	h.cookies.SetViewport(c, width)
	h.Success(c, viewportResponse(width, true))
}

// Current returns the tier the client's pages are laid out for
func (h *ViewportHandler) Current(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	h.Success(c, viewportResponse(client.Viewport().Width()))
}

func viewportResponse(width int, measured bool) ViewportResponse {
	tier := viewport.TierFor(width, measured)
	return ViewportResponse{
		Measured: measured,
		Width:    width,
		Tier:     tier,
		Compact:  tier.Compact(),
		Mobile:   measured && viewport.IsMobile(width),
	}
}
