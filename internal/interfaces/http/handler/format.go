package handler

import (
	"github.com/erp/dashboard/internal/domain/shared/valueobject"
	"github.com/gin-gonic/gin"
)

// FormatResponse is a value rendered for display
type FormatResponse struct {
	Input   *string `json:"input"`
	Display string  `json:"display"`
}

// FormatHandler exposes the display formatters
type FormatHandler struct {
	BaseHandler
}

// NewFormatHandler creates a format handler
func NewFormatHandler() *FormatHandler {
	return &FormatHandler{}
}

// formatQuery applies format to the named query parameter. A missing
// parameter is formatted as a nil input.
func (h *FormatHandler) formatQuery(c *gin.Context, name string, format func(any) string) {
	raw, ok := c.GetQuery(name)
	if !ok {
		h.Success(c, FormatResponse{Display: format(nil)})
		return
	}
	h.Success(c, FormatResponse{Input: &raw, Display: format(raw)})
}

// Currency formats an amount in đồng
func (h *FormatHandler) Currency(c *gin.Context) {
	h.formatQuery(c, "amount", valueobject.FormatCurrency)
}

// Quantity formats a stock quantity
func (h *FormatHandler) Quantity(c *gin.Context) {
	h.formatQuery(c, "quantity", valueobject.FormatQuantity)
}
