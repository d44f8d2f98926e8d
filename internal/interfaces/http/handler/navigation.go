package handler

import (
	"errors"

	"github.com/erp/dashboard/internal/domain/navigation"
	"github.com/gin-gonic/gin"
)

// NavigationItem is a sidebar entry with its highlight
type NavigationItem struct {
	navigation.Entry
	Active  bool `json:"active"`
	Pending bool `json:"pending"`
}

// NavigationResponse is the sidebar of a client
type NavigationResponse struct {
	Path    string           `json:"path"`
	Entries []NavigationItem `json:"entries"`
}

// SelectRequest names the sidebar entry a user clicked
type SelectRequest struct {
	TargetPath string `json:"target_path" binding:"required,startswith=/,max=2048"`
}

// NavigationHandler exposes the sidebar tracker of a client
type NavigationHandler struct {
	BaseHandler
}

// NewNavigationHandler creates a navigation handler
func NewNavigationHandler() *NavigationHandler {
	return &NavigationHandler{}
}

func navigationResponse(menu *navigation.Menu, state navigation.ActiveState) NavigationResponse {
	entries := menu.Entries()
	items := make([]NavigationItem, len(entries))
	for i, e := range entries {
		active := state.Entry != nil && state.Entry.TargetPath == e.TargetPath
		items[i] = NavigationItem{Entry: e, Active: active, Pending: active && state.Pending}
	}
	return NavigationResponse{Path: state.Path, Entries: items}
}

// List returns the sidebar entries. A path query confirms the route the
// view is on before the highlight is derived.
func (h *NavigationHandler) List(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}
	tracker := client.Tracker()

	state := tracker.State()
	if path, ok := c.GetQuery("path"); ok {
		state = tracker.Confirm(path)
	}
	h.Success(c, navigationResponse(tracker.Menu(), state))
}

// Select marks an entry as active and requests the route change
func (h *NavigationHandler) Select(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}

	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	tracker := client.Tracker()
	if _, err := tracker.Select(req.TargetPath); err != nil {
		if errors.Is(err, navigation.ErrUnknownEntry) {
			h.NotFound(c, "Navigation entry not found")
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, navigationResponse(tracker.Menu(), tracker.State()))
}
