package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/dashboard/internal/application/dashboard"
	"github.com/erp/dashboard/internal/domain/identity"
	"github.com/erp/dashboard/internal/domain/listing"
	"github.com/erp/dashboard/internal/domain/navigation"
	"github.com/erp/dashboard/internal/domain/session"
	"github.com/erp/dashboard/internal/domain/viewport"
	"github.com/erp/dashboard/internal/infrastructure/telemetry"
	"github.com/erp/dashboard/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// Page templates
const (
	templateLoading   = "loading.html"
	templateLogin     = "login.html"
	templateDashboard = "dashboard.html"
)

// Login page error messages keyed by the error query value
var loginErrors = map[string]string{
	"invalid":  "Invalid username or password.",
	"locked":   "This account is locked. Please try again later.",
	"disabled": "This account has been deactivated.",
	"limited":  "Too many attempts. Please wait a moment.",
	"failed":   "Sign in failed. Please try again.",
}

// SectionSource loads the rows of a dashboard section
type SectionSource interface {
	Fetch(ctx context.Context, section listing.Section, token string) listing.Listing
}

// sidebarItem is a navigation entry with its highlight
type sidebarItem struct {
	navigation.Entry
	Active  bool
	Pending bool
}

// pageView is the data every page template receives
type pageView struct {
	AppName  string
	Title    string
	Path     string
	Loading  bool
	Identity *identity.Identity
	Tier     viewport.DeviceTier
	Compact  bool
	Sidebar  []sidebarItem
	Sections []listing.Section
	Listing  *listing.Listing
	Error    string
}

// PageHandler renders the page shells behind the page guard
type PageHandler struct {
	BaseHandler
	appName string
	catalog *listing.Catalog
	source  SectionSource
}

// NewPageHandler creates a page handler. source may be nil, in which case
// sections render without rows.
func NewPageHandler(appName string, catalog *listing.Catalog, source SectionSource) *PageHandler {
	if catalog == nil {
		catalog = listing.NewCatalog(listing.DefaultSections())
	}
	return &PageHandler{appName: appName, catalog: catalog, source: source}
}

// view builds the common page data and confirms the route with the tracker
func (h *PageHandler) view(c *gin.Context, client *dashboard.Client, title string) pageView {
	path := c.Request.URL.Path
	s, _ := middleware.GetSession(c)
	tier := viewport.TierFor(client.Viewport().Width())

	state := client.Tracker().Confirm(path)
	entries := client.Tracker().Menu().Entries()
	sidebar := make([]sidebarItem, len(entries))
	for i, e := range entries {
		active := state.Entry != nil && state.Entry.TargetPath == e.TargetPath
		sidebar[i] = sidebarItem{Entry: e, Active: active, Pending: active && state.Pending}
	}

	return pageView{
		AppName:  h.appName,
		Title:    title,
		Path:     path,
		Loading:  s.Loading,
		Identity: s.Identity,
		Tier:     tier,
		Compact:  tier.Compact(),
		Sidebar:  sidebar,
	}
}

// renderLoading answers a page whose session has not resolved yet. The
// placeholder reloads itself once the live channel reports the session.
func (h *PageHandler) renderLoading(c *gin.Context) bool {
	d, ok := middleware.GetDecision(c)
	if !ok || d.Action != session.ActionLoading {
		return false
	}
	client, ok := h.client(c)
	if !ok {
		return true
	}
	c.HTML(http.StatusOK, templateLoading, h.view(c, client, ""))
	return true
}

// Home answers the root route. Resolved sessions are redirected by the
// guard before reaching it.
func (h *PageHandler) Home(c *gin.Context) {
	if h.renderLoading(c) {
		return
	}
	client, ok := h.client(c)
	if !ok {
		return
	}
	c.Redirect(http.StatusFound, client.Routes().Login)
}

// Login renders the login form
func (h *PageHandler) Login(c *gin.Context) {
	if h.renderLoading(c) {
		return
	}
	client, ok := h.client(c)
	if !ok {
		return
	}
	v := h.view(c, client, "Sign in")
	v.Error = loginErrors[c.Query("error")]
	c.HTML(http.StatusOK, templateLogin, v)
}

// Overview renders the dashboard landing page
func (h *PageHandler) Overview(c *gin.Context) {
	if h.renderLoading(c) {
		return
	}
	client, ok := h.client(c)
	if !ok {
		return
	}
	v := h.view(c, client, "Overview")
	v.Sections = h.catalog.Sections()
	c.HTML(http.StatusOK, templateDashboard, v)
}

// Section renders one dashboard section with its rows
func (h *PageHandler) Section(c *gin.Context) {
	if h.renderLoading(c) {
		return
	}
	client, ok := h.client(c)
	if !ok {
		return
	}

	section, err := h.catalog.Get(c.Param("section"))
	if err != nil {
		v := h.view(c, client, "Not found")
		v.Error = "This section does not exist."
		v.Sections = h.catalog.Sections()
		status := http.StatusInternalServerError
		if errors.Is(err, listing.ErrUnknownSection) {
			status = http.StatusNotFound
		}
		c.HTML(status, templateDashboard, v)
		return
	}

	ctx, span := telemetry.StartSpan(c.Request.Context(), "page.section")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSection, section.Key)

	v := h.view(c, client, section.Title)
	l := h.load(ctx, section, client.Credential())
	v.Listing = &l
	c.HTML(http.StatusOK, templateDashboard, v)
}

func (h *PageHandler) load(ctx context.Context, section listing.Section, token string) listing.Listing {
	if h.source == nil {
		return section.Render(nil)
	}
	return h.source.Fetch(ctx, section, token)
}
