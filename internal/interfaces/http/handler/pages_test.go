package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/erp/dashboard/internal/domain/listing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu     sync.Mutex
	rows   []listing.Row
	tokens []string
}

func (s *stubSource) Fetch(_ context.Context, section listing.Section, token string) listing.Listing {
	s.mu.Lock()
	s.tokens = append(s.tokens, token)
	s.mu.Unlock()
	return section.Render(s.rows)
}

func TestPages_AnonymousRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.pages(NewPageHandler("Kho", nil, nil))

	for _, path := range []string{"/", "/dashboard", "/dashboard/invoices"} {
		w := env.serve(httptest.NewRequest(http.MethodGet, path, nil), "", "")
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/login", w.Header().Get("Location"), path)
	}
}

func TestPages_LoginForm(t *testing.T) {
	env := newTestEnv(t)
	env.pages(NewPageHandler("Kho", nil, nil))

	w := env.serve(httptest.NewRequest(http.MethodGet, "/login?error=invalid", nil), "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `action="/login"`)
	assert.Contains(t, body, "Invalid username or password.")
	assert.Contains(t, body, `data-tier="desktop"`)
}

func TestPages_AuthenticatedLoginRedirectsToLanding(t *testing.T) {
	env := newTestEnv(t)
	env.pages(NewPageHandler("Kho", nil, nil))
	cid, token := env.signedIn(t)

	for _, path := range []string{"/", "/login"} {
		w := env.serve(httptest.NewRequest(http.MethodGet, path, nil), cid, token)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/dashboard", w.Header().Get("Location"), path)
	}
}

func TestPages_SectionRendersFormattedRows(t *testing.T) {
	env := newTestEnv(t)
	source := &stubSource{rows: []listing.Row{
		{"order_number": "SO-0001", "customer_name": "Cửa hàng An", "item_count": 1200, "total_amount": 1500000, "status": "paid"},
	}}
	env.pages(NewPageHandler("Kho", nil, source))
	cid, token := env.signedIn(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/invoices", nil)
	req.Header.Set("Sec-CH-Viewport-Width", "390")
	w := env.serve(req, cid, token)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "<td>1,500,000 VNĐ</td>")
	assert.Contains(t, body, "<td>1,200</td>")
	assert.Contains(t, body, "Cửa hàng An")
	assert.Contains(t, body, "layout--mobile")
	assert.Contains(t, body, "sidebar--compact")
	assert.Equal(t, []string{token}, source.tokens)

	// The sidebar highlights the entry matching the route
	active := strings.Count(body, "is-active")
	assert.Equal(t, 1, active)
	assert.Contains(t, body, `data-nav="/dashboard/invoices" class="sidebar__link is-active"`)

	state := env.client(t, cid).Tracker().State()
	require.NotNil(t, state.Entry)
	assert.Equal(t, "/dashboard/invoices", state.Entry.TargetPath)
}

func TestPages_UnknownSection(t *testing.T) {
	env := newTestEnv(t)
	env.pages(NewPageHandler("Kho", nil, nil))
	cid, token := env.signedIn(t)

	w := env.serve(httptest.NewRequest(http.MethodGet, "/dashboard/payroll", nil), cid, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "This section does not exist.")
}

func TestPages_OverviewListsSections(t *testing.T) {
	env := newTestEnv(t)
	env.pages(NewPageHandler("Kho", nil, nil))
	cid, token := env.signedIn(t)

	w := env.serve(httptest.NewRequest(http.MethodGet, "/dashboard", nil), cid, token)
	require.Equal(t, http.StatusOK, w.Code)
	for _, s := range listing.DefaultSections() {
		assert.Contains(t, w.Body.String(), `href="/dashboard/`+s.Key+`"`)
	}
	assert.Contains(t, w.Body.String(), `action="/logout"`)
}

func TestPages_SectionWithoutSource(t *testing.T) {
	env := newTestEnv(t)
	env.pages(NewPageHandler("Kho", nil, nil))
	cid, token := env.signedIn(t)

	w := env.serve(httptest.NewRequest(http.MethodGet, "/dashboard/expenses", nil), cid, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No records")
}
