// Package dashboard keeps the server-side view context of every browser
// using the dashboard: its session, sidebar state and viewport.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/erp/dashboard/internal/domain/identity"
	"github.com/erp/dashboard/internal/domain/navigation"
	"github.com/erp/dashboard/internal/domain/session"
	"github.com/erp/dashboard/internal/domain/shared"
	"github.com/erp/dashboard/internal/domain/viewport"
)

// Client is the view context of one browser
type Client struct {
	id      string
	store   *session.Store
	tracker *navigation.Tracker
	widths  *viewport.WidthSource
	hub     *Hub
	routes  session.Routes
	hook    session.DecisionHook
	now     func() time.Time

	// transition serializes credential changes with the session updates
	// they cause, so a late resolution never overwrites a newer state
	transition sync.Mutex

	mu           sync.Mutex
	credential   string
	generation   uint64
	resolvedAt   time.Time
	revalidating bool
	lastSeen     time.Time
	views        int
}

// ID returns the client id
func (c *Client) ID() string {
	return c.id
}

// Session returns the read-only side of the client's session
func (c *Client) Session() session.View {
	return c.store
}

// Tracker returns the sidebar tracker
func (c *Client) Tracker() *navigation.Tracker {
	return c.tracker
}

// Viewport returns the width source fed by viewport reports
func (c *Client) Viewport() *viewport.WidthSource {
	return c.widths
}

// Hub returns the event fan-out of the client's open views
func (c *Client) Hub() *Hub {
	return c.hub
}

// Guard creates a guard for one view of this client. Redirects go to
// navigator, or to every open view of the client when navigator is nil.
func (c *Client) Guard(navigator shared.Navigator) *session.Guard {
	if navigator == nil {
		navigator = c.hub
	}
	return session.NewGuard(c.routes, navigator, c.hook)
}

// Routes returns the routes the client's guards decide between
func (c *Client) Routes() session.Routes {
	return c.routes
}

// Credential returns the stored credential the session was resolved from
func (c *Client) Credential() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential
}

// SignIn stores a freshly issued credential and resolves the session to id
func (c *Client) SignIn(id *identity.Identity, credential string) {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	c.credential = credential
	c.generation++
	c.resolvedAt = c.now()
	c.revalidating = false
	c.mu.Unlock()
	c.store.Resolve(id)
}

// Logout ends the session. The credential is forgotten even when revoking
// it fails.
func (c *Client) Logout(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	err := c.store.Logout(ctx)
	c.mu.Lock()
	c.credential = ""
	c.generation++
	c.resolvedAt = time.Time{}
	c.revalidating = false
	c.mu.Unlock()
	return err
}

// bind makes credential the one the session is resolved from. When it
// differs from the stored one the session is reset: to anonymous without a
// credential, otherwise back to loading until the returned generation is
// resolved.
func (c *Client) bind(credential string) (generation uint64, changed bool) {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	if c.credential == credential {
		generation = c.generation
		c.mu.Unlock()
		return generation, false
	}
	c.credential = credential
	c.generation++
	c.resolvedAt = time.Time{}
	c.revalidating = false
	generation = c.generation
	c.mu.Unlock()

	if credential == "" {
		c.store.Resolve(nil)
	} else {
		c.store.Reload()
	}
	return generation, true
}

// settle applies the identity resolved for generation. It reports false and
// leaves the session alone when the credential changed in the meantime.
func (c *Client) settle(generation uint64, id *identity.Identity) bool {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.Lock()
	current := c.generation == generation
	if current {
		c.resolvedAt = c.now()
		c.revalidating = false
	}
	c.mu.Unlock()
	if !current {
		return false
	}
	c.store.Resolve(id)
	return true
}

// claimRevalidation reports whether a resolved credential is older than
// every and, if so, marks a revalidation as running
func (c *Client) claimRevalidation(every time.Duration) (credential string, generation uint64, ok bool) {
	if every <= 0 {
		return "", 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.credential == "" || c.revalidating || c.resolvedAt.IsZero() ||
		c.now().Sub(c.resolvedAt) < every {
		return "", 0, false
	}
	c.revalidating = true
	return c.credential, c.generation, true
}

// WaitResolved waits up to grace for the session to leave the loading
// state and returns the session at that point. It never changes the session.
func (c *Client) WaitResolved(ctx context.Context, grace time.Duration) session.Session {
	if s := c.store.Current(); !s.Loading || grace <= 0 {
		return s
	}

	resolved := make(chan struct{})
	var once sync.Once
	unsubscribe := c.store.Subscribe(func(s session.Session) {
		if !s.Loading {
			once.Do(func() { close(resolved) })
		}
	})
	defer unsubscribe()

	// Resolution may have landed before the subscription
	if s := c.store.Current(); !s.Loading {
		return s
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-resolved:
	case <-timer.C:
	case <-ctx.Done():
	}
	return c.store.Current()
}

// OpenView marks a live view as mounted; the client is not evicted while
// views are open
func (c *Client) OpenView() {
	c.mu.Lock()
	c.views++
	c.mu.Unlock()
}

// CloseView marks a live view as torn down
func (c *Client) CloseView(now time.Time) {
	c.mu.Lock()
	if c.views > 0 {
		c.views--
	}
	c.lastSeen = now
	c.mu.Unlock()
}

// Views returns the number of open live views
func (c *Client) Views() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.views
}

// Touch records activity
func (c *Client) Touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

// LastSeen returns the time of the last activity
func (c *Client) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Client) idle(now time.Time, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.views == 0 && now.Sub(c.lastSeen) > ttl
}
