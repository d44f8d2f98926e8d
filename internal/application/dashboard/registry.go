package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/erp/dashboard/internal/domain/identity"
	"github.com/erp/dashboard/internal/domain/navigation"
	"github.com/erp/dashboard/internal/domain/session"
	"github.com/erp/dashboard/internal/domain/viewport"
	"github.com/erp/dashboard/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver turns a stored credential into an identity; nil means anonymous
type Resolver interface {
	Resolve(ctx context.Context, credential string) *identity.Identity
}

// Revoker invalidates a credential on logout
type Revoker interface {
	Logout(ctx context.Context, credential string) error
}

// Observer receives registry and guard measurements
type Observer interface {
	ObserveDecision(action, route, target string, pushed bool)
	SetClients(n int)
}

// RegistryConfig configures a Registry
type RegistryConfig struct {
	Routes  session.Routes
	Menu    *navigation.Menu
	IdleTTL time.Duration
	// MaxClients caps the registry; the least recently seen client without
	// open views makes room for a new one. Zero means no cap.
	MaxClients int
	// Revalidate is how old a resolved credential may get before a request
	// resolves it again in the background. Zero disables revalidation.
	Revalidate time.Duration
}

// Registry holds one Client per browser
type Registry struct {
	cfg      RegistryConfig
	resolver Resolver
	revoker  Revoker
	observer Observer
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool

	resolving sync.WaitGroup
}

// NewRegistry creates an empty registry. revoker and observer may be nil.
func NewRegistry(cfg RegistryConfig, resolver Resolver, revoker Revoker, observer Observer, log *zap.Logger) *Registry {
	if cfg.Menu == nil {
		cfg.Menu = navigation.NewMenu(navigation.DefaultEntries())
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		cfg:      cfg,
		resolver: resolver,
		revoker:  revoker,
		observer: observer,
		logger:   log,
		now:      time.Now,
		clients:  make(map[string]*Client),
	}
}

// NewClientID returns a fresh client id
func NewClientID() string {
	return uuid.NewString()
}

// ValidClientID reports whether id has the shape of an issued client id
func ValidClientID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Acquire returns the client for clientID, creating it when unknown. The
// session follows the credential presented with the request: a new client
// starts in the loading state and resolves it in the background, and an
// existing client whose stored credential differs is reset and resolves the
// presented one instead. created reports whether a new client was made.
func (r *Registry) Acquire(ctx context.Context, clientID, credential string) (c *Client, created bool) {
	now := r.now()

	r.mu.Lock()
	if existing, ok := r.clients[clientID]; ok {
		r.mu.Unlock()
		existing.Touch(now)
		r.rebind(ctx, existing, credential)
		return existing, false
	}
	c = r.newClient(clientID, credential, now)
	var evicted *Client
	if !r.closed {
		if r.cfg.MaxClients > 0 && len(r.clients) >= r.cfg.MaxClients {
			evicted = r.evictOldestLocked()
		}
		r.clients[clientID] = c
	}
	n := len(r.clients)
	r.mu.Unlock()

	if evicted != nil {
		evicted.hub.Close()
		r.logger.Debug("Evicted oldest idle client to make room",
			zap.String("evicted_client_id", evicted.id),
			zap.Int("max_clients", r.cfg.MaxClients))
	}
	if r.observer != nil {
		r.observer.SetClients(n)
	}
	logger.With(ctx, r.logger).Debug("Client created",
		zap.String("client_id", clientID),
		zap.Bool("has_credential", credential != ""))

	r.resolve(ctx, c, credential, 0)
	return c, true
}

// rebind points an existing client at the presented credential, or
// revalidates the stored one once it is due
func (r *Registry) rebind(ctx context.Context, c *Client, credential string) {
	generation, changed := c.bind(credential)
	if changed {
		logger.With(ctx, r.logger).Debug("Client credential changed",
			zap.String("client_id", c.id),
			zap.Bool("has_credential", credential != ""))
		if credential != "" {
			r.resolve(ctx, c, credential, generation)
		}
		return
	}
	if stored, gen, due := c.claimRevalidation(r.cfg.Revalidate); due {
		r.resolve(ctx, c, stored, gen)
	}
}

// evictOldestLocked removes the least recently seen client without open
// views. It returns nil when every client has a view open.
func (r *Registry) evictOldestLocked() *Client {
	var (
		oldestID string
		oldest   *Client
		seen     time.Time
	)
	for id, c := range r.clients {
		if c.Views() > 0 {
			continue
		}
		if last := c.LastSeen(); oldest == nil || last.Before(seen) {
			oldestID, oldest, seen = id, c, last
		}
	}
	if oldest != nil {
		delete(r.clients, oldestID)
	}
	return oldest
}

// Get returns the client for clientID without creating one
func (r *Registry) Get(clientID string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	return c, ok
}

// Len returns the number of clients
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *Registry) newClient(id, credential string, now time.Time) *Client {
	hub := NewHub(r.logger.With(zap.String("client_id", id)))
	c := &Client{
		id:         id,
		now:        func() time.Time { return r.now() },
		tracker:    navigation.NewTracker(r.cfg.Menu, hub),
		widths:     viewport.NewWidthSource(),
		hub:        hub,
		routes:     r.cfg.Routes,
		credential: credential,
		lastSeen:   now,
	}
	c.store = session.NewStore(r.logoutHook(c))
	if r.observer != nil {
		c.hook = func(d session.Decision, pushed bool) {
			r.observer.ObserveDecision(string(d.Action), d.Route.String(), d.Target, pushed)
		}
	}
	return c
}

func (r *Registry) logoutHook(c *Client) session.LogoutHook {
	return func(ctx context.Context, _ *identity.Identity) error {
		if r.revoker == nil {
			return nil
		}
		return r.revoker.Logout(ctx, c.Credential())
	}
}

// resolve delivers the identity for credential to the client's session
// unless the credential changed in the meantime. The request may end before
// resolution does, so its values are kept but its cancellation is not.
func (r *Registry) resolve(ctx context.Context, c *Client, credential string, generation uint64) {
	if credential == "" || r.resolver == nil {
		c.settle(generation, nil)
		return
	}

	resolveCtx := context.WithoutCancel(ctx)
	r.resolving.Add(1)
	go func() {
		defer r.resolving.Done()
		id := r.resolver.Resolve(resolveCtx, credential)
		if !c.settle(generation, id) {
			logger.With(resolveCtx, r.logger).Debug("Discarded stale resolution",
				zap.String("client_id", c.id))
		}
	}()
}

// Sweep evicts clients without open views that have been idle longer than
// the configured TTL and returns how many were removed
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	var evicted []*Client
	for id, c := range r.clients {
		if c.idle(now, r.cfg.IdleTTL) {
			delete(r.clients, id)
			evicted = append(evicted, c)
		}
	}
	n := len(r.clients)
	r.mu.Unlock()

	for _, c := range evicted {
		c.hub.Close()
	}
	if len(evicted) > 0 {
		r.logger.Info("Evicted idle clients", zap.Int("evicted", len(evicted)), zap.Int("remaining", n))
	}
	if r.observer != nil {
		r.observer.SetClients(n)
	}
	return len(evicted)
}

// Run sweeps every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close ends every open view and stops accepting clients. Pending
// resolutions are awaited until ctx is done.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	clients := r.clients
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.hub.Close()
	}

	done := make(chan struct{})
	go func() {
		r.resolving.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
