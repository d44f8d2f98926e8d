package session

import (
	"strings"
	"sync"

	"github.com/erp/dashboard/internal/domain/shared"
	"github.com/google/uuid"
)

// RouteKind classifies a path for the guard
type RouteKind int

const (
	// RouteProtected requires an identity
	RouteProtected RouteKind = iota
	// RoutePublic renders regardless of the session
	RoutePublic
	// RouteLogin is the login route
	RouteLogin
	// RouteRoot is the home redirector
	RouteRoot
)

// String returns the kind name used in logs and metrics
func (k RouteKind) String() string {
	switch k {
	case RoutePublic:
		return "public"
	case RouteLogin:
		return "login"
	case RouteRoot:
		return "root"
	default:
		return "protected"
	}
}

// Routes names the routes the guard redirects between
type Routes struct {
	Login   string
	Root    string
	Landing string
	Public  []string
}

// DefaultRoutes returns the dashboard routes
func DefaultRoutes() Routes {
	return Routes{
		Login:   "/login",
		Root:    "/",
		Landing: "/dashboard",
	}
}

// Kind classifies path. Public entries match exactly or as a path prefix.
func (r Routes) Kind(path string) RouteKind {
	switch path {
	case r.Root, "":
		return RouteRoot
	case r.Login:
		return RouteLogin
	}
	for _, p := range r.Public {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return RoutePublic
		}
	}
	return RouteProtected
}

// Action is what a page does with a session
type Action string

const (
	ActionRender   Action = "render"
	ActionLoading  Action = "loading"
	ActionRedirect Action = "redirect"
)

// Decision is the guard outcome for one session and path
type Decision struct {
	Action Action    `json:"action"`
	Target string    `json:"target,omitempty"`
	Route  RouteKind `json:"-"`
}

// Decide is the pure guard rule.
//
// A loading session never redirects. An anonymous session is sent to login
// from protected routes and from the root. An authenticated session is sent
// to the landing route from login and from the root.
func Decide(s Session, path string, routes Routes) Decision {
	kind := routes.Kind(path)
	if s.Loading {
		return Decision{Action: ActionLoading, Route: kind}
	}

	switch kind {
	case RoutePublic:
		return Decision{Action: ActionRender, Route: kind}
	case RouteLogin:
		if s.Identity != nil {
			return Decision{Action: ActionRedirect, Target: routes.Landing, Route: kind}
		}
	case RouteRoot:
		if s.Identity != nil {
			return Decision{Action: ActionRedirect, Target: routes.Landing, Route: kind}
		}
		return Decision{Action: ActionRedirect, Target: routes.Login, Route: kind}
	case RouteProtected:
		if s.Identity == nil {
			return Decision{Action: ActionRedirect, Target: routes.Login, Route: kind}
		}
	}
	return Decision{Action: ActionRender, Route: kind}
}

// DecisionHook observes every evaluation; pushed reports whether a redirect
// was sent to the navigator
type DecisionHook func(d Decision, pushed bool)

type guardKey struct {
	path     string
	loading  bool
	identity uuid.UUID
	anon     bool
}

func keyOf(s Session, path string) guardKey {
	k := guardKey{path: path, loading: s.Loading, anon: s.Identity == nil}
	if s.Identity != nil {
		k.identity = s.Identity.ID
	}
	return k
}

// Guard applies Decide and requests redirects through a navigator.
// Re-evaluating an unchanged session and path requests no further redirect.
type Guard struct {
	routes    Routes
	navigator shared.Navigator
	hook      DecisionHook

	mu      sync.Mutex
	last    guardKey
	hasLast bool
}

// NewGuard creates a guard; a nil navigator discards pushes
func NewGuard(routes Routes, navigator shared.Navigator, hook DecisionHook) *Guard {
	if navigator == nil {
		navigator = shared.NopNavigator
	}
	return &Guard{routes: routes, navigator: navigator, hook: hook}
}

// Routes returns the guarded routes
func (g *Guard) Routes() Routes {
	return g.routes
}

// Evaluate decides for s on path and pushes a redirect once per state
func (g *Guard) Evaluate(s Session, path string) Decision {
	d := Decide(s, path, g.routes)
	key := keyOf(s, path)

	g.mu.Lock()
	repeated := g.hasLast && g.last == key
	g.last, g.hasLast = key, true
	g.mu.Unlock()

	pushed := d.Action == ActionRedirect && !repeated
	if pushed {
		g.navigator.Push(d.Target)
	}
	if g.hook != nil {
		g.hook(d, pushed)
	}
	return d
}

// Watch evaluates path now and on every session change of view.
// The returned function releases the subscription.
func (g *Guard) Watch(view View, path string) (unsubscribe func()) {
	unsubscribe = view.Subscribe(func(s Session) {
		g.Evaluate(s, path)
	})
	g.Evaluate(view.Current(), path)
	return unsubscribe
}
