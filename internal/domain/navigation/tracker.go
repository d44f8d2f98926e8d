package navigation

import (
	"sync"

	"github.com/erp/dashboard/internal/domain/shared"
)

// ActiveState is the derived highlight of the sidebar
type ActiveState struct {
	Entry   *Entry `json:"entry,omitempty"`
	Path    string `json:"path"`
	Pending bool   `json:"pending"`
}

// Tracker holds the active-entry state of one view.
//
// A user selection is applied in two steps. Select marks the entry at once
// and asks the navigator for the route change; Confirm records the path the
// router actually reached and drops the optimistic marker, so the final
// highlight is always derived from the confirmed path.
type Tracker struct {
	menu      *Menu
	navigator shared.Navigator

	mu            sync.Mutex
	confirmedPath string
	pending       *Entry
	listeners     map[uint64]func(ActiveState)
	nextID        uint64
}

// NewTracker creates a tracker; a nil navigator discards pushes
func NewTracker(menu *Menu, navigator shared.Navigator) *Tracker {
	if navigator == nil {
		navigator = shared.NopNavigator
	}
	return &Tracker{
		menu:      menu,
		navigator: navigator,
		listeners: make(map[uint64]func(ActiveState)),
	}
}

// Menu returns the tracked menu
func (t *Tracker) Menu() *Menu {
	return t.menu
}

// Select optimistically activates the entry for targetPath and requests the
// route change
func (t *Tracker) Select(targetPath string) (Entry, error) {
	entry, err := t.menu.Lookup(targetPath)
	if err != nil {
		return Entry{}, err
	}

	t.mu.Lock()
	t.pending = &entry
	state := t.stateLocked()
	fns := t.listenersLocked()
	t.mu.Unlock()

	notify(fns, state)
	t.navigator.Push(entry.TargetPath)
	return entry, nil
}

// Confirm records the route that was reached and discards any optimistic
// selection
func (t *Tracker) Confirm(path string) ActiveState {
	t.mu.Lock()
	changed := t.pending != nil || t.confirmedPath != path
	t.confirmedPath = path
	t.pending = nil
	state := t.stateLocked()
	fns := t.listenersLocked()
	t.mu.Unlock()

	if changed {
		notify(fns, state)
	}
	return state
}

// Active returns the highlighted entry, if any
func (t *Tracker) Active() (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state := t.stateLocked()
	if state.Entry == nil {
		return Entry{}, false
	}
	return *state.Entry, true
}

// State returns the current active state
func (t *Tracker) State() ActiveState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// Subscribe registers fn for active-state changes
func (t *Tracker) Subscribe(fn func(ActiveState)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

func (t *Tracker) stateLocked() ActiveState {
	if t.pending != nil {
		e := *t.pending
		return ActiveState{Entry: &e, Path: t.confirmedPath, Pending: true}
	}
	state := ActiveState{Path: t.confirmedPath}
	if e, ok := t.menu.Match(t.confirmedPath); ok {
		state.Entry = &e
	}
	return state
}

func (t *Tracker) listenersLocked() []func(ActiveState) {
	fns := make([]func(ActiveState), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(ActiveState), state ActiveState) {
	for _, fn := range fns {
		fn(state)
	}
}
