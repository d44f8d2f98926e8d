// Package navigation tracks which sidebar destination is active for the
// current route.
//
// The first entry, in display order, whose target path occurs anywhere in
// the current path wins. There is no longest-prefix matching, so an entry
// such as "/dashboard" must be listed after the entries nested below it.
package navigation

import (
	"errors"
	"strings"
)

// ErrUnknownEntry is returned when a selection names no configured entry
var ErrUnknownEntry = errors.New("navigation entry not found")

// Entry is one sidebar destination
type Entry struct {
	Title      string `json:"title"`
	TargetPath string `json:"target_path"`
	Icon       string `json:"icon"`
}

// Menu is the immutable, ordered list of entries defined at startup
type Menu struct {
	entries []Entry
}

// NewMenu copies entries into a menu; later changes to the slice are not seen
func NewMenu(entries []Entry) *Menu {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Menu{entries: cp}
}

// Entries returns a copy of the entries in display order
func (m *Menu) Entries() []Entry {
	cp := make([]Entry, len(m.entries))
	copy(cp, m.entries)
	return cp
}

// Len returns the number of entries
func (m *Menu) Len() int {
	return len(m.entries)
}

// Match returns the active entry for path
func (m *Menu) Match(path string) (Entry, bool) {
	return Match(m.entries, path)
}

// Lookup finds the entry with the given target path
func (m *Menu) Lookup(targetPath string) (Entry, error) {
	for _, e := range m.entries {
		if e.TargetPath == targetPath {
			return e, nil
		}
	}
	return Entry{}, ErrUnknownEntry
}

// Match returns the first entry in list order whose target path is a
// substring of path. An empty path has no active entry.
func Match(entries []Entry, path string) (Entry, bool) {
	if path == "" {
		return Entry{}, false
	}
	for _, e := range entries {
		if strings.Contains(path, e.TargetPath) {
			return e, true
		}
	}
	return Entry{}, false
}

// DefaultEntries is the sidebar of the warehouse dashboard
func DefaultEntries() []Entry {
	return []Entry{
		{Title: "Invoices", TargetPath: "/dashboard/invoices", Icon: "receipt"},
		{Title: "Imports", TargetPath: "/dashboard/imports", Icon: "truck"},
		{Title: "Inventory", TargetPath: "/dashboard/inventory", Icon: "boxes"},
		{Title: "Suppliers", TargetPath: "/dashboard/suppliers", Icon: "factory"},
		{Title: "Customers", TargetPath: "/dashboard/customers", Icon: "users"},
		{Title: "Users", TargetPath: "/dashboard/users", Icon: "user-cog"},
		{Title: "Expense reports", TargetPath: "/dashboard/expenses", Icon: "wallet"},
		{Title: "Overview", TargetPath: "/dashboard", Icon: "gauge"},
	}
}
