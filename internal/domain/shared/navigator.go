package shared

// Navigator is the routing collaborator's imperative push operation.
// Push is fire-and-forget: callers never inspect an outcome.
type Navigator interface {
	// Push requests a route change to path
	Push(path string)
}

// NavigatorFunc adapts a function to the Navigator interface
type NavigatorFunc func(path string)

// Push implements Navigator
func (f NavigatorFunc) Push(path string) {
	f(path)
}

// NopNavigator discards every push
var NopNavigator Navigator = NavigatorFunc(func(string) {})
