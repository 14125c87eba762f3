// Package substitute lets production code swap real behavior for the test
// doubles of the step currently running.
package substitute

import "github.com/ShayCichocki/steptest/pkg/models"

// Context routes substitution points to the active step instance.
// A nil *Context behaves like a disabled one.
type Context struct {
	enabled bool
	active  any
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

var _ models.Injector = (*Context)(nil)

// New creates a context. A disabled context always runs the fallback.
func New(enabled bool) *Context {
	return &Context{
		enabled:  enabled,
		debugLog: func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (c *Context) SetDebugLog(fn func(format string, args ...interface{})) {
	if c != nil && fn != nil {
		c.debugLog = fn
	}
}

// SetEnabled switches substitution on or off.
func (c *Context) SetEnabled(enabled bool) {
	if c != nil {
		c.enabled = enabled
	}
}

// Enabled reports whether substitution is on.
func (c *Context) Enabled() bool {
	return c != nil && c.enabled
}

// SetActive sets the instance consulted by Inject. nil clears it.
func (c *Context) SetActive(instance any) {
	if c != nil {
		c.active = instance
	}
}

// Active returns the instance consulted by Inject.
func (c *Context) Active() any {
	if c == nil {
		return nil
	}
	return c.active
}

// Inject runs the active instance's capability called name when substitution
// is enabled and the instance has one, otherwise fallback(args...).
func (c *Context) Inject(name string, fallback models.Action, args ...any) (any, error) {
	if c.Enabled() {
		if provider, ok := c.active.(models.CapabilityProvider); ok {
			res, found, err := provider.TryInvoke(name, args...)
			if found {
				c.debugLog("[substitute.Inject] %s substituted", name)
				return res, err
			}
		}
	}
	if fallback == nil {
		return nil, nil
	}
	return fallback(args...)
}

// Override is Inject under the name newer call sites use.
func (c *Context) Override(name string, fallback models.Action, args ...any) (any, error) {
	return c.Inject(name, fallback, args...)
}

// ReturnValue returns its single argument unchanged. It is the usual
// fallback for substitution points that only carry a value.
func (c *Context) ReturnValue(args ...any) (any, error) {
	return ReturnValue(args...)
}

// ReturnValue returns nil for no arguments, the argument for one and the
// slice for several.
func ReturnValue(args ...any) (any, error) {
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		return args[0], nil
	default:
		return args, nil
	}
}
