package vm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tolelom/propchain/core"
)

// Handler is the function signature every transaction module must implement.
type Handler func(ctx *Context, payload json.RawMessage) error

// Hook runs at the start of every block, before its transactions.
type Hook func(ctx *Context) error

// Registry maps TxTypes to Handlers. Thread-safe for concurrent registration.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.TxType]Handler
	hooks    []namedHook
}

type namedHook struct {
	name string
	fn   Hook
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[core.TxType]Handler)}
}

// Register associates typ with h. Panics on duplicate registration.
func (r *Registry) Register(typ core.TxType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[typ]; exists {
		panic(fmt.Sprintf("vm: handler already registered for TxType %q", typ))
	}
	r.handlers[typ] = h
}

// RegisterHook appends a block-start hook. Hooks run in registration order.
func (r *Registry) RegisterHook(name string, h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, namedHook{name: name, fn: h})
}

// Execute dispatches payload to the handler registered for typ.
func (r *Registry) Execute(typ core.TxType, ctx *Context, payload json.RawMessage) error {
	r.mu.RLock()
	h, ok := r.handlers[typ]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("vm: no handler registered for TxType %q", typ)
	}
	return h(ctx, payload)
}

// Has reports whether typ has a handler.
func (r *Registry) Has(typ core.TxType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[typ]
	return ok
}

func (r *Registry) blockHooks() []namedHook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]namedHook(nil), r.hooks...)
}

// globalRegistry is the package-level singleton that modules register into.
var globalRegistry = NewRegistry()

// Register adds a handler to the global registry.
// Module init() functions call this to self-register.
func Register(typ core.TxType, h Handler) {
	globalRegistry.Register(typ, h)
}

// RegisterHook adds a block-start hook to the global registry.
func RegisterHook(name string, h Hook) {
	globalRegistry.RegisterHook(name, h)
}

// Known reports whether a handler exists for typ in the global registry.
func Known(typ core.TxType) bool {
	return globalRegistry.Has(typ)
}
