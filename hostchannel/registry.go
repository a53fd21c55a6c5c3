package hostchannel

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MethodFunc handles one method call from a host. args holds the raw
// "arguments" value and is empty when the call had none. The returned
// value is sent back as the result.
type MethodFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Registry maps method names to handlers. It is safe for concurrent use.
type Registry struct {
	handlers map[string]MethodFunc
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]MethodFunc),
	}
}

// Handle registers fn for method.
// Returns an error if a handler for the same method is already registered.
func (r *Registry) Handle(method string, fn MethodFunc) error {
	if fn == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if method == "" {
		return fmt.Errorf("method name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[method]; exists {
		return fmt.Errorf("handler for method '%s' already registered", method)
	}
	r.handlers[method] = fn
	return nil
}

// Get retrieves the handler for method.
func (r *Registry) Get(method string) (MethodFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.handlers[method]
	return fn, ok
}

// Has checks if a handler exists for method.
func (r *Registry) Has(method string) bool {
	_, ok := r.Get(method)
	return ok
}

// Methods returns all registered method names, sorted.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.handlers))
	for m := range r.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Dispatch runs call against the registry and builds the reply.
func (r *Registry) Dispatch(ctx context.Context, call Call) Message {
	fn, ok := r.Get(call.Method)
	if !ok {
		return Message{ID: call.ID, Type: TypeNotImplemented, Method: call.Method}
	}

	result, err := fn(ctx, call.Arguments)
	if err != nil {
		return Message{
			ID:      call.ID,
			Type:    TypeError,
			Method:  call.Method,
			Code:    ErrorCode(err),
			Message: err.Error(),
		}
	}
	return Message{ID: call.ID, Type: TypeResult, Method: call.Method, Result: result}
}
