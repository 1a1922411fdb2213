// Package di provides a small service container used to wire modules together.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container.
type ServiceRegistry interface {
	// Get returns the service registered under name, resolving its factory
	// on first use. It panics if the name is unknown (a wiring bug).
	Get(name string) any
}

// Container registers services and factories.
type Container interface {
	ServiceRegistry

	// Register stores an already-constructed service.
	Register(name string, value any)

	// RegisterFactory stores a lazily-evaluated singleton factory.
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		values:    make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
	}
}

type container struct {
	mu        sync.Mutex
	values    map[string]any
	factories map[string]func(ServiceRegistry) any
}

func (c *container) Register(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = value
}

func (c *container) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

func (c *container) Get(name string) any {
	c.mu.Lock()
	if v, ok := c.values[name]; ok {
		c.mu.Unlock()
		return v
	}
	factory, ok := c.factories[name]
	c.mu.Unlock()

	if !ok {
		panic(fmt.Sprintf("di: service %q is not registered", name))
	}

	// Resolve outside the lock: factories may resolve other services.
	v := factory(c)

	c.mu.Lock()
	c.values[name] = v
	c.mu.Unlock()

	return v
}

// Token is a typed service identifier. Modules declare tokens in their di
// package so wiring stays type-safe across bounded contexts.
type Token[T any] struct {
	name string
}

// NewToken creates a typed token with a unique name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the token's registry name.
func (t Token[T]) Name() string { return t.name }

// RegisterToken registers a lazily-evaluated singleton under a typed token.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves the service registered under token. It panics on a
// missing registration or type mismatch (wiring bugs, not runtime errors).
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	v, ok := sr.Get(token.name).(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type %T", token.name, sr.Get(token.name)))
	}
	return v
}
