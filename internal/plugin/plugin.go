// Package plugin loads extensions described by manifests, hands each one the
// host capabilities, and lets it contribute to the client menu and react to
// host events. A failing plugin never affects the others.
package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/kaisurf-be/internal/events"
	"github.com/hongminglow/kaisurf-be/internal/models"
)

// Capabilities is what the host offers a plugin at initialization.
type Capabilities struct {
	Log          logrus.FieldLogger
	KonesEnabled func() bool
	AppName      string
	AppVersion   string
}

// Window is the host surface a plugin may extend during AttachUI.
type Window interface {
	AddMenuItem(item models.MenuItem) error
	// AddMenuItemWhen adds an item that is only listed while visible reports true.
	AddMenuItemWhen(item models.MenuItem, visible func() bool) error
}

// Instance is a constructed plugin.
type Instance interface {
	// AttachUI is called exactly once, right after initialization.
	AttachUI(w Window) error
}

// EventResponder is implemented by instances that react to host events.
type EventResponder interface {
	RespondToHostEvent(ctx context.Context, event events.Event) error
}

// Factory initializes a plugin instance.
type Factory func(caps Capabilities) (Instance, error)

// Registry maps manifest entry points to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Entry points are unique.
func (r *Registry) Register(entryPoint string, factory Factory) error {
	if entryPoint == "" || factory == nil {
		return fmt.Errorf("plugin: entry point and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[entryPoint]; exists {
		return fmt.Errorf("plugin: entry point %q already registered", entryPoint)
	}
	r.factories[entryPoint] = factory
	return nil
}

// Lookup returns the factory for entryPoint.
func (r *Registry) Lookup(entryPoint string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[entryPoint]
	return f, ok
}

// EntryPoints lists registered entry points in sorted order.
func (r *Registry) EntryPoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
