package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/kaisurf-be/internal/events"
	"github.com/hongminglow/kaisurf-be/internal/metrics"
	"github.com/hongminglow/kaisurf-be/internal/models"
)

var (
	ErrUnknownEntryPoint = errors.New("plugin: unknown entry point")
	ErrDuplicatePlugin   = errors.New("plugin: already loaded")
)

// Loaded describes a plugin that finished AttachUI successfully.
type Loaded struct {
	Manifest Manifest
	Instance Instance
}

type menuEntry struct {
	item    models.MenuItem
	visible func() bool
}

// Host owns the loaded plugins and the menu they contributed.
type Host struct {
	registry *Registry
	caps     Capabilities
	metrics  *metrics.Metrics
	log      logrus.FieldLogger

	mu      sync.RWMutex
	plugins []Loaded
	menu    []menuEntry
}

// NewHost returns a host resolving entry points through registry.
func NewHost(registry *Registry, caps Capabilities, m *metrics.Metrics) *Host {
	if caps.Log == nil {
		caps.Log = logrus.StandardLogger()
	}
	if caps.KonesEnabled == nil {
		caps.KonesEnabled = func() bool { return false }
	}
	return &Host{
		registry: registry,
		caps:     caps,
		metrics:  m,
		log:      caps.Log.WithField("component", "plugin-host"),
	}
}

// LoadDir loads every immediate subdirectory of dir that carries a manifest.
// Failures are collected per plugin; a missing dir is not an error.
func (h *Host) LoadDir(dir string) []error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return []error{fmt.Errorf("read addons dir: %w", err)}
	}

	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path, err := FindManifest(filepath.Join(dir, entry.Name()))
		if errors.Is(err, ErrNoManifest) {
			continue
		}
		if err == nil {
			var manifest Manifest
			if manifest, err = LoadManifest(path); err != nil {
				h.metrics.PluginLoaded(false)
			} else {
				err = h.Load(manifest)
			}
		}
		if err != nil {
			h.log.WithError(err).WithField("dir", entry.Name()).Error("plugin failed to load")
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
		}
	}
	return errs
}

// Load constructs the plugin described by manifest and attaches it. Panics in
// the plugin are converted into errors. Nothing the plugin staged survives a
// failure.
func (h *Host) Load(manifest Manifest) error {
	err := h.load(manifest)
	h.metrics.PluginLoaded(err == nil)
	return err
}

func (h *Host) load(manifest Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	factory, ok := h.registry.Lookup(manifest.EntryPoint)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownEntryPoint, manifest.EntryPoint)
	}

	h.mu.RLock()
	loaded := h.loadedLocked(manifest.Name)
	taken := h.menuIDs()
	h.mu.RUnlock()
	if loaded {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, manifest.Name)
	}

	// The plugin runs without the lock held so it may call back into the host.
	instance, window, err := h.construct(manifest, factory, taken)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loadedLocked(manifest.Name) {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, manifest.Name)
	}
	current := h.menuIDs()
	for _, e := range window.items {
		if current[e.item.ID] {
			return fmt.Errorf("attach %s: menu item %q already exists", manifest.Name, e.item.ID)
		}
	}
	h.menu = append(h.menu, window.items...)
	h.plugins = append(h.plugins, Loaded{Manifest: manifest, Instance: instance})
	h.log.WithFields(logrus.Fields{
		"plugin":     manifest.Name,
		"version":    manifest.Version,
		"menu_items": len(window.items),
	}).Info("plugin loaded")
	return nil
}

// construct runs the factory and AttachUI against a staged window, turning
// panics into errors.
func (h *Host) construct(manifest Manifest, factory Factory, taken map[string]bool) (instance Instance, window *stagedWindow, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance, window, err = nil, nil, fmt.Errorf("plugin %s panicked: %v", manifest.Name, r)
		}
	}()

	caps := h.caps
	caps.Log = h.caps.Log.WithField("plugin", manifest.Name)
	instance, err = factory(caps)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize %s: %w", manifest.Name, err)
	}
	if instance == nil {
		return nil, nil, fmt.Errorf("initialize %s: factory returned no instance", manifest.Name)
	}

	window = &stagedWindow{taken: taken}
	if err := instance.AttachUI(window); err != nil {
		return nil, nil, fmt.Errorf("attach %s: %w", manifest.Name, err)
	}
	return instance, window, nil
}

func (h *Host) loadedLocked(name string) bool {
	for _, p := range h.plugins {
		if p.Manifest.Name == name {
			return true
		}
	}
	return false
}

// Menu returns the items plugins contributed that are currently visible, in
// load order.
func (h *Host) Menu() []models.MenuItem {
	h.mu.RLock()
	defer h.mu.RUnlock()

	items := make([]models.MenuItem, 0, len(h.menu))
	for _, e := range h.menu {
		if e.visible == nil || e.visible() {
			items = append(items, e.item)
		}
	}
	return items
}

// Plugins lists loaded plugin manifests sorted by name.
func (h *Host) Plugins() []Manifest {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Manifest, 0, len(h.plugins))
	for _, p := range h.plugins {
		out = append(out, p.Manifest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Publish hands event to every loaded plugin that responds to host events.
// A responder that fails or panics does not stop delivery to the others.
func (h *Host) Publish(ctx context.Context, event events.Event) error {
	h.mu.RLock()
	plugins := append([]Loaded(nil), h.plugins...)
	h.mu.RUnlock()

	var errs []error
	for _, p := range plugins {
		responder, ok := p.Instance.(EventResponder)
		if !ok {
			continue
		}
		if err := deliver(ctx, responder, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Manifest.Name, err))
		}
	}
	return errors.Join(errs...)
}

func deliver(ctx context.Context, responder EventResponder, event events.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panicked: %v", r)
		}
	}()
	return responder.RespondToHostEvent(ctx, event)
}

func (h *Host) menuIDs() map[string]bool {
	ids := make(map[string]bool, len(h.menu))
	for _, e := range h.menu {
		ids[e.item.ID] = true
	}
	return ids
}

// stagedWindow buffers a single plugin's contributions until AttachUI returns.
type stagedWindow struct {
	taken map[string]bool
	items []menuEntry
}

func (w *stagedWindow) AddMenuItem(item models.MenuItem) error {
	return w.AddMenuItemWhen(item, nil)
}

func (w *stagedWindow) AddMenuItemWhen(item models.MenuItem, visible func() bool) error {
	item.ID = strings.TrimSpace(item.ID)
	item.Label = strings.TrimSpace(item.Label)
	if item.ID == "" || item.Label == "" {
		return fmt.Errorf("menu item needs an id and a label")
	}
	if w.taken[item.ID] {
		return fmt.Errorf("menu item %q already exists", item.ID)
	}
	w.taken[item.ID] = true
	w.items = append(w.items, menuEntry{item: item, visible: visible})
	return nil
}
