package loans

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-loans/core"
)

// EventHandlerPack groups outbox event handlers shipped by a downstream
// module. Handlers are keyed by the name they register under.
type EventHandlerPack struct {
	Name     string
	Handlers map[string]core.LoanEventHandler
}

// NotificationDefinitionPack maps loan event names to notification
// definition codes, overriding the defaults.
type NotificationDefinitionPack struct {
	Name        string
	Definitions map[string]string
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

type ExtensionHooks struct {
	mu sync.RWMutex

	handlerPacks    map[string]EventHandlerPack
	definitionPacks map[string]NotificationDefinitionPack
	bundles         map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		handlerPacks:    map[string]EventHandlerPack{},
		definitionPacks: map[string]NotificationDefinitionPack{},
		bundles:         map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterEventHandlerPack(pack EventHandlerPack) error {
	if h == nil {
		return fmt.Errorf("loans: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("loans: event handler pack name is required")
	}
	if len(pack.Handlers) == 0 {
		return fmt.Errorf("loans: event handler pack %q has no handlers", name)
	}
	handlers := make(map[string]core.LoanEventHandler, len(pack.Handlers))
	for handlerName, handler := range pack.Handlers {
		handlerName = strings.TrimSpace(handlerName)
		if handlerName == "" {
			return fmt.Errorf("loans: event handler pack %q has an unnamed handler", name)
		}
		if handler == nil {
			return fmt.Errorf("loans: event handler pack %q contains nil handler %q", name, handlerName)
		}
		handlers[handlerName] = handler
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.handlerPacks[name]; exists {
		return fmt.Errorf("loans: event handler pack %q already registered", name)
	}
	h.handlerPacks[name] = EventHandlerPack{Name: name, Handlers: handlers}
	return nil
}

func (h *ExtensionHooks) RegisterNotificationDefinitionPack(pack NotificationDefinitionPack) error {
	if h == nil {
		return fmt.Errorf("loans: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("loans: notification definition pack name is required")
	}
	if len(pack.Definitions) == 0 {
		return fmt.Errorf("loans: notification definition pack %q has no definitions", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.definitionPacks[name]; exists {
		return fmt.Errorf("loans: notification definition pack %q already registered", name)
	}
	h.definitionPacks[name] = NotificationDefinitionPack{Name: name, Definitions: maps.Clone(pack.Definitions)}
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("loans: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("loans: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("loans: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("loans: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyEventHandlerPacks registers every pack handler on registry. A handler
// name used by two packs is an error.
func (h *ExtensionHooks) ApplyEventHandlerPacks(registry *core.LoanProjectorRegistry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("loans: projector registry is required")
	}
	seen := map[string]string{}
	for _, pack := range h.EventHandlerPacks() {
		for _, handlerName := range sortedKeys(pack.Handlers) {
			if owner, exists := seen[handlerName]; exists {
				return fmt.Errorf("loans: event handler %q registered by packs %q and %q", handlerName, owner, pack.Name)
			}
			seen[handlerName] = pack.Name
			registry.Register(handlerName, pack.Handlers[handlerName])
		}
	}
	return nil
}

// Options returns service options that register every pack handler.
func (h *ExtensionHooks) Options() []core.Option {
	if h == nil {
		return nil
	}
	opts := []core.Option{}
	for _, pack := range h.EventHandlerPacks() {
		for _, handlerName := range sortedKeys(pack.Handlers) {
			opts = append(opts, core.WithEventHandler(handlerName, pack.Handlers[handlerName]))
		}
	}
	return opts
}

// NotificationDefinitions merges the registered packs over the default
// definitions. Packs apply in name order, so later names win.
func (h *ExtensionHooks) NotificationDefinitions() map[string]string {
	out := core.DefaultNotificationDefinitions()
	if h == nil {
		return out
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, name := range sortedKeys(h.definitionPacks) {
		maps.Copy(out, h.definitionPacks[name].Definitions)
	}
	return out
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("loans: command/query service is required")
	}

	h.mu.RLock()
	names := sortedKeys(h.bundles)
	factories := maps.Clone(h.bundles)
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) EventHandlerPacks() []EventHandlerPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]EventHandlerPack, 0, len(h.handlerPacks))
	for _, name := range sortedKeys(h.handlerPacks) {
		pack := h.handlerPacks[name]
		out = append(out, EventHandlerPack{Name: pack.Name, Handlers: maps.Clone(pack.Handlers)})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func sortedKeys[V any](values map[string]V) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
