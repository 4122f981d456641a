// Package vendors holds the adapter registry and the factory that builds an
// adapter for a vendor or a restaurant.
package vendors

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/example/pos-gateway/internal/pos"
)

// NewFunc constructs an adapter from a validated config.
type NewFunc func(cfg pos.AdapterConfig, logger zerolog.Logger) (pos.Adapter, error)

// Info describes a registered adapter.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type registration struct {
	info Info
	new  NewFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register adds a vendor constructor to the registry. Vendor packages call it
// from init(). A second registration under the same name is ignored.
func Register(name, description string, newFunc NewFunc) {
	name = normalize(name, "")
	if name == "" || newFunc == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return
	}
	registry[name] = registration{info: Info{Name: name, Description: description}, new: newFunc}
}

// Lookup returns the constructor registered under name.
func Lookup(name string) (NewFunc, error) {
	name = normalize(name, "")
	registryMu.RLock()
	reg, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, pos.Newf(pos.KindUnsupportedVendor, "unsupported POS type %q", name)
	}
	return reg.new, nil
}

// Available lists the registered adapters sorted by name.
func Available() []Info {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Info, 0, len(registry))
	for _, reg := range registry {
		out = append(out, reg.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// New builds an adapter for cfg.Vendor after validating cfg.
func New(cfg pos.AdapterConfig, logger zerolog.Logger) (pos.Adapter, error) {
	cfg.Vendor = normalize(cfg.Vendor, "")
	newFunc, err := Lookup(cfg.Vendor)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adapter, err := newFunc(cfg, logger.With().Str("vendor", cfg.Vendor).Logger())
	if err != nil {
		return nil, pos.AsError(err)
	}
	return adapter, nil
}

func normalize(value, def string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return def
	}
	return value
}
