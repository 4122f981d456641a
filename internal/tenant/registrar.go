package tenant

import (
	"context"
	"fmt"
	"strings"
)

// Writer persists restaurant records.
type Writer interface {
	Upsert(ctx context.Context, t Tenant) error
}

// RegistrarOption customises a Registrar.
type RegistrarOption func(*Registrar)

// WithEncryption stores credentials as Fernet tokens readable by s.
func WithEncryption(s *DecryptingStore) RegistrarOption {
	return func(r *Registrar) {
		r.cipher = s
	}
}

// WithCache drops cached lookups of every restaurant written.
func WithCache(c *CachedStore) RegistrarOption {
	return func(r *Registrar) {
		r.cache = c
	}
}

// Registrar writes restaurant records for operators.
type Registrar struct {
	writer Writer
	cipher *DecryptingStore
	cache  *CachedStore
}

// NewRegistrar writes through w.
func NewRegistrar(w Writer, opts ...RegistrarOption) *Registrar {
	r := &Registrar{writer: w}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Put validates t, encrypts its credentials when a key is configured and
// replaces the stored record.
func (r *Registrar) Put(ctx context.Context, t Tenant) error {
	t.RestaurantID = strings.TrimSpace(t.RestaurantID)
	t.Vendor = strings.ToLower(strings.TrimSpace(t.Vendor))
	if t.RestaurantID == "" {
		return fmt.Errorf("tenant: restaurant_id is required")
	}
	if t.Vendor == "" {
		return fmt.Errorf("tenant: pos_type is required for %s", t.RestaurantID)
	}
	if r.cipher != nil {
		var err error
		if t.AccessToken, err = r.encrypt(t.AccessToken); err != nil {
			return err
		}
		if t.SecretKey, err = r.encrypt(t.SecretKey); err != nil {
			return err
		}
	}
	if err := r.writer.Upsert(ctx, t); err != nil {
		return err
	}
	if r.cache != nil {
		if err := r.cache.Invalidate(t.RestaurantID); err != nil {
			return fmt.Errorf("tenant: %s stored but cache not cleared: %w", t.RestaurantID, err)
		}
	}
	return nil
}

func (r *Registrar) encrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return r.cipher.Encrypt(value)
}
