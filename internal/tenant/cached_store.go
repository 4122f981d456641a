package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

const (
	restaurantKeyPrefix = "restaurant_"
	tableKeyPrefix      = "table_"
	accountKeyPrefix    = "account_"
)

// CacheOption customises a CachedStore.
type CacheOption func(*CachedStore)

// WithCacheDir persists the cache under dir. An empty dir keeps it in memory.
func WithCacheDir(dir string) CacheOption {
	return func(c *CachedStore) {
		c.dir = strings.TrimSpace(dir)
	}
}

// WithCacheTTL sets how long a resolved tenant is served from cache.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *CachedStore) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger zerolog.Logger) CacheOption {
	return func(c *CachedStore) {
		if !reflect.ValueOf(logger).IsZero() {
			c.logger = logger
		}
	}
}

// CachedStore fronts another Store with a badger cache whose entries expire
// after the configured TTL. Misses are not cached.
type CachedStore struct {
	next   Store
	db     *badger.DB
	dir    string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedStore opens the cache and wraps next.
func NewCachedStore(next Store, opts ...CacheOption) (*CachedStore, error) {
	if next == nil {
		return nil, errors.New("tenant cache: backing store is required")
	}
	c := &CachedStore{
		next:   next,
		ttl:    5 * time.Minute,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	badgerOpts := badger.DefaultOptions(c.dir).
		WithSyncWrites(false).
		WithLogger(nil)
	if c.dir == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	} else {
		badgerOpts = badgerOpts.WithValueLogFileSize(1 << 20)
	}
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("tenant cache: open badger: %w", err)
	}
	c.db = db
	return c, nil
}

// ByRestaurantID implements Store.
func (c *CachedStore) ByRestaurantID(ctx context.Context, restaurantID string) (*Tenant, error) {
	key := restaurantKeyPrefix + strings.TrimSpace(restaurantID)
	return c.lookup(ctx, key, func() (*Tenant, error) {
		return c.next.ByRestaurantID(ctx, restaurantID)
	})
}

// ByTableToken implements Store.
func (c *CachedStore) ByTableToken(ctx context.Context, token string) (*Tenant, error) {
	key := tableKeyPrefix + strings.TrimSpace(token)
	return c.lookup(ctx, key, func() (*Tenant, error) {
		return c.next.ByTableToken(ctx, token)
	})
}

// ByAccount implements Store.
func (c *CachedStore) ByAccount(ctx context.Context, vendor, accountID string) (*Tenant, error) {
	key := accountKeyPrefix + strings.ToLower(strings.TrimSpace(vendor)) + "_" + strings.TrimSpace(accountID)
	return c.lookup(ctx, key, func() (*Tenant, error) {
		return c.next.ByAccount(ctx, vendor, accountID)
	})
}

func (c *CachedStore) lookup(_ context.Context, key string, load func() (*Tenant, error)) (*Tenant, error) {
	if t, ok := c.get(key); ok {
		return t, nil
	}
	t, err := load()
	if err != nil {
		return nil, err
	}
	c.put(key, t)
	return t, nil
}

func (c *CachedStore) get(key string) (*Tenant, bool) {
	var t Tenant
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("tenant cache read failed")
		}
		return nil, false
	}
	return &t, true
}

func (c *CachedStore) put(key string, t *Tenant) {
	data, err := json.Marshal(t)
	if err != nil {
		c.logger.Warn().Err(err).Msg("tenant cache encode failed")
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(c.ttl))
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("tenant cache write failed")
	}
}

// Invalidate drops every cached entry for the restaurant, including table
// token and account entries that resolved to it.
func (c *CachedStore) Invalidate(restaurantID string) error {
	restaurantID = strings.TrimSpace(restaurantID)
	var stale [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var t Tenant
			if item.Value(func(val []byte) error { return json.Unmarshal(val, &t) }) != nil {
				continue
			}
			if t.RestaurantID == restaurantID {
				stale = append(stale, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tenant cache: scan: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	return c.db.Update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the badger database.
func (c *CachedStore) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
