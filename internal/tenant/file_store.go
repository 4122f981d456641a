package tenant

import (
	"context"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type fileDocument struct {
	Restaurants []Tenant `toml:"restaurants"`
}

// FileStore serves tenants from a static TOML document of the form
//
//	[[restaurants]]
//	restaurant_id = "r1"
//	pos_type = "square"
//	access_token = "..."
//	table_tokens = ["t-1", "t-2"]
type FileStore struct {
	byID    map[string]Tenant
	byToken map[string]string
}

// LoadFile reads and parses a tenant TOML file.
func LoadFile(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tenant: read %s: %w", path, err)
	}
	return ParseFile(data)
}

// ParseFile parses tenant TOML from memory.
func ParseFile(data []byte) (*FileStore, error) {
	var doc fileDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("tenant: parse toml: %w", err)
	}
	return NewFileStore(doc.Restaurants...)
}

// NewFileStore indexes the supplied tenants. Duplicate restaurant ids or table
// tokens are rejected.
func NewFileStore(tenants ...Tenant) (*FileStore, error) {
	s := &FileStore{
		byID:    make(map[string]Tenant, len(tenants)),
		byToken: make(map[string]string),
	}
	for _, t := range tenants {
		id := strings.TrimSpace(t.RestaurantID)
		if id == "" {
			return nil, fmt.Errorf("tenant: restaurant_id is required")
		}
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("tenant: duplicate restaurant_id %q", id)
		}
		t.RestaurantID = id
		s.byID[id] = t
		for _, token := range t.TableTokens {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if owner, dup := s.byToken[token]; dup {
				return nil, fmt.Errorf("tenant: table token %q used by %q and %q", token, owner, id)
			}
			s.byToken[token] = id
		}
	}
	return s, nil
}

// ByRestaurantID implements Store.
func (s *FileStore) ByRestaurantID(_ context.Context, restaurantID string) (*Tenant, error) {
	t, ok := s.byID[strings.TrimSpace(restaurantID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// ByTableToken implements Store.
func (s *FileStore) ByTableToken(ctx context.Context, token string) (*Tenant, error) {
	id, ok := s.byToken[strings.TrimSpace(token)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.ByRestaurantID(ctx, id)
}

// ByAccount implements Store.
func (s *FileStore) ByAccount(_ context.Context, vendor, accountID string) (*Tenant, error) {
	for _, t := range s.byID {
		if t.OwnsAccount(vendor, accountID) {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

// Len returns the number of tenants loaded.
func (s *FileStore) Len() int { return len(s.byID) }
