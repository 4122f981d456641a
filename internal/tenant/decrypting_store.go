package tenant

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/fernet/fernet-go"
	"github.com/rs/zerolog"
)

// DecryptingStore decrypts Fernet encrypted access tokens and secrets on the
// way out of the wrapped store. A value that fails to decrypt is returned
// unchanged so plaintext credentials keep working.
type DecryptingStore struct {
	next   Store
	keys   []*fernet.Key
	logger zerolog.Logger
}

// NewDecryptingStore wraps next with the Fernet key encoded in key.
func NewDecryptingStore(next Store, key string, logger zerolog.Logger) (*DecryptingStore, error) {
	k, err := fernet.DecodeKey(strings.TrimSpace(key))
	if err != nil {
		return nil, fmt.Errorf("tenant: decode token encryption key: %w", err)
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &DecryptingStore{next: next, keys: []*fernet.Key{k}, logger: logger}, nil
}

// ByRestaurantID implements Store.
func (s *DecryptingStore) ByRestaurantID(ctx context.Context, restaurantID string) (*Tenant, error) {
	t, err := s.next.ByRestaurantID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	return s.decrypt(t), nil
}

// ByTableToken implements Store.
func (s *DecryptingStore) ByTableToken(ctx context.Context, token string) (*Tenant, error) {
	t, err := s.next.ByTableToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.decrypt(t), nil
}

// ByAccount implements Store.
func (s *DecryptingStore) ByAccount(ctx context.Context, vendor, accountID string) (*Tenant, error) {
	t, err := s.next.ByAccount(ctx, vendor, accountID)
	if err != nil {
		return nil, err
	}
	return s.decrypt(t), nil
}

func (s *DecryptingStore) decrypt(t *Tenant) *Tenant {
	out := *t
	out.AccessToken = s.Decrypt(t.AccessToken)
	out.SecretKey = s.Decrypt(t.SecretKey)
	return &out
}

// Decrypt returns the plaintext for token, or token itself when it is not a
// valid Fernet token for the configured key.
func (s *DecryptingStore) Decrypt(token string) string {
	if token == "" {
		return ""
	}
	plain := fernet.VerifyAndDecrypt([]byte(token), 0, s.keys)
	if plain == nil {
		s.logger.Debug().Msg("token not decryptable, using stored value")
		return token
	}
	return string(plain)
}

// Encrypt produces a Fernet token for value. posctl tenants put stores
// credentials encrypted with it.
func (s *DecryptingStore) Encrypt(value string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(value), s.keys[0])
	if err != nil {
		return "", fmt.Errorf("tenant: encrypt token: %w", err)
	}
	return string(tok), nil
}
