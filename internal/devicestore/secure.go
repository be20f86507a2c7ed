package devicestore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrDecrypt means a stored value was written under a different secret or
// has been tampered with.
var ErrDecrypt = errors.New("stored value could not be decrypted")

// SecureStore encrypts values with NaCl secretbox before handing them to
// the underlying Store.
type SecureStore struct {
	base Store
	key  [32]byte
}

// NewSecureStore derives the box key from secret.
func NewSecureStore(base Store, secret string) *SecureStore {
	return &SecureStore{base: base, key: sha256.Sum256([]byte(secret))}
}

func (s *SecureStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.base.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrDecrypt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plain, nil
}

func (s *SecureStore) Set(ctx context.Context, key string, value []byte) error {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], value, &nonce, &s.key)
	return s.base.Set(ctx, key, sealed)
}

func (s *SecureStore) Delete(ctx context.Context, key string) error {
	return s.base.Delete(ctx, key)
}

// OpenTokenStore returns the store for the auth token slot: encrypted when
// a device secret is configured, otherwise base itself.
func OpenTokenStore(secret string, base Store) Store {
	if secret == "" {
		log.Printf("Warning: DEVICE_SECRET not set, auth token will be stored unencrypted")
		return base
	}
	return NewSecureStore(base, secret)
}
