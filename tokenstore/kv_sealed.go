package tokenstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealInfo = "portal token store v1"

// ErrSealedValue is returned when a stored value cannot be opened with the current secret
var ErrSealedValue = errors.New("sealed value cannot be opened")

var _ KV = (*SealedKV)(nil)

// SealedKV encrypts every value with XChaCha20-Poly1305 before handing it to the wrapped
// KV. The key name is bound as additional data, so a value copied to another key fails to open.
type SealedKV struct {
	kv   KV
	aead cipher.AEAD
}

// NewSealedKV derives a 256 bit key from secret with HKDF-SHA256
func NewSealedKV(kv KV, secret string) (*SealedKV, error) {
	if kv == nil {
		return nil, errors.New("[NewSealedKV] kv is required")
	}
	if secret == "" {
		return nil, errors.New("[NewSealedKV] secret is required")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("[NewSealedKV] derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("[NewSealedKV] init cipher: %w", err)
	}
	return &SealedKV{kv: kv, aead: aead}, nil
}

func (s *SealedKV) Get(ctx context.Context, key string) (string, error) {
	sealed, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", err
	}
	raw, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil || len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", ErrSealedValue
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", ErrSealedValue
	}
	return string(plain), nil
}

func (s *SealedKV) Set(ctx context.Context, key, value string) error {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.kv.Set(ctx, key, base64.RawStdEncoding.EncodeToString(sealed))
}

func (s *SealedKV) Delete(ctx context.Context, keys ...string) error {
	return s.kv.Delete(ctx, keys...)
}
