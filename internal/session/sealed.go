package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var ErrCorrupt = errors.New("session value corrupt")

// Sealed encrypts values before they reach the underlying store. Each value
// is bound to its device id and key, so a row copied elsewhere fails to open.
type Sealed struct {
	next Store
	key  []byte
}

func NewSealed(next Store, secret string) (*Sealed, error) {
	if secret == "" {
		return nil, errors.New("seal secret is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("storefront session v1")), key); err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	return &Sealed{next: next, key: key}, nil
}

func aad(deviceID, key string) []byte {
	return []byte(deviceID + "\x00" + key)
}

func (s *Sealed) seal(deviceID, key, value string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, []byte(value), aad(deviceID, key))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *Sealed) open(deviceID, key, value string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", ErrCorrupt
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrCorrupt
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], aad(deviceID, key))
	if err != nil {
		return "", ErrCorrupt
	}
	return string(plain), nil
}

func (s *Sealed) Get(ctx context.Context, deviceID, key string) (string, bool, error) {
	v, ok, err := s.next.Get(ctx, deviceID, key)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := s.open(deviceID, key, v)
	if err != nil {
		return "", false, fmt.Errorf("open %s: %w", key, err)
	}
	return plain, true, nil
}

func (s *Sealed) Set(ctx context.Context, deviceID, key, value string) error {
	sealed, err := s.seal(deviceID, key, value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.next.Set(ctx, deviceID, key, sealed)
}

func (s *Sealed) Delete(ctx context.Context, deviceID string, keys ...string) error {
	return s.next.Delete(ctx, deviceID, keys...)
}

func (s *Sealed) Devices(ctx context.Context, key string) ([]string, error) {
	return s.next.Devices(ctx, key)
}
