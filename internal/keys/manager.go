// Package keys owns symmetric key lifecycle for stored artifacts. No other
// component persists raw key material.
package keys

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// keySize is the symmetric key length in bytes (AES-256).
const keySize = 32

// KeyStore is the seam to an external secret/key-management service. A nil
// store puts the manager in degraded master-key mode.
type KeyStore interface {
	Save(ctx context.Context, artifactID, keyID string, key []byte) error
	Load(ctx context.Context, artifactID, keyID string) ([]byte, error)
}

// Manager mints and resolves per-artifact encryption keys.
type Manager struct {
	store     KeyStore
	masterKey []byte
}

// NewManager creates a key manager. With a nil store every artifact
// resolves to the process master key; this is an explicit degraded mode
// for deployments without a KMS, not a security target.
func NewManager(store KeyStore, masterKeyHex string) (*Manager, error) {
	var master []byte
	if masterKeyHex != "" {
		decoded, err := hex.DecodeString(masterKeyHex)
		if err != nil {
			return nil, fmt.Errorf("decode master key: %w", err)
		}
		if len(decoded) != keySize {
			return nil, fmt.Errorf("master key must be %d bytes, got %d", keySize, len(decoded))
		}
		master = decoded
	} else {
		generated, err := GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate master key: %w", err)
		}
		master = generated
	}

	if store == nil {
		log.Warn().Msg("No key store configured; all artifacts resolve to the process master key")
	}

	return &Manager{store: store, masterKey: master}, nil
}

// GenerateKey mints a 256-bit symmetric key from a cryptographically
// secure random source.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("read random key material: %w", err)
	}
	return key, nil
}

// GenerateKeyID mints an opaque key identifier.
func GenerateKeyID() string {
	return uuid.New().String()
}

// MintKey generates and registers a key for an artifact, returning the key
// and its identifier. In master-key mode the master key is returned with a
// fresh identifier and nothing is persisted.
func (m *Manager) MintKey(ctx context.Context, artifactID string) ([]byte, string, error) {
	keyID := GenerateKeyID()
	if m.store == nil {
		return m.masterKey, keyID, nil
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, "", err
	}
	if err := m.store.Save(ctx, artifactID, keyID, key); err != nil {
		return nil, "", fmt.Errorf("save key for artifact %s: %w", artifactID, err)
	}
	return key, keyID, nil
}

// RetrieveKey resolves the key for a stored artifact. Resolution failure is
// fatal for that artifact's read path; there is no fallback to unencrypted
// data.
func (m *Manager) RetrieveKey(ctx context.Context, artifactID, keyID string) ([]byte, error) {
	if m.store == nil {
		return m.masterKey, nil
	}
	key, err := m.store.Load(ctx, artifactID, keyID)
	if err != nil {
		return nil, fmt.Errorf("load key %s for artifact %s: %w", keyID, artifactID, err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("stored key %s has invalid length %d", keyID, len(key))
	}
	return key, nil
}

// Seal encrypts a payload with AES-256-GCM. The nonce is prepended to the
// ciphertext.
func Seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a payload produced by Seal.
func Open(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed payload is shorter than the nonce")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt payload: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}
