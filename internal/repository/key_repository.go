package repository

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/otcheredev/ris-imaging-pipeline/internal/database"
	"github.com/otcheredev/ris-imaging-pipeline/internal/keys"
	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

// EncryptedKeyStore persists per-artifact data keys, sealed with a
// wrapping key. It implements keys.KeyStore.
type EncryptedKeyStore struct {
	wrap []byte
}

// NewEncryptedKeyStore creates a key store from a hex-encoded 256-bit
// wrapping key
func NewEncryptedKeyStore(wrapKeyHex string) (*EncryptedKeyStore, error) {
	wrap, err := hex.DecodeString(wrapKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode wrapping key: %w", err)
	}
	if len(wrap) != 32 {
		return nil, fmt.Errorf("wrapping key must be 32 bytes, got %d", len(wrap))
	}
	return &EncryptedKeyStore{wrap: wrap}, nil
}

// Save seals a data key and persists it
func (s *EncryptedKeyStore) Save(ctx context.Context, artifactID, keyID string, key []byte) error {
	sealed, err := keys.Seal(s.wrap, key)
	if err != nil {
		return fmt.Errorf("seal data key: %w", err)
	}
	record := &models.EncryptionKey{
		KeyID:      keyID,
		ArtifactID: artifactID,
		Sealed:     sealed,
	}
	if err := database.DB.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save encryption key: %w", err)
	}
	return nil
}

// Load retrieves and unseals a data key
func (s *EncryptedKeyStore) Load(ctx context.Context, artifactID, keyID string) ([]byte, error) {
	var record models.EncryptionKey
	if err := database.DB.WithContext(ctx).
		Where("key_id = ? AND artifact_id = ?", keyID, artifactID).
		First(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to load encryption key: %w", err)
	}
	key, err := keys.Open(s.wrap, record.Sealed)
	if err != nil {
		return nil, fmt.Errorf("unseal data key: %w", err)
	}
	return key, nil
}

var _ keys.KeyStore = (*EncryptedKeyStore)(nil)
