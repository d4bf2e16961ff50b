package models

import "time"

// EncryptionKey is a per-artifact data key, sealed with the master key
// before it reaches the database. Raw key material never touches a row.
type EncryptionKey struct {
	KeyID      string    `gorm:"type:varchar(64);primaryKey" json:"key_id"`
	ArtifactID string    `gorm:"type:varchar(64);not null;index" json:"artifact_id"`
	Sealed     []byte    `gorm:"type:bytea;not null" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName overrides the table name
func (EncryptionKey) TableName() string {
	return "encryption_keys"
}
