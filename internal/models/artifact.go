package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImageArtifact records where a stored image lives and how to read it
// back: which archive holds it, under what path, and which key seals it.
// Raw key material is never stored here.
type ImageArtifact struct {
	ID         string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ArchiveID  uuid.UUID `gorm:"type:uuid;not null" json:"archive_id"`
	KeyID      string    `gorm:"type:varchar(64);not null" json:"-"`
	PatientID  string    `gorm:"type:varchar(255);index" json:"patient_id,omitempty"`
	LeadID     string    `gorm:"type:varchar(255);index" json:"lead_id,omitempty"`
	ImageType  string    `gorm:"type:varchar(100)" json:"image_type,omitempty"`
	Modality   string    `gorm:"type:varchar(50)" json:"modality,omitempty"`
	Filename   string    `gorm:"type:varchar(500)" json:"filename,omitempty"`
	// Encoded is true for already-encoded photographs that bypassed the
	// tag parser.
	Encoded bool `gorm:"default:false" json:"encoded"`

	OriginalPath  string `gorm:"type:varchar(1000);not null" json:"original_path"`
	ThumbnailPath string `gorm:"type:varchar(1000)" json:"thumbnail_path,omitempty"`
	PreviewPath   string `gorm:"type:varchar(1000)" json:"preview_path,omitempty"`
	FullPath      string `gorm:"type:varchar(1000)" json:"full_path,omitempty"`

	OriginalSize     int     `json:"original_size"`
	CompressionRatio float64 `json:"compression_ratio"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (ImageArtifact) TableName() string {
	return "image_artifacts"
}
