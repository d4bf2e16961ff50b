package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/otcheredev/ris-imaging-pipeline/internal/database"
	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

// ErrArtifactNotFound is returned when no artifact matches the lookup.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactRepository handles image artifact database operations
type ArtifactRepository struct{}

// NewArtifactRepository creates a new artifact repository
func NewArtifactRepository() *ArtifactRepository {
	return &ArtifactRepository{}
}

// Create persists a new image artifact record
func (r *ArtifactRepository) Create(ctx context.Context, artifact *models.ImageArtifact) error {
	if err := database.DB.WithContext(ctx).Create(artifact).Error; err != nil {
		return fmt.Errorf("failed to create image artifact: %w", err)
	}
	return nil
}

// GetByID retrieves an artifact scoped to a tenant
func (r *ArtifactRepository) GetByID(ctx context.Context, tenantID uuid.UUID, id string) (*models.ImageArtifact, error) {
	var artifact models.ImageArtifact
	err := database.DB.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get image artifact: %w", err)
	}
	return &artifact, nil
}

// ListByPatient retrieves artifacts for a patient within a tenant
func (r *ArtifactRepository) ListByPatient(ctx context.Context, tenantID uuid.UUID, patientID string) ([]models.ImageArtifact, error) {
	var artifacts []models.ImageArtifact
	if err := database.DB.WithContext(ctx).
		Where("tenant_id = ? AND patient_id = ?", tenantID, patientID).
		Order("created_at DESC").
		Find(&artifacts).Error; err != nil {
		return nil, fmt.Errorf("failed to list image artifacts: %w", err)
	}
	return artifacts, nil
}
