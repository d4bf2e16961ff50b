package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-imaging-pipeline/internal/database"
	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

// ArchiveRepository handles archive configuration and routing rule
// database operations
type ArchiveRepository struct{}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository() *ArchiveRepository {
	return &ArchiveRepository{}
}

// Create creates a new archive configuration
func (r *ArchiveRepository) Create(ctx context.Context, config *models.ArchiveConfig) error {
	if err := database.DB.WithContext(ctx).Create(config).Error; err != nil {
		return fmt.Errorf("failed to create archive config: %w", err)
	}
	return nil
}

// GetByID retrieves an archive configuration by ID
func (r *ArchiveRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ArchiveConfig, error) {
	var config models.ArchiveConfig
	if err := database.DB.WithContext(ctx).Where("id = ?", id).First(&config).Error; err != nil {
		return nil, fmt.Errorf("failed to get archive config: %w", err)
	}
	return &config, nil
}

// GetByTenantID retrieves all active archive configurations for a tenant
func (r *ArchiveRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) ([]models.ArchiveConfig, error) {
	var configs []models.ArchiveConfig
	if err := database.DB.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("priority ASC, created_at ASC").
		Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to get archive configs: %w", err)
	}
	return configs, nil
}

// GetDefaultByTenantID retrieves the default archive configuration for a
// tenant. Exactly one active config may be default; this is enforced here
// at read time rather than assumed.
func (r *ArchiveRepository) GetDefaultByTenantID(ctx context.Context, tenantID uuid.UUID) (*models.ArchiveConfig, error) {
	var configs []models.ArchiveConfig
	if err := database.DB.WithContext(ctx).
		Where("tenant_id = ? AND is_default = ? AND is_active = ?", tenantID, true, true).
		Order("created_at ASC").
		Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to get default archive config: %w", err)
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("no default archive configured for tenant %s", tenantID)
	}
	if len(configs) > 1 {
		return nil, fmt.Errorf("tenant %s has %d archives marked default", tenantID, len(configs))
	}
	return &configs[0], nil
}

// Update updates an archive configuration
func (r *ArchiveRepository) Update(ctx context.Context, config *models.ArchiveConfig) error {
	if err := database.DB.WithContext(ctx).Save(config).Error; err != nil {
		return fmt.Errorf("failed to update archive config: %w", err)
	}
	return nil
}

// Delete soft deletes an archive configuration
func (r *ArchiveRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := database.DB.WithContext(ctx).Delete(&models.ArchiveConfig{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete archive config: %w", err)
	}
	return nil
}

// SetDefault sets an archive configuration as default (and unsets others)
func (r *ArchiveRepository) SetDefault(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	// Start transaction
	tx := database.DB.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Unset all default flags for this tenant
	if err := tx.Model(&models.ArchiveConfig{}).
		Where("tenant_id = ?", tenantID).
		Update("is_default", false).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to unset default flags: %w", err)
	}

	// Set new default
	if err := tx.Model(&models.ArchiveConfig{}).
		Where("id = ?", id).
		Update("is_default", true).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to set default: %w", err)
	}

	return tx.Commit().Error
}

// UpdateConnectionStatus updates the connection status of an archive
// configuration
func (r *ArchiveRepository) UpdateConnectionStatus(ctx context.Context, id uuid.UUID, status *models.ConnectionStatus) error {
	updates := map[string]interface{}{
		"last_connection_test":   status.LastChecked,
		"last_connection_status": status.IsConnected,
		"last_error":             status.ErrorMessage,
	}

	if err := database.DB.WithContext(ctx).
		Model(&models.ArchiveConfig{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}

	return nil
}

// CreateRoutingRule creates a new routing rule
func (r *ArchiveRepository) CreateRoutingRule(ctx context.Context, rule *models.RoutingRule) error {
	if err := database.DB.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create routing rule: %w", err)
	}
	return nil
}

// GetRoutingRules retrieves all active routing rules for a tenant ordered
// by ascending priority
func (r *ArchiveRepository) GetRoutingRules(ctx context.Context, tenantID uuid.UUID) ([]models.RoutingRule, error) {
	var rules []models.RoutingRule
	if err := database.DB.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("priority ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to get routing rules: %w", err)
	}
	return rules, nil
}

// DeleteRoutingRule soft deletes a routing rule
func (r *ArchiveRepository) DeleteRoutingRule(ctx context.Context, id uuid.UUID) error {
	if err := database.DB.WithContext(ctx).Delete(&models.RoutingRule{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete routing rule: %w", err)
	}
	return nil
}
