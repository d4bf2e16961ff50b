package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-imaging-pipeline/internal/adapters"
	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
	"github.com/otcheredev/ris-imaging-pipeline/internal/repository"
)

// ArchiveService handles business logic for archive configuration and
// routing rule management
type ArchiveService struct {
	archiveRepo     *repository.ArchiveRepository
	auditRepo       *repository.AuditRepository
	providerFactory *adapters.ProviderFactory
}

// NewArchiveService creates a new archive service
func NewArchiveService(
	archiveRepo *repository.ArchiveRepository,
	auditRepo *repository.AuditRepository,
	providerFactory *adapters.ProviderFactory,
) *ArchiveService {
	return &ArchiveService{
		archiveRepo:     archiveRepo,
		auditRepo:       auditRepo,
		providerFactory: providerFactory,
	}
}

// GetDefaultProvider gets the provider for a tenant's default archive
func (s *ArchiveService) GetDefaultProvider(ctx context.Context, tenantID uuid.UUID) (adapters.ArchiveProvider, error) {
	config, err := s.archiveRepo.GetDefaultByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get default archive config: %w", err)
	}

	provider, err := s.providerFactory.GetProvider(*config)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return provider, nil
}

// CreateArchiveConfig creates a new archive configuration. The first
// active config for a tenant becomes the default regardless of the
// request; a later config marked default displaces the previous one.
func (s *ArchiveService) CreateArchiveConfig(ctx context.Context, tenantID uuid.UUID, req *models.ArchiveConfigRequest) (*models.ArchiveConfig, error) {
	existing, err := s.archiveRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive configs: %w", err)
	}

	config := &models.ArchiveConfig{
		TenantID:   tenantID,
		Name:       req.Name,
		Type:       req.Type,
		Endpoint:   req.Endpoint,
		Port:       req.Port,
		Bucket:     req.Bucket,
		Region:     req.Region,
		PathPrefix: req.PathPrefix,
		Username:   req.Username,
		Priority:   req.Priority,
		IsDefault:  req.IsDefault || len(existing) == 0,
		IsActive:   true,
	}

	// TODO: encrypt credentials at rest
	if req.Password != "" {
		config.PasswordHash = req.Password
	}
	if req.APIKey != "" {
		config.APIKey = req.APIKey
	}

	if err := s.archiveRepo.Create(ctx, config); err != nil {
		return nil, fmt.Errorf("failed to create archive config: %w", err)
	}

	// Demote any previous default inside one transaction
	if config.IsDefault && len(existing) > 0 {
		if err := s.archiveRepo.SetDefault(ctx, config.ID, tenantID); err != nil {
			return nil, fmt.Errorf("failed to set default archive: %w", err)
		}
	}

	s.recordConfigChange(ctx, tenantID, "archive_config", config.ID.String(), nil)

	return config, nil
}

// GetArchiveConfigs retrieves all archive configurations for a tenant
func (s *ArchiveService) GetArchiveConfigs(ctx context.Context, tenantID uuid.UUID) ([]models.ArchiveConfig, error) {
	configs, err := s.archiveRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get archive configs: %w", err)
	}
	return configs, nil
}

// GetArchiveConfig retrieves a specific archive configuration
func (s *ArchiveService) GetArchiveConfig(ctx context.Context, configID uuid.UUID) (*models.ArchiveConfig, error) {
	config, err := s.archiveRepo.GetByID(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to get archive config: %w", err)
	}
	return config, nil
}

// SetDefaultArchive marks one archive as the tenant's default
func (s *ArchiveService) SetDefaultArchive(ctx context.Context, tenantID, configID uuid.UUID) error {
	if err := s.archiveRepo.SetDefault(ctx, configID, tenantID); err != nil {
		return fmt.Errorf("failed to set default archive: %w", err)
	}
	s.recordConfigChange(ctx, tenantID, "archive_config", configID.String(), nil)
	return nil
}

// DeleteArchiveConfig removes an archive configuration and drops any
// cached provider for it
func (s *ArchiveService) DeleteArchiveConfig(ctx context.Context, tenantID, configID uuid.UUID) error {
	if err := s.archiveRepo.Delete(ctx, configID); err != nil {
		return fmt.Errorf("failed to delete archive config: %w", err)
	}
	if err := s.providerFactory.RemoveProvider(configID); err != nil {
		return fmt.Errorf("failed to remove provider: %w", err)
	}
	s.recordConfigChange(ctx, tenantID, "archive_config", configID.String(), nil)
	return nil
}

// TestConnection tests an archive connection with ad-hoc parameters
func (s *ArchiveService) TestConnection(ctx context.Context, req *models.ConnectionTestRequest) (*models.ConnectionStatus, error) {
	config := models.ArchiveConfig{
		Type:         req.Type,
		Endpoint:     req.Endpoint,
		Port:         req.Port,
		Bucket:       req.Bucket,
		Region:       req.Region,
		Username:     req.Username,
		PasswordHash: req.Password,
		APIKey:       req.APIKey,
	}

	provider, err := adapters.NewProvider(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	defer provider.Close()

	return provider.TestConnection(ctx)
}

// TestConfiguredConnection tests a stored archive configuration and
// persists the outcome on the config row
func (s *ArchiveService) TestConfiguredConnection(ctx context.Context, configID uuid.UUID) (*models.ConnectionStatus, error) {
	config, err := s.archiveRepo.GetByID(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to get archive config: %w", err)
	}

	provider, err := adapters.NewProvider(*config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	defer provider.Close()

	status, err := provider.TestConnection(ctx)
	if status != nil {
		if updateErr := s.archiveRepo.UpdateConnectionStatus(ctx, configID, status); updateErr != nil {
			return status, fmt.Errorf("failed to persist connection status: %w", updateErr)
		}
	}
	return status, err
}

// QueryArchive runs a query against the tenant's default archive
func (s *ArchiveService) QueryArchive(ctx context.Context, tenantID uuid.UUID, q models.ArchiveQuery) (*models.QueryResult, error) {
	provider, err := s.GetDefaultProvider(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result, err := provider.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}

	s.recordAudit(ctx, tenantID, "query", "archive", "", "success", "")

	return result, nil
}

// CreateRoutingRule creates a routing rule after checking that its target
// archive exists for the tenant
func (s *ArchiveService) CreateRoutingRule(ctx context.Context, tenantID uuid.UUID, req *models.RoutingRuleRequest) (*models.RoutingRule, error) {
	target, err := s.archiveRepo.GetByID(ctx, req.ArchiveID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target archive: %w", err)
	}
	if target.TenantID != tenantID {
		return nil, fmt.Errorf("target archive does not belong to tenant")
	}

	rule := &models.RoutingRule{
		TenantID:   tenantID,
		Name:       req.Name,
		Priority:   req.Priority,
		Location:   req.Location,
		ImageTypes: req.ImageTypes,
		PatientID:  req.PatientID,
		LeadID:     req.LeadID,
		ArchiveID:  req.ArchiveID,
		Compress:   req.Compress,
		IsActive:   true,
	}

	if err := s.archiveRepo.CreateRoutingRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create routing rule: %w", err)
	}

	s.recordConfigChange(ctx, tenantID, "routing_rule", rule.ID.String(), nil)

	return rule, nil
}

// GetRoutingRules retrieves all active routing rules for a tenant
func (s *ArchiveService) GetRoutingRules(ctx context.Context, tenantID uuid.UUID) ([]models.RoutingRule, error) {
	rules, err := s.archiveRepo.GetRoutingRules(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get routing rules: %w", err)
	}
	return rules, nil
}

// DeleteRoutingRule removes a routing rule
func (s *ArchiveService) DeleteRoutingRule(ctx context.Context, tenantID, ruleID uuid.UUID) error {
	if err := s.archiveRepo.DeleteRoutingRule(ctx, ruleID); err != nil {
		return fmt.Errorf("failed to delete routing rule: %w", err)
	}
	s.recordConfigChange(ctx, tenantID, "routing_rule", ruleID.String(), nil)
	return nil
}

func (s *ArchiveService) recordConfigChange(ctx context.Context, tenantID uuid.UUID, resourceType, resourceID string, err error) {
	status := "success"
	message := ""
	if err != nil {
		status = "failure"
		message = err.Error()
	}
	s.recordAudit(ctx, tenantID, "config_change", resourceType, resourceID, status, message)
}

// Audit failures never fail the caller.
func (s *ArchiveService) recordAudit(ctx context.Context, tenantID uuid.UUID, action, resourceType, artifactID, status, message string) {
	err := s.auditRepo.Create(ctx, &models.AuditLog{
		TenantID:     tenantID,
		Action:       action,
		ResourceType: resourceType,
		ArtifactID:   artifactID,
		Status:       status,
		ErrorMessage: message,
	})
	if err != nil {
		log.Warn().Err(err).Str("action", action).Msg("Failed to write audit log")
	}
}
