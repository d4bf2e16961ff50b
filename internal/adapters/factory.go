package adapters

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

// ProviderFactory manages archive provider instances
type ProviderFactory struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]ArchiveProvider // keyed by archive config ID
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{
		providers: make(map[uuid.UUID]ArchiveProvider),
	}
}

// GetProvider gets or creates a provider for an archive config
func (f *ProviderFactory) GetProvider(config models.ArchiveConfig) (ArchiveProvider, error) {
	f.mu.RLock()
	provider, exists := f.providers[config.ID]
	f.mu.RUnlock()

	if exists {
		return provider, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if provider, exists := f.providers[config.ID]; exists {
		return provider, nil
	}

	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}

	f.providers[config.ID] = provider
	return provider, nil
}

// NewProvider creates an unpooled provider for a config
func NewProvider(config models.ArchiveConfig) (ArchiveProvider, error) {
	var provider ArchiveProvider
	var err error

	switch config.Type {
	case models.ArchiveTypeOrthanc:
		provider, err = NewOrthancProvider(config)
	case models.ArchiveTypeObjectStore:
		provider, err = NewObjectStoreProvider(config)
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", config.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return provider, nil
}

// RemoveProvider removes a provider for an archive config
func (f *ProviderFactory) RemoveProvider(configID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	provider, exists := f.providers[configID]
	if !exists {
		return nil
	}

	if err := provider.Close(); err != nil {
		return fmt.Errorf("failed to close provider: %w", err)
	}

	delete(f.providers, configID)
	return nil
}

// CloseAll closes all providers
func (f *ProviderFactory) CloseAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errors []error
	for configID, provider := range f.providers {
		if err := provider.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close provider for archive %s: %w", configID, err))
		}
		delete(f.providers, configID)
	}

	if len(errors) > 0 {
		return fmt.Errorf("encountered %d errors while closing providers", len(errors))
	}

	return nil
}
