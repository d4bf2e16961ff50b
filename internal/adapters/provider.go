package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

// ArchiveProvider defines the interface that all archive backends must
// implement. Providers that cannot support an operation return a typed
// failure in the result rather than an error.
type ArchiveProvider interface {
	// Upload persists a payload and returns its storage location
	Upload(ctx context.Context, data []byte, meta models.UploadMetadata) (*models.UploadResult, error)

	// Query searches the archive for stored records
	Query(ctx context.Context, q models.ArchiveQuery) (*models.QueryResult, error)

	// Download retrieves a stored payload by its storage path
	Download(ctx context.Context, id string) ([]byte, error)

	// Connection management
	TestConnection(ctx context.Context) (*models.ConnectionStatus, error)
	Close() error

	// Provider info
	Type() models.ArchiveType
	Capabilities() []string
}

// BaseProvider provides common functionality for all providers
type BaseProvider struct {
	config models.ArchiveConfig
}

func (b *BaseProvider) Type() models.ArchiveType {
	return b.config.Type
}

func (b *BaseProvider) GetConfig() models.ArchiveConfig {
	return b.config
}

// storagePath builds the stable artifact path. The timestamp component
// avoids cross-process collisions on the backend (last-write-wins is the
// archive's policy; distinct paths sidestep it).
func storagePath(meta models.UploadMetadata, prefix string) string {
	namespace := prefix
	if namespace == "" {
		namespace = meta.TenantID.String()
	}
	tier := meta.Tier
	if tier == "" {
		tier = "original"
	}
	ext := meta.Extension
	if ext == "" {
		ext = "dcm"
	}
	return fmt.Sprintf("%s/%s/%d/%s.%s", namespace, meta.ArtifactID, time.Now().Unix(), tier, ext)
}
