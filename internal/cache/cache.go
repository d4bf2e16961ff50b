package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/otcheredev/ris-imaging-pipeline/internal/dicom"
)

// Cache defines the byte-cache interface backing the rendered-image cache
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, pattern string) error
}

// Sweeper is implemented by backends that support proactive expiry cleanup
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// RenderKey builds the cache key for a rendered variant. Absence of window
// settings means the default/base rendering.
func RenderKey(tenantID, imageID string, ws *dicom.WindowSettings) string {
	if ws == nil {
		return tenantID + ":" + imageID + ":base"
	}
	return fmt.Sprintf("%s:%s:c%g:w%g", tenantID, imageID, ws.Center, ws.Width)
}

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = fmt.Errorf("cache miss")
