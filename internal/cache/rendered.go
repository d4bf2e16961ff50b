package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-imaging-pipeline/internal/dicom"
)

// DefaultTTL is how long a rendered variant stays valid after caching.
const DefaultTTL = 24 * time.Hour

// Regenerator produces a rendered variant when an explicitly-windowed
// request has no cached entry: fetch original, decrypt, parse, window,
// encode.
type Regenerator func(ctx context.Context, tenantID, imageID string, ws *dicom.WindowSettings) ([]byte, error)

// RenderedCache caches rendered display variants keyed by
// (imageID, windowCenter, windowWidth). Expiry is enforced lazily at read
// time by the backend; Sweep offers proactive cleanup.
type RenderedCache struct {
	backend    Cache
	ttl        time.Duration
	regenerate Regenerator
}

// NewRenderedCache creates a rendered-image cache over a byte-cache
// backend. regenerate may be nil, in which case misses with explicit
// window settings are surfaced to the caller.
func NewRenderedCache(backend Cache, ttl time.Duration, regenerate Regenerator) *RenderedCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RenderedCache{
		backend:    backend,
		ttl:        ttl,
		regenerate: regenerate,
	}
}

// Get returns the rendered bytes for an image under the given window
// settings. A nil ws requests the base rendering. An explicit-window
// request with no cached entry regenerates on demand, caches the result
// and returns it; the miss is not surfaced to the caller.
func (c *RenderedCache) Get(ctx context.Context, tenantID, imageID string, ws *dicom.WindowSettings) ([]byte, bool, error) {
	key := RenderKey(tenantID, imageID, ws)

	data, err := c.backend.Get(ctx, key)
	if err == nil {
		return data, true, nil
	}
	if err != ErrCacheMiss {
		return nil, false, fmt.Errorf("read rendered cache: %w", err)
	}

	if c.regenerate == nil {
		return nil, false, ErrCacheMiss
	}

	rendered, err := c.regenerate(ctx, tenantID, imageID, ws)
	if err != nil {
		return nil, false, fmt.Errorf("regenerate rendering for %s: %w", imageID, err)
	}

	if err := c.backend.Set(ctx, key, rendered, c.ttl); err != nil {
		// A failed write degrades to recompute-on-next-read.
		log.Warn().Err(err).Str("image_id", imageID).Msg("Failed to cache regenerated rendering")
	}

	return rendered, false, nil
}

// Put stores a rendered variant and returns its cache key as the storage
// reference.
func (c *RenderedCache) Put(ctx context.Context, tenantID, imageID string, ws *dicom.WindowSettings, rendered []byte) (string, error) {
	key := RenderKey(tenantID, imageID, ws)
	if err := c.backend.Set(ctx, key, rendered, c.ttl); err != nil {
		return "", fmt.Errorf("write rendered cache: %w", err)
	}
	return key, nil
}

// Invalidate drops all renderings of an image.
func (c *RenderedCache) Invalidate(ctx context.Context, tenantID, imageID string) error {
	return c.backend.Clear(ctx, tenantID+":"+imageID+":*")
}

// Sweep proactively evicts expired entries when the backend supports it
// and returns the eviction count.
func (c *RenderedCache) Sweep(ctx context.Context) int {
	if sweeper, ok := c.backend.(Sweeper); ok {
		return sweeper.Sweep(ctx)
	}
	return 0
}
