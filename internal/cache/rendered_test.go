package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/otcheredev/ris-imaging-pipeline/internal/dicom"
)

func TestRenderedCachePutGet(t *testing.T) {
	ctx := context.Background()
	rc := NewRenderedCache(NewMemoryCache(), time.Minute, nil)

	ref, err := rc.Put(ctx, "t1", "img1", nil, []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ref != "t1:img1:base" {
		t.Errorf("storage ref = %q, want cache key", ref)
	}

	data, hit, err := rc.Get(ctx, "t1", "img1", nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Error("expected a cache hit")
	}
	if string(data) != "jpeg-bytes" {
		t.Errorf("Get = %q", data)
	}
}

func TestRenderedCacheMissWithoutRegenerator(t *testing.T) {
	rc := NewRenderedCache(NewMemoryCache(), time.Minute, nil)

	_, _, err := rc.Get(context.Background(), "t1", "img1", nil)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get = %v, want ErrCacheMiss", err)
	}
}

func TestRenderedCacheRegeneratesOnMiss(t *testing.T) {
	ctx := context.Background()
	calls := 0
	regen := func(ctx context.Context, tenantID, imageID string, ws *dicom.WindowSettings) ([]byte, error) {
		calls++
		if ws == nil || ws.Center != 1000 {
			t.Errorf("regenerator got ws %+v, want center 1000", ws)
		}
		return []byte("regenerated"), nil
	}

	rc := NewRenderedCache(NewMemoryCache(), time.Minute, regen)
	ws := &dicom.WindowSettings{Center: 1000, Width: 2000}

	data, hit, err := rc.Get(ctx, "t1", "img1", ws)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("regenerated read should not report a hit")
	}
	if string(data) != "regenerated" {
		t.Errorf("Get = %q", data)
	}

	// The regenerated variant is cached; a second read hits.
	_, hit, err = rc.Get(ctx, "t1", "img1", ws)
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if !hit || calls != 1 {
		t.Errorf("hit = %v, regenerator calls = %d; want cached result", hit, calls)
	}
}

func TestRenderedCacheRegeneratorFailure(t *testing.T) {
	boom := errors.New("archive offline")
	regen := func(ctx context.Context, tenantID, imageID string, ws *dicom.WindowSettings) ([]byte, error) {
		return nil, boom
	}

	rc := NewRenderedCache(NewMemoryCache(), time.Minute, regen)
	_, _, err := rc.Get(context.Background(), "t1", "img1", &dicom.WindowSettings{Center: 1, Width: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("Get = %v, want wrapped regenerator error", err)
	}
}

func TestRenderedCacheExpiry(t *testing.T) {
	ctx := context.Background()
	rc := NewRenderedCache(NewMemoryCache(), 10*time.Millisecond, nil)

	if _, err := rc.Put(ctx, "t1", "img1", nil, []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	_, _, err := rc.Get(ctx, "t1", "img1", nil)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired Get = %v, want ErrCacheMiss", err)
	}

	if evicted := rc.Sweep(ctx); evicted != 1 {
		t.Errorf("Sweep = %d, want 1", evicted)
	}
}

func TestRenderedCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	rc := NewRenderedCache(NewMemoryCache(), time.Minute, nil)

	rc.Put(ctx, "t1", "img1", nil, []byte("base"))
	rc.Put(ctx, "t1", "img1", &dicom.WindowSettings{Center: 1, Width: 2}, []byte("windowed"))
	rc.Put(ctx, "t1", "img2", nil, []byte("other"))

	if err := rc.Invalidate(ctx, "t1", "img1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if _, _, err := rc.Get(ctx, "t1", "img1", nil); !errors.Is(err, ErrCacheMiss) {
		t.Error("base rendering survived invalidation")
	}
	if _, _, err := rc.Get(ctx, "t1", "img1", &dicom.WindowSettings{Center: 1, Width: 2}); !errors.Is(err, ErrCacheMiss) {
		t.Error("windowed rendering survived invalidation")
	}
	if _, hit, _ := rc.Get(ctx, "t1", "img2", nil); !hit {
		t.Error("unrelated image was invalidated")
	}
}
