package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-imaging-pipeline/internal/adapters"
	"github.com/otcheredev/ris-imaging-pipeline/internal/apperrors"
	"github.com/otcheredev/ris-imaging-pipeline/internal/cache"
	"github.com/otcheredev/ris-imaging-pipeline/internal/dicom"
	"github.com/otcheredev/ris-imaging-pipeline/internal/imaging"
	"github.com/otcheredev/ris-imaging-pipeline/internal/keys"
	"github.com/otcheredev/ris-imaging-pipeline/internal/metrics"
	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
	"github.com/otcheredev/ris-imaging-pipeline/internal/repository"
	"github.com/otcheredev/ris-imaging-pipeline/internal/routing"
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
)

// ImagingService runs the per-file ingestion pipeline and serves rendered
// variants back out of the cache.
type ImagingService struct {
	archiveRepo     *repository.ArchiveRepository
	auditRepo       *repository.AuditRepository
	artifactRepo    *repository.ArtifactRepository
	providerFactory *adapters.ProviderFactory
	keyManager      *keys.Manager
	rendered        *cache.RenderedCache
	metrics         *metrics.PipelineMetrics
}

// NewImagingService creates the pipeline service. The rendered cache is
// built here so that cache misses with explicit window settings can
// regenerate through the service's own read path.
func NewImagingService(
	archiveRepo *repository.ArchiveRepository,
	auditRepo *repository.AuditRepository,
	artifactRepo *repository.ArtifactRepository,
	providerFactory *adapters.ProviderFactory,
	keyManager *keys.Manager,
	cacheBackend cache.Cache,
	cacheTTL time.Duration,
	m *metrics.PipelineMetrics,
) *ImagingService {
	s := &ImagingService{
		archiveRepo:     archiveRepo,
		auditRepo:       auditRepo,
		artifactRepo:    artifactRepo,
		providerFactory: providerFactory,
		keyManager:      keyManager,
		metrics:         m,
	}
	s.rendered = cache.NewRenderedCache(cacheBackend, cacheTTL, s.regenerateRendering)
	return s
}

// ProcessFile ingests one file end to end: validate, parse, encrypt, route,
// store, window, compress, store variants. It is the queue's worker
// function; single uploads go through it too. The returned artifact ID
// identifies everything stored for this file.
func (s *ImagingService) ProcessFile(ctx context.Context, tenantID uuid.UUID, file models.FileInput) (string, error) {
	start := time.Now()

	artifactID, err := s.processFile(ctx, tenantID, file)

	outcome := "success"
	status := "success"
	message := ""
	if err != nil {
		outcome = outcomeLabel(err)
		status = "failure"
		message = err.Error()
	}
	if s.metrics != nil {
		s.metrics.FilesProcessed.WithLabelValues(outcome).Inc()
	}
	s.recordAudit(ctx, tenantID, "upload", "image", artifactID, status, message, time.Since(start))

	return artifactID, err
}

func (s *ImagingService) processFile(ctx context.Context, tenantID uuid.UUID, file models.FileInput) (string, error) {
	encoded := isEncodedImage(file.Data)

	var parsed *dicom.ParseResult
	if !encoded {
		validation := dicom.ValidateFile(file.Data, file.Filename, file.ContentType)
		if !validation.Valid {
			return "", apperrors.NewValidationError(strings.Join(validation.Errors, "; "), nil).
				WithMetadata("filename", file.Filename)
		}
		for _, warning := range validation.Warnings {
			log.Debug().Str("filename", file.Filename).Msg(warning)
		}

		var err error
		parsed, err = dicom.Parse(file.Data)
		if err != nil {
			return "", err
		}
	}

	artifactID := uuid.NewString()

	key, keyID, err := s.keyManager.MintKey(ctx, artifactID)
	if err != nil {
		return "", apperrors.NewStorageError("failed to mint encryption key", err)
	}
	sealed, err := keys.Seal(key, file.Data)
	if err != nil {
		return "", apperrors.NewStorageError("failed to encrypt original", err)
	}

	routingCtx := enrichContext(file.Context, parsed)

	target, provider, err := s.resolveArchive(ctx, tenantID, routingCtx)
	if err != nil {
		return "", err
	}

	meta := models.UploadMetadata{
		TenantID:   tenantID,
		ArtifactID: artifactID,
		PatientID:  routingCtx.PatientID,
		LeadID:     routingCtx.LeadID,
		ImageType:  routingCtx.ImageType,
		DateTaken:  time.Now().UTC().Format("2006-01-02"),
	}

	originalMeta := meta
	originalMeta.Tier = "original"
	originalMeta.Extension = originalExtension(encoded, file)
	originalMeta.ContentType = "application/octet-stream"

	originalResult, err := s.upload(ctx, provider, target, sealed, originalMeta)
	if err != nil {
		return "", err
	}

	result, err := s.compress(parsed, encoded, file, routingCtx)
	if err != nil {
		return "", err
	}

	variantPaths := make(map[imaging.ResolutionTier]string, 3)
	for _, variant := range []imaging.RenderedVariant{result.Thumbnail, result.Preview, result.Full} {
		variantMeta := meta
		variantMeta.Tier = string(variant.Tier)
		variantMeta.Extension = "jpg"
		variantMeta.ContentType = "image/jpeg"

		uploadResult, err := s.upload(ctx, provider, target, variant.Data, variantMeta)
		if err != nil {
			return "", err
		}
		variantPaths[variant.Tier] = uploadResult.StoragePath
		if s.metrics != nil {
			s.metrics.BytesEncoded.WithLabelValues(string(variant.Tier)).Add(float64(variant.ByteSize))
		}
	}

	artifact := &models.ImageArtifact{
		ID:               artifactID,
		TenantID:         tenantID,
		ArchiveID:        target.ID,
		KeyID:            keyID,
		PatientID:        routingCtx.PatientID,
		LeadID:           routingCtx.LeadID,
		ImageType:        routingCtx.ImageType,
		Modality:         modalityOf(parsed, routingCtx),
		Filename:         file.Filename,
		Encoded:          encoded,
		OriginalPath:     originalResult.StoragePath,
		ThumbnailPath:    variantPaths[imaging.TierThumbnail],
		PreviewPath:      variantPaths[imaging.TierPreview],
		FullPath:         variantPaths[imaging.TierFull],
		OriginalSize:     len(file.Data),
		CompressionRatio: result.CompressionRatio,
	}
	if err := s.artifactRepo.Create(ctx, artifact); err != nil {
		return "", apperrors.NewStorageError("failed to record artifact", err)
	}

	// Pre-warm the base rendering; a failed write only costs a recompute.
	if _, err := s.rendered.Put(ctx, tenantID.String(), artifactID, nil, result.Full.Data); err != nil {
		log.Warn().Err(err).Str("artifact_id", artifactID).Msg("Failed to cache base rendering")
	}

	return artifactID, nil
}

// GetRendered returns the display variant of an image. A nil ws requests
// the base rendering; explicit window settings regenerate on a cache miss.
func (s *ImagingService) GetRendered(ctx context.Context, tenantID uuid.UUID, imageID string, ws *dicom.WindowSettings) ([]byte, error) {
	start := time.Now()

	data, hit, err := s.rendered.Get(ctx, tenantID.String(), imageID, ws)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		if hit {
			s.metrics.RenderedCacheHits.Inc()
		} else {
			s.metrics.RenderedCacheMiss.Inc()
		}
	}
	metric := &models.CacheMetrics{
		TenantID: tenantID,
		CacheKey: cache.RenderKey(tenantID.String(), imageID, ws),
		CacheHit: hit,
		Size:     int64(len(data)),
		Duration: time.Since(start).Milliseconds(),
	}
	if err := s.auditRepo.RecordCacheMetric(ctx, metric); err != nil {
		log.Warn().Err(err).Str("image_id", imageID).Msg("Failed to record cache metric")
	}

	return data, nil
}

// GetArtifact returns the stored record for an image
func (s *ImagingService) GetArtifact(ctx context.Context, tenantID uuid.UUID, imageID string) (*models.ImageArtifact, error) {
	return s.artifactRepo.GetByID(ctx, tenantID, imageID)
}

// ListImages returns the artifacts stored for a patient
func (s *ImagingService) ListImages(ctx context.Context, tenantID uuid.UUID, patientID string) ([]models.ImageArtifact, error) {
	return s.artifactRepo.ListByPatient(ctx, tenantID, patientID)
}

// DownloadOriginal retrieves and decrypts the original file bytes
func (s *ImagingService) DownloadOriginal(ctx context.Context, tenantID uuid.UUID, imageID string) ([]byte, *models.ImageArtifact, error) {
	start := time.Now()

	artifact, err := s.artifactRepo.GetByID(ctx, tenantID, imageID)
	if err != nil {
		return nil, nil, err
	}

	plain, err := s.fetchOriginal(ctx, artifact)
	if err != nil {
		s.recordAudit(ctx, tenantID, "download", "image", imageID, "failure", err.Error(), time.Since(start))
		return nil, nil, err
	}

	s.recordAudit(ctx, tenantID, "download", "image", imageID, "success", "", time.Since(start))
	return plain, artifact, nil
}

// SweepRenderedCache proactively evicts expired rendered variants
func (s *ImagingService) SweepRenderedCache(ctx context.Context) int {
	return s.rendered.Sweep(ctx)
}

// regenerateRendering rebuilds a display variant from the stored original:
// download, decrypt, parse, window, encode full tier.
func (s *ImagingService) regenerateRendering(ctx context.Context, tenantIDStr, imageID string, ws *dicom.WindowSettings) ([]byte, error) {
	tenantID, err := uuid.Parse(tenantIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant id %q: %w", tenantIDStr, err)
	}

	artifact, err := s.artifactRepo.GetByID(ctx, tenantID, imageID)
	if err != nil {
		return nil, err
	}

	plain, err := s.fetchOriginal(ctx, artifact)
	if err != nil {
		return nil, err
	}

	if artifact.Encoded {
		// Window settings do not apply to photographs.
		result, err := imaging.CompressEncoded(plain, imaging.DefaultOptions())
		if err != nil {
			return nil, err
		}
		return result.Full.Data, nil
	}

	parsed, err := dicom.Parse(plain)
	if err != nil {
		return nil, err
	}
	windowed := dicom.ApplyWindowingToBuffer(parsed.Pixels, ws)
	result, err := imaging.Compress(
		windowed,
		parsed.Pixels.Width,
		parsed.Pixels.Height,
		parsed.Pixels.SamplesPerPixel,
		imaging.PresetForModality(artifact.Modality),
	)
	if err != nil {
		return nil, err
	}
	return result.Full.Data, nil
}

func (s *ImagingService) fetchOriginal(ctx context.Context, artifact *models.ImageArtifact) ([]byte, error) {
	config, err := s.archiveRepo.GetByID(ctx, artifact.ArchiveID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to resolve artifact archive", err)
	}
	provider, err := s.providerFactory.GetProvider(*config)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to get archive provider", err)
	}

	sealed, err := provider.Download(ctx, artifact.OriginalPath)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to download original", err).
			WithMetadata("storage_path", artifact.OriginalPath)
	}

	key, err := s.keyManager.RetrieveKey(ctx, artifact.ID, artifact.KeyID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to retrieve encryption key", err)
	}
	plain, err := keys.Open(key, sealed)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to decrypt original", err)
	}
	return plain, nil
}

// resolveArchive picks the destination archive for an upload via the
// tenant's routing rules and returns its provider.
func (s *ImagingService) resolveArchive(ctx context.Context, tenantID uuid.UUID, routingCtx models.RoutingContext) (*models.ArchiveConfig, adapters.ArchiveProvider, error) {
	configs, err := s.archiveRepo.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("failed to load archive configs", err)
	}
	rules, err := s.archiveRepo.GetRoutingRules(ctx, tenantID)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("failed to load routing rules", err)
	}

	target, err := routing.Route(configs, rules, routingCtx)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("no archive available for upload", err)
	}

	provider, err := s.providerFactory.GetProvider(*target)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("failed to get archive provider", err)
	}
	return target, provider, nil
}

func (s *ImagingService) upload(ctx context.Context, provider adapters.ArchiveProvider, target *models.ArchiveConfig, data []byte, meta models.UploadMetadata) (*models.UploadResult, error) {
	result, err := provider.Upload(ctx, data, meta)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "failure"
		}
		s.metrics.ArchiveUploads.WithLabelValues(string(provider.Type()), status).Inc()
	}
	if err != nil {
		return nil, apperrors.NewNetworkError("archive upload failed", err).
			WithMetadata("archive", target.Name).
			WithMetadata("tier", meta.Tier)
	}
	if !result.Success {
		return nil, apperrors.NewStorageError("archive rejected upload", errors.New(result.Error)).
			WithMetadata("archive", target.Name).
			WithMetadata("tier", meta.Tier)
	}
	return result, nil
}

func (s *ImagingService) compress(parsed *dicom.ParseResult, encoded bool, file models.FileInput, routingCtx models.RoutingContext) (*imaging.CompressionResult, error) {
	if encoded {
		return imaging.CompressEncoded(file.Data, imaging.DefaultOptions())
	}
	windowed := dicom.ApplyWindowingToBuffer(parsed.Pixels, nil)
	return imaging.Compress(
		windowed,
		parsed.Pixels.Width,
		parsed.Pixels.Height,
		parsed.Pixels.SamplesPerPixel,
		imaging.PresetForModality(modalityOf(parsed, routingCtx)),
	)
}

// Audit failures never fail the caller.
func (s *ImagingService) recordAudit(ctx context.Context, tenantID uuid.UUID, action, resourceType, artifactID, status, message string, duration time.Duration) {
	err := s.auditRepo.Create(ctx, &models.AuditLog{
		TenantID:     tenantID,
		Action:       action,
		ResourceType: resourceType,
		ArtifactID:   artifactID,
		Status:       status,
		ErrorMessage: message,
		Duration:     duration.Milliseconds(),
	})
	if err != nil {
		log.Warn().Err(err).Str("action", action).Msg("Failed to write audit log")
	}
}

// isEncodedImage reports whether the payload is an already-encoded
// photograph rather than a tag-dictionary file.
func isEncodedImage(data []byte) bool {
	return bytes.HasPrefix(data, jpegMagic) || bytes.HasPrefix(data, pngMagic)
}

func originalExtension(encoded bool, file models.FileInput) string {
	if !encoded {
		return "dcm"
	}
	if bytes.HasPrefix(file.Data, pngMagic) {
		return "png"
	}
	return "jpg"
}

// enrichContext fills routing attributes the caller omitted from the
// parsed metadata.
func enrichContext(routingCtx models.RoutingContext, parsed *dicom.ParseResult) models.RoutingContext {
	if parsed == nil {
		return routingCtx
	}
	if routingCtx.PatientID == "" {
		routingCtx.PatientID = parsed.Metadata.PatientID
	}
	if routingCtx.ImageType == "" {
		routingCtx.ImageType = parsed.Metadata.Modality
	}
	return routingCtx
}

func modalityOf(parsed *dicom.ParseResult, routingCtx models.RoutingContext) string {
	if parsed != nil && parsed.Metadata.Modality != "" {
		return parsed.Metadata.Modality
	}
	return routingCtx.ImageType
}

// outcomeLabel maps a pipeline error to its metric label.
func outcomeLabel(err error) string {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return string(appErr.Kind)
	}
	return "error"
}
