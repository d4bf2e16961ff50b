package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

// ObjectStoreProvider implements ArchiveProvider against a cloud
// object-storage bridge exposing PUT/GET/DELETE object operations on a
// bucket. It cannot run content-based query and reports that as a typed
// failure.
type ObjectStoreProvider struct {
	BaseProvider
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewObjectStoreProvider creates a new object storage provider
func NewObjectStoreProvider(config models.ArchiveConfig) (*ObjectStoreProvider, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("object storage config requires a bucket")
	}

	scheme := "https"
	if config.Port != 0 && config.Port != 443 {
		scheme = "http"
	}
	base := fmt.Sprintf("%s://%s", scheme, config.Endpoint)
	if config.Port != 0 && config.Port != 443 && config.Port != 80 {
		base = fmt.Sprintf("%s://%s:%d", scheme, config.Endpoint, config.Port)
	}

	return &ObjectStoreProvider{
		BaseProvider: BaseProvider{config: config},
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: fmt.Sprintf("%s/%s", base, config.Bucket),
		apiKey:  config.APIKey,
	}, nil
}

func (s *ObjectStoreProvider) Type() models.ArchiveType {
	return models.ArchiveTypeObjectStore
}

func (s *ObjectStoreProvider) Capabilities() []string {
	return []string{"store", "retrieve"}
}

// Upload stores a payload via PUT, tagging it with image-type and
// upload-date object metadata.
func (s *ObjectStoreProvider) Upload(ctx context.Context, data []byte, meta models.UploadMetadata) (*models.UploadResult, error) {
	path := storagePath(meta, s.config.PathPrefix)
	objectURL := s.objectURL(path)

	req, err := http.NewRequestWithContext(ctx, "PUT", objectURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.addAuth(req)
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", "private, max-age=31536000")
	if meta.ImageType != "" {
		req.Header.Set("x-meta-image-type", meta.ImageType)
	}
	req.Header.Set("x-meta-upload-date", time.Now().UTC().Format(time.RFC3339))

	resp, err := s.client.Do(req)
	if err != nil {
		return &models.UploadResult{
			Success:   false,
			ArchiveID: s.config.ID,
			Error:     err.Error(),
		}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return &models.UploadResult{
			Success:   false,
			ArchiveID: s.config.ID,
			Error:     fmt.Sprintf("storage returned status %d", resp.StatusCode),
		}, fmt.Errorf("storage returned status %d: %s", resp.StatusCode, string(body))
	}

	return &models.UploadResult{
		Success:     true,
		ArchiveID:   s.config.ID,
		StoragePath: path,
		URL:         objectURL,
	}, nil
}

// Query is not supported: object storage has no content index.
func (s *ObjectStoreProvider) Query(ctx context.Context, q models.ArchiveQuery) (*models.QueryResult, error) {
	return &models.QueryResult{
		Success: false,
		Error:   "query not supported for object storage archives",
	}, nil
}

// Download retrieves a stored payload via GET
func (s *ObjectStoreProvider) Download(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.objectURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.addAuth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("storage returned status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// Delete removes a stored object
func (s *ObjectStoreProvider) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", s.objectURL(id), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	s.addAuth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("storage returned status %d", resp.StatusCode)
	}
	return nil
}

// TestConnection probes the bucket endpoint
func (s *ObjectStoreProvider) TestConnection(ctx context.Context) (*models.ConnectionStatus, error) {
	start := time.Now()
	status := &models.ConnectionStatus{
		LastChecked: start,
	}

	req, err := http.NewRequestWithContext(ctx, "HEAD", s.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	s.addAuth(req)

	resp, err := s.client.Do(req)
	status.ResponseTime = time.Since(start).Milliseconds()

	if err != nil {
		status.IsConnected = false
		status.ErrorMessage = err.Error()
		return status, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		status.IsConnected = false
		status.ErrorMessage = fmt.Sprintf("storage returned status %d", resp.StatusCode)
		return status, fmt.Errorf("storage returned status %d", resp.StatusCode)
	}

	status.IsConnected = true
	status.Capabilities = s.Capabilities()
	return status, nil
}

// Close closes the provider
func (s *ObjectStoreProvider) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *ObjectStoreProvider) objectURL(path string) string {
	// Path segments are namespace/artifact/timestamp/tier components that
	// never need escaping; slashes are significant.
	return fmt.Sprintf("%s/%s", s.baseURL, path)
}

// addAuth adds bearer authentication to the request
func (s *ObjectStoreProvider) addAuth(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	}
}
