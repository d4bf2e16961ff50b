package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

// OrthancProvider implements ArchiveProvider against an Orthanc-style PACS
// REST bridge: POST /instances to store, GET /studies and POST /tools/find
// to query, GET /instances/{id}/file to retrieve.
type OrthancProvider struct {
	BaseProvider
	client   *http.Client
	baseURL  string
	username string
	password string
}

// NewOrthancProvider creates a new Orthanc provider
func NewOrthancProvider(config models.ArchiveConfig) (*OrthancProvider, error) {
	scheme := "http"
	if config.Port == 443 {
		scheme = "https"
	}
	port := config.Port
	if port == 0 {
		port = 8042
	}
	baseURL := fmt.Sprintf("%s://%s:%d", scheme, config.Endpoint, port)

	return &OrthancProvider{
		BaseProvider: BaseProvider{config: config},
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:  baseURL,
		username: config.Username,
		password: config.PasswordHash, // In production, decrypt this
	}, nil
}

func (o *OrthancProvider) Type() models.ArchiveType {
	return models.ArchiveTypeOrthanc
}

func (o *OrthancProvider) Capabilities() []string {
	return []string{"store", "query", "retrieve"}
}

// Upload stores a payload via POST /instances
func (o *OrthancProvider) Upload(ctx context.Context, data []byte, meta models.UploadMetadata) (*models.UploadResult, error) {
	uploadURL := fmt.Sprintf("%s/instances", o.baseURL)

	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	o.addAuth(req)
	req.Header.Set("Content-Type", "application/dicom")

	resp, err := o.client.Do(req)
	if err != nil {
		return &models.UploadResult{
			Success:   false,
			ArchiveID: o.config.ID,
			Error:     err.Error(),
		}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &models.UploadResult{
			Success:   false,
			ArchiveID: o.config.ID,
			Error:     fmt.Sprintf("archive returned status %d", resp.StatusCode),
		}, fmt.Errorf("archive returned status %d: %s", resp.StatusCode, string(body))
	}

	var stored struct {
		ID string `json:"ID"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &models.UploadResult{
		Success:     true,
		ArchiveID:   o.config.ID,
		StoragePath: stored.ID,
		URL:         fmt.Sprintf("%s/instances/%s", o.baseURL, stored.ID),
	}, nil
}

// Query searches for studies; a non-empty filter goes through the
// tools/find equivalent, an empty one lists all studies.
func (o *OrthancProvider) Query(ctx context.Context, q models.ArchiveQuery) (*models.QueryResult, error) {
	if q.PatientID == "" && q.PatientName == "" && q.StudyDate == "" && q.Modality == "" {
		return o.listStudies(ctx, q.Limit)
	}
	return o.findStudies(ctx, q)
}

func (o *OrthancProvider) listStudies(ctx context.Context, limit int) (*models.QueryResult, error) {
	queryURL := fmt.Sprintf("%s/studies", o.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	o.addAuth(req)
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return &models.QueryResult{Success: false, Error: err.Error()},
			fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &models.QueryResult{Success: false, Error: fmt.Sprintf("archive returned status %d", resp.StatusCode)},
			fmt.Errorf("archive returned status %d: %s", resp.StatusCode, string(body))
	}

	var ids []string
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	records := make([]models.ArchiveRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, models.ArchiveRecord{ID: id})
	}
	return &models.QueryResult{Success: true, Records: records}, nil
}

func (o *OrthancProvider) findStudies(ctx context.Context, q models.ArchiveQuery) (*models.QueryResult, error) {
	find := map[string]interface{}{
		"Level": "Study",
		"Query": map[string]string{},
	}
	query := find["Query"].(map[string]string)
	if q.PatientID != "" {
		query["PatientID"] = q.PatientID
	}
	if q.PatientName != "" {
		query["PatientName"] = q.PatientName
	}
	if q.StudyDate != "" {
		query["StudyDate"] = q.StudyDate
	}
	if q.Modality != "" {
		query["ModalitiesInStudy"] = q.Modality
	}
	if q.Limit > 0 {
		find["Limit"] = q.Limit
	}

	payload, err := json.Marshal(find)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	findURL := fmt.Sprintf("%s/tools/find", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", findURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	o.addAuth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return &models.QueryResult{Success: false, Error: err.Error()},
			fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &models.QueryResult{Success: false, Error: fmt.Sprintf("archive returned status %d", resp.StatusCode)},
			fmt.Errorf("archive returned status %d: %s", resp.StatusCode, string(body))
	}

	var ids []string
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	records := make([]models.ArchiveRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, models.ArchiveRecord{
			ID:        id,
			PatientID: q.PatientID,
		})
	}
	return &models.QueryResult{Success: true, Records: records}, nil
}

// Download retrieves a stored payload via GET /instances/{id}/file
func (o *OrthancProvider) Download(ctx context.Context, id string) ([]byte, error) {
	downloadURL := fmt.Sprintf("%s/instances/%s/file", o.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, "GET", downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	o.addAuth(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("archive returned status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// TestConnection probes the archive's system endpoint
func (o *OrthancProvider) TestConnection(ctx context.Context) (*models.ConnectionStatus, error) {
	start := time.Now()
	status := &models.ConnectionStatus{
		LastChecked: start,
	}

	systemURL := fmt.Sprintf("%s/system", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", systemURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	o.addAuth(req)

	resp, err := o.client.Do(req)
	status.ResponseTime = time.Since(start).Milliseconds()

	if err != nil {
		status.IsConnected = false
		status.ErrorMessage = err.Error()
		return status, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status.IsConnected = false
		status.ErrorMessage = fmt.Sprintf("archive returned status %d", resp.StatusCode)
		return status, fmt.Errorf("archive returned status %d", resp.StatusCode)
	}

	status.IsConnected = true
	status.Capabilities = o.Capabilities()
	return status, nil
}

// Close closes the provider
func (o *OrthancProvider) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

// addAuth adds basic authentication to the request
func (o *OrthancProvider) addAuth(req *http.Request) {
	if o.username != "" && o.password != "" {
		req.SetBasicAuth(o.username, o.password)
	}
}
