package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/uuid"

	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
)

// orthancConfig points a provider config at a test server.
func orthancConfig(t *testing.T, server *httptest.Server) models.ArchiveConfig {
	t.Helper()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	return models.ArchiveConfig{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		Type:         models.ArchiveTypeOrthanc,
		Endpoint:     u.Hostname(),
		Port:         port,
		Username:     "orthanc",
		PasswordHash: "orthanc",
	}
}

func TestOrthancUpload(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/instances" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		gotUser, gotPass, _ = r.BasicAuth()
		json.NewEncoder(w).Encode(map[string]string{"ID": "instance-42"})
	}))
	defer server.Close()

	provider, err := NewOrthancProvider(orthancConfig(t, server))
	if err != nil {
		t.Fatalf("NewOrthancProvider failed: %v", err)
	}
	defer provider.Close()

	payload := []byte{0x44, 0x49, 0x43, 0x4D}
	result, err := provider.Upload(context.Background(), payload, models.UploadMetadata{ArtifactID: "art-1"})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !result.Success {
		t.Errorf("upload result not successful: %s", result.Error)
	}
	if result.StoragePath != "instance-42" {
		t.Errorf("storage path = %q, want %q", result.StoragePath, "instance-42")
	}
	if !bytes.Equal(gotBody, payload) {
		t.Error("server received a different payload")
	}
	if gotContentType != "application/dicom" {
		t.Errorf("content type = %q, want application/dicom", gotContentType)
	}
	if gotUser != "orthanc" || gotPass != "orthanc" {
		t.Errorf("basic auth = %q/%q, want orthanc/orthanc", gotUser, gotPass)
	}
}

func TestOrthancUploadServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "storage full", http.StatusInternalServerError)
	}))
	defer server.Close()

	provider, err := NewOrthancProvider(orthancConfig(t, server))
	if err != nil {
		t.Fatalf("NewOrthancProvider failed: %v", err)
	}
	defer provider.Close()

	result, err := provider.Upload(context.Background(), []byte("x"), models.UploadMetadata{})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if result == nil || result.Success {
		t.Error("result should report failure")
	}
}

func TestOrthancQueryWithFilter(t *testing.T) {
	var gotFind map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tools/find" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotFind); err != nil {
			t.Errorf("decode find payload: %v", err)
		}
		json.NewEncoder(w).Encode([]string{"study-1", "study-2"})
	}))
	defer server.Close()

	provider, err := NewOrthancProvider(orthancConfig(t, server))
	if err != nil {
		t.Fatalf("NewOrthancProvider failed: %v", err)
	}
	defer provider.Close()

	result, err := provider.Query(context.Background(), models.ArchiveQuery{PatientID: "P001", Modality: "PX"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("query result not successful: %s", result.Error)
	}
	if len(result.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(result.Records))
	}
	if result.Records[0].ID != "study-1" || result.Records[0].PatientID != "P001" {
		t.Errorf("first record = %+v", result.Records[0])
	}

	if gotFind["Level"] != "Study" {
		t.Errorf("find level = %v, want Study", gotFind["Level"])
	}
	query, _ := gotFind["Query"].(map[string]interface{})
	if query["PatientID"] != "P001" {
		t.Errorf("find PatientID = %v, want P001", query["PatientID"])
	}
	if query["ModalitiesInStudy"] != "PX" {
		t.Errorf("find ModalitiesInStudy = %v, want PX", query["ModalitiesInStudy"])
	}
}

func TestOrthancQueryWithoutFilterListsStudies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/studies" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode([]string{"s1", "s2", "s3"})
	}))
	defer server.Close()

	provider, err := NewOrthancProvider(orthancConfig(t, server))
	if err != nil {
		t.Fatalf("NewOrthancProvider failed: %v", err)
	}
	defer provider.Close()

	result, err := provider.Query(context.Background(), models.ArchiveQuery{Limit: 2})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(result.Records) != 2 {
		t.Errorf("limit not applied: got %d records, want 2", len(result.Records))
	}
}

func TestOrthancDownload(t *testing.T) {
	payload := []byte("stored instance bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/instances/instance-42/file" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	provider, err := NewOrthancProvider(orthancConfig(t, server))
	if err != nil {
		t.Fatalf("NewOrthancProvider failed: %v", err)
	}
	defer provider.Close()

	data, err := provider.Download(context.Background(), "instance-42")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("downloaded payload differs from stored payload")
	}
}

func TestOrthancTestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/system" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"Name": "ORTHANC"})
	}))
	defer server.Close()

	provider, err := NewOrthancProvider(orthancConfig(t, server))
	if err != nil {
		t.Fatalf("NewOrthancProvider failed: %v", err)
	}
	defer provider.Close()

	status, err := provider.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("TestConnection failed: %v", err)
	}
	if !status.IsConnected {
		t.Error("status should report connected")
	}
	if len(status.Capabilities) == 0 {
		t.Error("connected status should carry capabilities")
	}
}

func TestOrthancTestConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	provider, err := NewOrthancProvider(orthancConfig(t, server))
	if err != nil {
		t.Fatalf("NewOrthancProvider failed: %v", err)
	}
	defer provider.Close()

	status, err := provider.TestConnection(context.Background())
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if status == nil || status.IsConnected {
		t.Error("status should report disconnected")
	}
	if status.ErrorMessage == "" {
		t.Error("status should carry an error message")
	}
}
