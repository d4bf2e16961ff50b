package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-imaging-pipeline/internal/apperrors"
	"github.com/otcheredev/ris-imaging-pipeline/internal/dicom"
	"github.com/otcheredev/ris-imaging-pipeline/internal/middleware"
	"github.com/otcheredev/ris-imaging-pipeline/internal/models"
	"github.com/otcheredev/ris-imaging-pipeline/internal/queue"
	"github.com/otcheredev/ris-imaging-pipeline/internal/repository"
	"github.com/otcheredev/ris-imaging-pipeline/internal/services"
)

// maxUploadBytes bounds multipart memory use; larger parts spill to disk.
const maxUploadBytes = 64 << 20

type ImagingHandler struct {
	imagingService *services.ImagingService
	batchQueue     *queue.BatchQueue
}

func NewImagingHandler(imagingService *services.ImagingService, batchQueue *queue.BatchQueue) *ImagingHandler {
	return &ImagingHandler{
		imagingService: imagingService,
		batchQueue:     batchQueue,
	}
}

// UploadImage processes a single file synchronously
func (h *ImagingHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := middleware.GetTenantID(ctx)
	if !ok {
		http.Error(w, "Tenant ID not found", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	input, err := readFileInput(file, header, routingContextFromForm(r))
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	artifactID, err := h.imagingService.ProcessFile(ctx, tenantID, input)
	if err != nil {
		log.Error().Err(err).Str("filename", input.Filename).Msg("Upload failed")
		writePipelineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"artifact_id": artifactID})
}

// SubmitBatch enqueues a multi-file job and returns its ID immediately
func (h *ImagingHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		http.Error(w, "Tenant ID not found", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	routingCtx := routingContextFromForm(r)
	var files []models.FileInput
	for _, header := range r.MultipartForm.File["files"] {
		part, err := header.Open()
		if err != nil {
			http.Error(w, "Failed to read file", http.StatusBadRequest)
			return
		}
		input, err := readFileInput(part, header, routingCtx)
		part.Close()
		if err != nil {
			http.Error(w, "Failed to read file", http.StatusBadRequest)
			return
		}
		files = append(files, input)
	}

	jobID, err := h.batchQueue.Submit(tenantID, files)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": jobID.String()})
}

// GetJobStatus returns progress and per-file results for a batch job
func (h *ImagingHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	status, err := h.batchQueue.GetStatus(jobID)
	if err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// CancelJob requests cancellation of a batch job. Files already being
// processed run to completion; remaining files are skipped.
func (h *ImagingHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	if !h.batchQueue.Cancel(jobID) {
		http.Error(w, "Job not found or already finished", http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// GetRenderedImage serves the display variant of a stored image. Optional
// center and width query parameters request an explicit window; both must
// be present together.
func (h *ImagingHandler) GetRenderedImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := middleware.GetTenantID(ctx)
	if !ok {
		http.Error(w, "Tenant ID not found", http.StatusBadRequest)
		return
	}

	imageID := chi.URLParam(r, "id")
	ws, err := windowFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := h.imagingService.GetRendered(ctx, tenantID, imageID, ws)
	if err != nil {
		if errors.Is(err, repository.ErrArtifactNotFound) {
			http.Error(w, "Image not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("image_id", imageID).Msg("Failed to get rendered image")
		writePipelineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(data)
}

// GetImage returns the stored record for an image
func (h *ImagingHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := middleware.GetTenantID(ctx)
	if !ok {
		http.Error(w, "Tenant ID not found", http.StatusBadRequest)
		return
	}

	imageID := chi.URLParam(r, "id")
	artifact, err := h.imagingService.GetArtifact(ctx, tenantID, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrArtifactNotFound) {
			http.Error(w, "Image not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("image_id", imageID).Msg("Failed to get image")
		http.Error(w, "Failed to get image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(artifact)
}

// DownloadOriginal serves the decrypted original file bytes
func (h *ImagingHandler) DownloadOriginal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := middleware.GetTenantID(ctx)
	if !ok {
		http.Error(w, "Tenant ID not found", http.StatusBadRequest)
		return
	}

	imageID := chi.URLParam(r, "id")
	data, artifact, err := h.imagingService.DownloadOriginal(ctx, tenantID, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrArtifactNotFound) {
			http.Error(w, "Image not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("image_id", imageID).Msg("Failed to download original")
		writePipelineError(w, err)
		return
	}

	contentType := "application/octet-stream"
	if artifact.Encoded {
		contentType = "image/jpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// ListImages returns the stored artifacts for a patient
func (h *ImagingHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID, ok := middleware.GetTenantID(ctx)
	if !ok {
		http.Error(w, "Tenant ID not found", http.StatusBadRequest)
		return
	}

	patientID := r.URL.Query().Get("patient_id")
	if patientID == "" {
		http.Error(w, "patient_id is required", http.StatusBadRequest)
		return
	}

	artifacts, err := h.imagingService.ListImages(ctx, tenantID, patientID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list images")
		http.Error(w, "Failed to list images", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(artifacts)
}

func readFileInput(file multipart.File, header *multipart.FileHeader, routingCtx models.RoutingContext) (models.FileInput, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return models.FileInput{}, err
	}
	return models.FileInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Context:     routingCtx,
	}, nil
}

func routingContextFromForm(r *http.Request) models.RoutingContext {
	return models.RoutingContext{
		Location:  r.FormValue("location"),
		ImageType: r.FormValue("image_type"),
		PatientID: r.FormValue("patient_id"),
		LeadID:    r.FormValue("lead_id"),
	}
}

func windowFromQuery(r *http.Request) (*dicom.WindowSettings, error) {
	centerStr := r.URL.Query().Get("center")
	widthStr := r.URL.Query().Get("width")
	if centerStr == "" && widthStr == "" {
		return nil, nil
	}
	if centerStr == "" || widthStr == "" {
		return nil, errors.New("center and width must be supplied together")
	}
	center, err := strconv.ParseFloat(centerStr, 64)
	if err != nil {
		return nil, errors.New("center must be numeric")
	}
	width, err := strconv.ParseFloat(widthStr, 64)
	if err != nil {
		return nil, errors.New("width must be numeric")
	}
	return &dicom.WindowSettings{Center: center, Width: width}, nil
}

// writePipelineError maps the error taxonomy to HTTP. The response body
// carries only the stable user-facing message; diagnostic detail stays in
// logs.
func writePipelineError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperrors.KindValidation, apperrors.KindUnsupportedFormat:
		status = http.StatusBadRequest
	case apperrors.KindParse, apperrors.KindPixelData, apperrors.KindConversion:
		status = http.StatusUnprocessableEntity
	case apperrors.KindNetwork:
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":       appErr.UserMessage(),
		"recoverable": appErr.Recoverable,
		"suggestions": appErr.Suggestions,
	})
}
