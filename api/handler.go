package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/otiai10/gosseract/v2"

	"github.com/textlift/enhanced-ocr-service/internal/db"
	"github.com/textlift/enhanced-ocr-service/internal/models"
	"github.com/textlift/enhanced-ocr-service/internal/ocr"
	"github.com/textlift/enhanced-ocr-service/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB per request
	Version       = "1.0.0"
)

// ItemStore is the query/intake surface the HTTP layer needs.
type ItemStore interface {
	Create(ctx context.Context, objectKey, originalFilename string) (*models.WorkItem, error)
	Get(ctx context.Context, id uuid.UUID) (*models.WorkItem, error)
	List(ctx context.Context, limit int) ([]models.WorkItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Dispatcher schedules one asynchronous pipeline run per created item.
type Dispatcher interface {
	Schedule(ctx context.Context, itemID uuid.UUID) (string, error)
}

// ImageStore persists raw uploads and serves view URLs.
type ImageStore interface {
	Upload(ctx context.Context, reader io.Reader, size int64, contentType string) (string, error)
	PresignedURL(ctx context.Context, objectKey string) (string, error)
	Delete(ctx context.Context, objectKey string) error
}

// Handler handles HTTP requests for image processing
type Handler struct {
	config *models.Config
	store  ItemStore
	queue  Dispatcher
	images ImageStore
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, store ItemStore, queue Dispatcher, images ImageStore) *Handler {
	return &Handler{
		config: config,
		store:  store,
		queue:  queue,
		images: images,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Submission and status
	router.HandleFunc("/api/upload", h.UploadImages).Methods("POST")
	router.HandleFunc("/api/result/{id}", h.GetResult).Methods("GET")

	// Item listing and removal
	router.HandleFunc("/api/images", h.ListImages).Methods("GET")
	router.HandleFunc("/api/image/{id}", h.DeleteImage).Methods("DELETE")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// UploadImages accepts one or more images, creates a PENDING work item per
// file and dispatches an asynchronous pipeline run for each.
func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "File too large or invalid form data")
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		// Accept a single "image" field too
		files = r.MultipartForm.File["image"]
	}
	if len(files) == 0 {
		h.sendError(w, http.StatusBadRequest, "No files were uploaded (use 'images' field)")
		return
	}

	var imageIDs []uuid.UUID
	var taskIDs []string

	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			h.sendError(w, http.StatusBadRequest, fmt.Sprintf("Failed to open uploaded file %s", header.Filename))
			return
		}

		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			h.sendError(w, http.StatusInternalServerError, "Failed to read uploaded file")
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(data)
		}

		objectKey, err := h.images.Upload(ctx, bytes.NewReader(data), int64(len(data)), contentType)
		if err != nil {
			h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to store image: %v", err))
			return
		}

		item, err := h.store.Create(ctx, objectKey, header.Filename)
		if err != nil {
			h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create work item: %v", err))
			return
		}

		taskRef, err := h.queue.Schedule(ctx, item.ID)
		if err != nil {
			h.sendError(w, http.StatusServiceUnavailable, fmt.Sprintf("Failed to schedule processing: %v", err))
			return
		}

		imageIDs = append(imageIDs, item.ID)
		taskIDs = append(taskIDs, taskRef)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "success",
		"image_ids": imageIDs,
		"task_ids":  taskIDs,
	})
}

// GetResult returns the processing status for one item, with the final text
// once COMPLETED or the error description once FAILED.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid id")
		return
	}

	item, err := h.store.Get(ctx, id)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "error",
			"message": "Image not found",
		})
		return
	}

	response := map[string]interface{}{
		"id":       item.ID,
		"status":   item.Status,
		"filename": item.OriginalFilename,
	}
	if url, err := h.images.PresignedURL(ctx, item.ObjectKey); err == nil {
		response["imageUrl"] = url
	}

	switch item.Status {
	case models.StatusCompleted:
		if item.FinalText != nil {
			response["finalText"] = *item.FinalText
		}
	case models.StatusFailed:
		if item.FinalText != nil {
			response["error"] = *item.FinalText
		}
	}

	json.NewEncoder(w).Encode(response)
}

// ListImages returns recent work items
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	items, err := h.store.List(r.Context(), 100)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list images: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"images":  items,
		"count":   len(items),
	})
}

// DeleteImage removes a work item and its stored image
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid id")
		return
	}

	// Best effort on the stored object; the record is what matters
	if item, err := h.store.Get(ctx, id); err == nil && item.ObjectKey != "" {
		_ = h.images.Delete(ctx, item.ObjectKey)
	}

	if err := h.store.Delete(ctx, id); err != nil {
		h.sendError(w, http.StatusNotFound, "image not found")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "image deleted",
	})
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Memory    MemoryStats       `json:"memory"`
	Tesseract ServiceStatus     `json:"tesseract"`
	Database  ServiceStatus     `json:"database"`
	Storage   ServiceStatus     `json:"storage"`
	AI        map[string]string `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	tesseractStatus := h.checkTesseract()
	databaseStatus := h.checkDatabase()
	storageStatus := h.checkStorage()

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Tesseract: tesseractStatus,
		Database:  databaseStatus,
		Storage:   storageStatus,
		AI: map[string]string{
			"defaultProvider": h.config.AI.DefaultProvider,
			"ocrEngine":       h.config.OCR.Engine,
		},
	}

	// OCR is the mandatory stage; without it every run fails
	if !tesseractStatus.Available || !databaseStatus.Available {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkTesseract verifies the configured OCR backend is available: the
// binding's trained data for gosseract, the resolved executable otherwise.
func (h *Handler) checkTesseract() ServiceStatus {
	if h.config.OCR.Engine == "gosseract" {
		langs, err := gosseract.GetAvailableLanguages()
		if err != nil || len(langs) == 0 {
			return ServiceStatus{
				Available: false,
				Error:     "gosseract binding cannot reach trained language data",
			}
		}
		return ServiceStatus{
			Available: true,
			Version:   "gosseract " + gosseract.Version(),
		}
	}

	cmd := exec.Command(ocr.TesseractCmd(), "--version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return ServiceStatus{
			Available: false,
			Error:     "tesseract not found or not executable",
		}
	}

	version := "unknown"
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		version = strings.TrimSpace(lines[0])
	}
	return ServiceStatus{
		Available: true,
		Version:   version,
	}
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}
	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL",
	}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}
	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
