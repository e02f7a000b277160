package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/textlift/enhanced-ocr-service/internal/db"
	"github.com/textlift/enhanced-ocr-service/internal/models"
)

type fakeItemStore struct {
	items   map[uuid.UUID]*models.WorkItem
	created []string
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{items: map[uuid.UUID]*models.WorkItem{}}
}

func (s *fakeItemStore) Create(ctx context.Context, objectKey, originalFilename string) (*models.WorkItem, error) {
	item := &models.WorkItem{
		ID:               uuid.New(),
		ObjectKey:        objectKey,
		OriginalFilename: originalFilename,
		Status:           models.StatusPending,
	}
	s.items[item.ID] = item
	s.created = append(s.created, originalFilename)
	return item, nil
}

func (s *fakeItemStore) Get(ctx context.Context, id uuid.UUID) (*models.WorkItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, db.ErrWorkItemNotFound
	}
	return item, nil
}

func (s *fakeItemStore) List(ctx context.Context, limit int) ([]models.WorkItem, error) {
	var out []models.WorkItem
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out, nil
}

func (s *fakeItemStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.items[id]; !ok {
		return db.ErrWorkItemNotFound
	}
	delete(s.items, id)
	return nil
}

type fakeDispatcher struct {
	scheduled []uuid.UUID
	err       error
}

func (d *fakeDispatcher) Schedule(ctx context.Context, itemID uuid.UUID) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	d.scheduled = append(d.scheduled, itemID)
	return uuid.New().String(), nil
}

type fakeImageStore struct {
	uploads int
	deleted []string
}

func (f *fakeImageStore) Upload(ctx context.Context, reader io.Reader, size int64, contentType string) (string, error) {
	f.uploads++
	return "2026/08/" + uuid.New().String() + ".png", nil
}

func (f *fakeImageStore) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	return "http://minio.local/" + objectKey, nil
}

func (f *fakeImageStore) Delete(ctx context.Context, objectKey string) error {
	f.deleted = append(f.deleted, objectKey)
	return nil
}

func newTestHandler() (*Handler, *fakeItemStore, *fakeDispatcher, *fakeImageStore) {
	store := newFakeItemStore()
	queue := &fakeDispatcher{}
	images := &fakeImageStore{}
	config := &models.Config{
		OCR: models.OCRConfig{Engine: "tesseract"},
		AI:  models.AIConfig{DefaultProvider: "gemini"},
	}
	return NewHandler(config, store, queue, images), store, queue, images
}

func multipartBody(t *testing.T, field string, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range filenames {
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write([]byte("fake image bytes"))
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestUploadImages(t *testing.T) {
	handler, store, queue, images := newTestHandler()
	router := handler.SetupRoutes()

	body, contentType := multipartBody(t, "images", "a.png", "b.png")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Status   string   `json:"status"`
		ImageIDs []string `json:"image_ids"`
		TaskIDs  []string `json:"task_ids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("status = %q", resp.Status)
	}
	if len(resp.ImageIDs) != 2 || len(resp.TaskIDs) != 2 {
		t.Errorf("ids = %d, tasks = %d, want 2 each", len(resp.ImageIDs), len(resp.TaskIDs))
	}
	if images.uploads != 2 || len(store.created) != 2 || len(queue.scheduled) != 2 {
		t.Errorf("uploads=%d created=%d scheduled=%d, want 2 each",
			images.uploads, len(store.created), len(queue.scheduled))
	}
}

func TestUploadAcceptsSingleImageField(t *testing.T) {
	handler, _, queue, _ := newTestHandler()
	router := handler.SetupRoutes()

	body, contentType := multipartBody(t, "image", "scan.jpg")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(queue.scheduled) != 1 {
		t.Errorf("scheduled = %d, want 1", len(queue.scheduled))
	}
}

func TestUploadWithoutFiles(t *testing.T) {
	handler, _, _, _ := newTestHandler()
	router := handler.SetupRoutes()

	body, contentType := multipartBody(t, "unrelated")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadSchedulingFailure(t *testing.T) {
	handler, _, queue, _ := newTestHandler()
	queue.err = errors.New("queue full")
	router := handler.SetupRoutes()

	body, contentType := multipartBody(t, "images", "a.png")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func getJSON(t *testing.T, router http.Handler, url string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, body
}

func TestGetResultCompleted(t *testing.T) {
	handler, store, _, _ := newTestHandler()
	router := handler.SetupRoutes()

	item, _ := store.Create(context.Background(), "2026/08/key.png", "scan.png")
	final := "corrected text"
	item.Status = models.StatusCompleted
	item.FinalText = &final

	code, body := getJSON(t, router, "/api/result/"+item.ID.String())
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != string(models.StatusCompleted) {
		t.Errorf("status field = %v", body["status"])
	}
	if body["finalText"] != "corrected text" {
		t.Errorf("finalText = %v", body["finalText"])
	}
	if body["filename"] != "scan.png" {
		t.Errorf("filename = %v", body["filename"])
	}
	if body["imageUrl"] != "http://minio.local/2026/08/key.png" {
		t.Errorf("imageUrl = %v", body["imageUrl"])
	}
	if _, ok := body["error"]; ok {
		t.Error("error key present on a completed item")
	}
}

func TestGetResultFailed(t *testing.T) {
	handler, store, _, _ := newTestHandler()
	router := handler.SetupRoutes()

	item, _ := store.Create(context.Background(), "2026/08/key.png", "scan.png")
	desc := "Processing failed: source image not found"
	item.Status = models.StatusFailed
	item.FinalText = &desc

	code, body := getJSON(t, router, "/api/result/"+item.ID.String())
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["error"] != desc {
		t.Errorf("error = %v", body["error"])
	}
	if _, ok := body["finalText"]; ok {
		t.Error("finalText present on a failed item")
	}
}

func TestGetResultPending(t *testing.T) {
	handler, store, _, _ := newTestHandler()
	router := handler.SetupRoutes()

	item, _ := store.Create(context.Background(), "2026/08/key.png", "scan.png")

	code, body := getJSON(t, router, "/api/result/"+item.ID.String())
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != string(models.StatusPending) {
		t.Errorf("status = %v", body["status"])
	}
	if _, ok := body["finalText"]; ok {
		t.Error("finalText present before completion")
	}
}

func TestGetResultNotFound(t *testing.T) {
	handler, _, _, _ := newTestHandler()
	router := handler.SetupRoutes()

	code, body := getJSON(t, router, "/api/result/"+uuid.New().String())
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
	if body["message"] != "Image not found" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestGetResultInvalidID(t *testing.T) {
	handler, _, _, _ := newTestHandler()
	router := handler.SetupRoutes()

	code, _ := getJSON(t, router, "/api/result/not-a-uuid")
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestDeleteImage(t *testing.T) {
	handler, store, _, images := newTestHandler()
	router := handler.SetupRoutes()

	item, _ := store.Create(context.Background(), "2026/08/key.png", "scan.png")

	req := httptest.NewRequest(http.MethodDelete, "/api/image/"+item.ID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if _, err := store.Get(context.Background(), item.ID); err == nil {
		t.Error("item still present after delete")
	}
	if len(images.deleted) != 1 || images.deleted[0] != "2026/08/key.png" {
		t.Errorf("stored object not removed: %v", images.deleted)
	}
}

func TestListImages(t *testing.T) {
	handler, store, _, _ := newTestHandler()
	router := handler.SetupRoutes()

	store.Create(context.Background(), "k1.png", "a.png")
	store.Create(context.Background(), "k2.png", "b.png")

	code, body := getJSON(t, router, "/api/images")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}
}

func TestHealthHonorsTesseractOverride(t *testing.T) {
	script := filepath.Join(t.TempDir(), "tesseract-custom")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho \"tesseract 5.3.0\"\n"), 0755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	t.Setenv("TESSERACT_CMD", script)

	handler, _, _, _ := newTestHandler()
	router := handler.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Tesseract.Available {
		t.Fatalf("tesseract reported unavailable with override set: %+v", resp.Tesseract)
	}
	if resp.Tesseract.Version != "tesseract 5.3.0" {
		t.Errorf("version = %q", resp.Tesseract.Version)
	}
}

func TestHealthReportsMissingTesseract(t *testing.T) {
	t.Setenv("TESSERACT_CMD", filepath.Join(t.TempDir(), "no-such-tesseract"))

	handler, _, _, _ := newTestHandler()
	router := handler.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tesseract.Available {
		t.Fatal("tesseract reported available for a missing binary")
	}
}

func TestHealthReportsDependencies(t *testing.T) {
	handler, _, _, _ := newTestHandler()
	router := handler.SetupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// No database pool in unit tests, so the service must report degraded.
	if resp.Database.Available {
		t.Error("database reported available without a pool")
	}
	if resp.Status != "degraded" || rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %q code = %d, want degraded/503", resp.Status, rec.Code)
	}
	if resp.AI["defaultProvider"] != "gemini" {
		t.Errorf("ai info = %v", resp.AI)
	}
}
