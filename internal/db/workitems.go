package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/textlift/enhanced-ocr-service/internal/models"
)

// ErrWorkItemNotFound is returned when no row exists (or remains) for the
// requested work item id.
var ErrWorkItemNotFound = errors.New("work item not found")

// Store persists work items. Each pipeline stage writes its own fixed set of
// fields so progress survives a crash up to the last completed stage.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a work item store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const workItemColumns = `
	id, COALESCE(task_ref, ''), object_key, COALESCE(original_filename, ''),
	status, ocr_text, enhanced_text, final_text, created_at, completed_at`

// Create inserts a new PENDING work item for an uploaded image.
func (s *Store) Create(ctx context.Context, objectKey, originalFilename string) (*models.WorkItem, error) {
	item := &models.WorkItem{
		ObjectKey:        objectKey,
		OriginalFilename: originalFilename,
		Status:           models.StatusPending,
	}

	query := `
		INSERT INTO work_items (object_key, original_filename, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := s.pool.QueryRow(ctx, query, objectKey, originalFilename, models.StatusPending).
		Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create work item: %w", err)
	}
	return item, nil
}

// Get retrieves a single work item by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id = $1`

	var item models.WorkItem
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.TaskRef, &item.ObjectKey, &item.OriginalFilename,
		&item.Status, &item.OCRText, &item.EnhancedText, &item.FinalText,
		&item.CreatedAt, &item.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWorkItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns recent work items, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]models.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items ORDER BY created_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.WorkItem
	for rows.Next() {
		var item models.WorkItem
		err := rows.Scan(
			&item.ID, &item.TaskRef, &item.ObjectKey, &item.OriginalFilename,
			&item.Status, &item.OCRText, &item.EnhancedText, &item.FinalText,
			&item.CreatedAt, &item.CompletedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Delete removes a work item. Deletion is caller policy, never the pipeline's.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM work_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkItemNotFound
	}
	return nil
}

// MarkProcessing records the dispatched task reference and moves the item to
// PROCESSING. Fields written: task_ref, status.
func (s *Store) MarkProcessing(ctx context.Context, id uuid.UUID, taskRef string) error {
	return s.update(ctx, id,
		`UPDATE work_items SET task_ref = $2, status = $3 WHERE id = $1`,
		taskRef, models.StatusProcessing)
}

// SetOCRText persists the OCR stage output. Fields written: ocr_text.
func (s *Store) SetOCRText(ctx context.Context, id uuid.UUID, text string) error {
	return s.update(ctx, id,
		`UPDATE work_items SET ocr_text = $2 WHERE id = $1`, text)
}

// SetEnhancedText persists the enhancement stage output (success text or a
// disabled/failed marker). Fields written: enhanced_text.
func (s *Store) SetEnhancedText(ctx context.Context, id uuid.UUID, text string) error {
	return s.update(ctx, id,
		`UPDATE work_items SET enhanced_text = $2 WHERE id = $1`, text)
}

// Complete finishes a successful run. Fields written: status, final_text,
// completed_at.
func (s *Store) Complete(ctx context.Context, id uuid.UUID, finalText string) error {
	return s.update(ctx, id,
		`UPDATE work_items SET status = $2, final_text = $3, completed_at = $4 WHERE id = $1`,
		models.StatusCompleted, finalText, time.Now().UTC())
}

// Fail finishes a failed run, recording a human-readable description. Fields
// written: status, final_text, completed_at.
func (s *Store) Fail(ctx context.Context, id uuid.UUID, description string) error {
	return s.update(ctx, id,
		`UPDATE work_items SET status = $2, final_text = $3, completed_at = $4 WHERE id = $1`,
		models.StatusFailed, description, time.Now().UTC())
}

func (s *Store) update(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkItemNotFound
	}
	return nil
}
