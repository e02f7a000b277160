package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/google/uuid"

	"github.com/textlift/enhanced-ocr-service/internal/ai"
	"github.com/textlift/enhanced-ocr-service/internal/db"
	"github.com/textlift/enhanced-ocr-service/internal/models"
	"github.com/textlift/enhanced-ocr-service/internal/ocr"
)

// ErrMissingSourceFile indicates the raw image is gone from storage. Terminal
// and never retried: a missing file will not appear on a retry.
var ErrMissingSourceFile = errors.New("source image not found")

// ItemStore is the slice of the work item store the orchestrator mutates.
// Each method persists its own fixed set of fields immediately, so partial
// progress survives a crash mid-run.
type ItemStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.WorkItem, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, taskRef string) error
	SetOCRText(ctx context.Context, id uuid.UUID, text string) error
	SetEnhancedText(ctx context.Context, id uuid.UUID, text string) error
	Complete(ctx context.Context, id uuid.UUID, finalText string) error
	Fail(ctx context.Context, id uuid.UUID, description string) error
}

// FileStore is the raw image access the pipeline stages need.
type FileStore interface {
	Exists(ctx context.Context, objectKey string) (bool, error)
	LocalPath(ctx context.Context, objectKey string) (path string, cleanup func(), err error)
}

// Preprocessor normalizes a stored image for OCR.
type Preprocessor interface {
	PreprocessImage(imagePath string) (*image.Gray, error)
}

// Enhancer runs the optional AI stage; by contract it never fails the run.
type Enhancer interface {
	Enhance(ctx context.Context, imagePath, ocrText string) ai.Enhancement
}

// Orchestrator sequences the pipeline stages for one work item per dispatch:
// preprocess, OCR, AI enhancement, merge. Exactly one run ever mutates a given
// item, so no locking is needed beyond the store's write atomicity.
type Orchestrator struct {
	store    ItemStore
	files    FileStore
	pre      Preprocessor
	engine   ocr.Engine
	enhancer Enhancer
}

// NewOrchestrator wires the pipeline stages.
func NewOrchestrator(store ItemStore, files FileStore, pre Preprocessor, engine ocr.Engine, enhancer Enhancer) *Orchestrator {
	return &Orchestrator{
		store:    store,
		files:    files,
		pre:      pre,
		engine:   engine,
		enhancer: enhancer,
	}
}

// Run executes the full pipeline for one work item. Stages run strictly
// sequentially; the OCR and enhancement calls are the only blocking points.
func (o *Orchestrator) Run(ctx context.Context, itemID uuid.UUID, taskRef string) error {
	item, err := o.store.Get(ctx, itemID)
	if err != nil {
		// Record gone before the run started: nothing to mutate.
		log.Printf("[Pipeline] task %s: cannot load item %s: %v", taskRef, itemID, err)
		return err
	}

	log.Printf("[Pipeline] task %s: processing item %s (%s)", taskRef, itemID, item.OriginalFilename)

	if err := o.store.MarkProcessing(ctx, itemID, taskRef); err != nil {
		log.Printf("[Pipeline] task %s: cannot mark item %s processing: %v", taskRef, itemID, err)
		return err
	}

	// Validation: confirm the raw image is retrievable before spending any
	// work on it.
	// A storage transport error is not the same as a missing object; the
	// failure description must point at the outage, not the input.
	exists, err := o.files.Exists(ctx, item.ObjectKey)
	if err != nil {
		return o.fail(ctx, itemID, taskRef, fmt.Errorf("source image check failed for %s: %v", item.ObjectKey, err))
	}
	if !exists {
		return o.fail(ctx, itemID, taskRef, fmt.Errorf("%w: %s", ErrMissingSourceFile, item.ObjectKey))
	}

	localPath, cleanup, err := o.files.LocalPath(ctx, item.ObjectKey)
	if err != nil {
		return o.fail(ctx, itemID, taskRef, fmt.Errorf("%w: %s: %v", ErrMissingSourceFile, item.ObjectKey, err))
	}
	defer cleanup()

	// Stage A: preprocess.
	bitmap, err := o.pre.PreprocessImage(localPath)
	if err != nil {
		return o.fail(ctx, itemID, taskRef, err)
	}

	// Stage B: OCR. Persist the text immediately so it survives a later
	// stage failing.
	ocrText, err := o.engine.ExtractText(ctx, bitmap)
	if err != nil {
		return o.fail(ctx, itemID, taskRef, err)
	}
	if err := o.store.SetOCRText(ctx, itemID, ocrText); err != nil {
		return o.fail(ctx, itemID, taskRef, fmt.Errorf("persist OCR text: %w", err))
	}
	log.Printf("[Pipeline] task %s: OCR complete (%d chars)", taskRef, len(ocrText))

	// Stage C: AI enhancement on the original image. Cannot fail the run;
	// every outcome is a value.
	enhanced := o.enhancer.Enhance(ctx, localPath, ocrText)
	if err := o.store.SetEnhancedText(ctx, itemID, enhanced.Marker()); err != nil {
		return o.fail(ctx, itemID, taskRef, fmt.Errorf("persist enhanced text: %w", err))
	}

	// Stage D: merge.
	finalText := Merge(ocrText, enhanced)

	if err := o.store.Complete(ctx, itemID, finalText); err != nil {
		return o.fail(ctx, itemID, taskRef, fmt.Errorf("persist final result: %w", err))
	}
	log.Printf("[Pipeline] task %s: item %s completed", taskRef, itemID)
	return nil
}

// fail records a FAILED terminal state with a human-readable description.
func (o *Orchestrator) fail(ctx context.Context, itemID uuid.UUID, taskRef string, cause error) error {
	log.Printf("[Pipeline] task %s: item %s failed: %v", taskRef, itemID, cause)

	if err := o.store.Fail(ctx, itemID, describeFailure(cause)); err != nil {
		if errors.Is(err, db.ErrWorkItemNotFound) {
			// Deleted concurrently mid-run; the only case where a FAILED
			// state goes unrecorded.
			log.Printf("[Pipeline] task %s: item %s disappeared before failure could be recorded", taskRef, itemID)
			return cause
		}
		log.Printf("[Pipeline] task %s: could not record failure for item %s: %v", taskRef, itemID, err)
	}
	return cause
}

// describeFailure renders the error for the final_text column. A missing OCR
// backend gets a more specific message because the fix is operational, not a
// different input.
func describeFailure(cause error) string {
	if errors.Is(cause, ocr.ErrBackendUnavailable) {
		return "Processing failed: OCR backend not found or not configured correctly. " +
			"Check TESSERACT_CMD and ensure the recognition engine is installed."
	}
	return fmt.Sprintf("Processing failed: %v", cause)
}

// retryable classifies errors for a future retry policy. Nothing consults it
// yet: all mandatory-path errors are terminal and enhancement errors are
// absorbed without retry.
func retryable(err error) bool {
	return false
}
