package models

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks a work item through its lifecycle. Transitions only move
// forward: PENDING -> PROCESSING -> COMPLETED or FAILED.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// WorkItem is the persisted record tracking one uploaded image through the
// processing pipeline. Exactly one WorkItem exists per submitted image, and
// only the pipeline run for that item mutates it after creation.
type WorkItem struct {
	ID               uuid.UUID  `json:"id"`
	TaskRef          string     `json:"task_ref,omitempty"`
	ObjectKey        string     `json:"object_key"`
	OriginalFilename string     `json:"original_filename"`
	Status           Status     `json:"status"`
	OCRText          *string    `json:"ocr_text,omitempty"`
	EnhancedText     *string    `json:"enhanced_text,omitempty"`
	FinalText        *string    `json:"final_text,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
