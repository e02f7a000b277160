package ocr

import "errors"

var (
	// ErrImageRead indicates the input bytes could not be decoded as an image
	// (corrupt data, unreadable path, unsupported format). Deterministic for a
	// given input, so never worth retrying.
	ErrImageRead = errors.New("image could not be read")

	// ErrBackendUnavailable indicates the recognition engine executable or
	// binding cannot be located or initialized. This is a deployment defect,
	// not a per-image problem, and is surfaced distinctly so operators fix the
	// installation instead of re-submitting images.
	ErrBackendUnavailable = errors.New("OCR backend unavailable")

	// ErrExecution indicates the recognition engine ran but failed.
	ErrExecution = errors.New("OCR execution failed")
)
