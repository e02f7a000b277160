package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/textlift/enhanced-ocr-service/internal/models"
)

// Engine extracts plain text from a preprocessed bitmap. Implementations trim
// leading/trailing whitespace and perform no retries.
type Engine interface {
	Name() string
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

// NewEngine selects the configured recognition engine.
func NewEngine(cfg models.OCRConfig) (Engine, error) {
	switch cfg.Engine {
	case "tesseract", "":
		return NewTesseractEngine(cfg.Language), nil
	case "gosseract":
		engine, err := NewGosseractEngine(cfg.Language)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown OCR engine: %s", cfg.Engine)
	}
}

// encodePNG renders the bitmap into the byte form the backends consume.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
