package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// GosseractEngine runs Tesseract in-process through its C API binding,
// avoiding a subprocess per image. Same fixed recognition configuration as
// the exec adapter: single uniform text block.
type GosseractEngine struct {
	language string
}

// NewGosseractEngine verifies the binding can reach its trained data before
// returning an engine, so a broken installation surfaces at startup.
func NewGosseractEngine(language string) (*GosseractEngine, error) {
	if language == "" {
		language = "eng"
	}
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(langs) == 0 {
		return nil, fmt.Errorf("%w: no trained language data installed", ErrBackendUnavailable)
	}
	return &GosseractEngine{language: language}, nil
}

func (g *GosseractEngine) Name() string { return "gosseract" }

// ExtractText performs OCR on a preprocessed bitmap.
func (g *GosseractEngine) ExtractText(ctx context.Context, img image.Image) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	data, err := encodePNG(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExecution, err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(g.language); err != nil {
		return "", fmt.Errorf("%w: set language: %v", ErrBackendUnavailable, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("%w: set page seg mode: %v", ErrExecution, err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("%w: set image: %v", ErrExecution, err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return strings.TrimSpace(text), nil
}
