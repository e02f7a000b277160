package ai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/disintegration/imaging"

	"github.com/textlift/enhanced-ocr-service/internal/models"
)

// Provider sends one image plus an instruction prompt to a multimodal model
// and returns the model's text. The call blocks until the full response is
// available; no streamed consumption.
type Provider interface {
	Name() string
	Enhance(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Enhancer runs the optional AI enhancement stage. It owns a reusable
// provider handle; a nil provider is the explicit unconfigured state, in
// which every call yields the disabled outcome immediately.
type Enhancer struct {
	provider Provider
}

// NewEnhancer selects a provider from config. When the chosen provider
// carries no API key the enhancer stays unconfigured, which is a valid and
// expected mode of operation.
func NewEnhancer(cfg models.AIConfig) *Enhancer {
	switch cfg.DefaultProvider {
	case "openai":
		if cfg.OpenAI.APIKey != "" {
			return &Enhancer{provider: NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)}
		}
	case "gemini", "":
		if cfg.Gemini.APIKey != "" {
			return &Enhancer{provider: NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.Model)}
		}
	}
	return &Enhancer{}
}

// NewEnhancerWithProvider wires an explicit provider.
func NewEnhancerWithProvider(p Provider) *Enhancer {
	return &Enhancer{provider: p}
}

// Enabled reports whether a provider is configured.
func (e *Enhancer) Enabled() bool { return e.provider != nil }

// ProviderName returns the configured provider's name, or "disabled".
func (e *Enhancer) ProviderName() string {
	if e.provider == nil {
		return "disabled"
	}
	return e.provider.Name()
}

// Enhance sends the ORIGINAL image (not the binarized one, which multimodal
// models read worse) together with the OCR text and asks the model for a
// corrected, layout-preserving version. It never returns an error: a failure
// in this optional stage must not abort the pipeline or discard the OCR
// result already obtained.
func (e *Enhancer) Enhance(ctx context.Context, imagePath, ocrText string) Enhancement {
	if e.provider == nil {
		return Disabled()
	}

	data, mimeType, err := loadImage(imagePath)
	if err != nil {
		return Failed(err.Error())
	}

	text, err := e.provider.Enhance(ctx, buildPrompt(ocrText), data, mimeType)
	if err != nil {
		return Failed(err.Error())
	}
	return Success(text)
}

// supported lists encodings the multimodal backends accept directly;
// everything else gets re-encoded to JPEG first.
var supported = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

func loadImage(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read image: %v", err)
	}

	mimeType := http.DetectContentType(data)
	if supported[mimeType] {
		return data, mimeType, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image for enhancement: %v", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, "", fmt.Errorf("re-encode image for enhancement: %v", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// buildPrompt constructs the single instruction prompt: cross-reference the
// image against the OCR text, correct misrecognitions, keep the visual
// structure with lightweight markup, return only the corrected text.
func buildPrompt(ocrText string) string {
	return fmt.Sprintf(`Analyze the provided image and the following OCR text extracted from it.
Your goal is to improve the accuracy and structure of the text based on the visual layout in the image.

Instructions:
1. Identify and correct errors: fix any misrecognized characters, words, or formatting issues in the OCR text by comparing it with the image content.
2. Preserve layout: maintain the original structure (paragraphs, lists, tables if any) as seen in the image. Use Markdown for formatting lists and simple tables if appropriate.
3. Contextual understanding: use the visual context to resolve ambiguities in the text.
4. Output ONLY the corrected and formatted text. Do not include any explanations, apologies, or introductory phrases like "Here is the corrected text:".

OCR Text:
%s

Corrected and Formatted Text:
`, ocrText)
}
