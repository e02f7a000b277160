package ai

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/textlift/enhanced-ocr-service/internal/models"
)

type fakeProvider struct {
	text     string
	err      error
	prompt   string
	mimeType string
	called   bool
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Enhance(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	p.called = true
	p.prompt = prompt
	p.mimeType = mimeType
	return p.text, p.err
}

func writeTestPNG(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	path := filepath.Join(t.TempDir(), "input.png")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write test image: %v", err)
	}
	return path
}

func TestEnhanceDisabledWithoutProvider(t *testing.T) {
	e := NewEnhancer(models.AIConfig{DefaultProvider: "gemini"})
	if e.Enabled() {
		t.Fatal("enhancer should be disabled without an API key")
	}

	got := e.Enhance(context.Background(), "/nonexistent.png", "ocr text")
	if got.Outcome != OutcomeDisabled {
		t.Fatalf("Enhance() = %+v, want disabled outcome", got)
	}
}

func TestEnhanceSuccess(t *testing.T) {
	provider := &fakeProvider{text: "corrected text"}
	e := NewEnhancerWithProvider(provider)

	got := e.Enhance(context.Background(), writeTestPNG(t), "raw ocr text")
	if got.Outcome != OutcomeSuccess || got.Text != "corrected text" {
		t.Fatalf("Enhance() = %+v", got)
	}
	if provider.mimeType != "image/png" {
		t.Errorf("mime type = %q, want image/png", provider.mimeType)
	}
	if !strings.Contains(provider.prompt, "raw ocr text") {
		t.Errorf("prompt does not embed the OCR text: %q", provider.prompt)
	}
}

func TestEnhanceAbsorbsProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("api quota exceeded")}
	e := NewEnhancerWithProvider(provider)

	got := e.Enhance(context.Background(), writeTestPNG(t), "raw ocr text")
	if got.Outcome != OutcomeFailed {
		t.Fatalf("Enhance() = %+v, want failed outcome", got)
	}
	if got.Reason != "api quota exceeded" {
		t.Errorf("reason = %q", got.Reason)
	}
}

func TestEnhanceAbsorbsUnreadableImage(t *testing.T) {
	provider := &fakeProvider{text: "never used"}
	e := NewEnhancerWithProvider(provider)

	got := e.Enhance(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "raw ocr text")
	if got.Outcome != OutcomeFailed {
		t.Fatalf("Enhance() = %+v, want failed outcome", got)
	}
	if provider.called {
		t.Error("provider called despite unreadable image")
	}
}

func TestProviderName(t *testing.T) {
	if got := NewEnhancer(models.AIConfig{}).ProviderName(); got != "disabled" {
		t.Errorf("ProviderName() = %q, want disabled", got)
	}
	if got := NewEnhancerWithProvider(&fakeProvider{}).ProviderName(); got != "fake" {
		t.Errorf("ProviderName() = %q, want fake", got)
	}
}
