package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// TesseractEngine shells out to the tesseract executable. Recognition uses a
// fixed configuration: a single uniform block of text (PSM 6) with the
// combined legacy+LSTM engine mode (OEM 3).
type TesseractEngine struct {
	language string
	run      runFunc
}

// runFunc lets tests stub the external command.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// NewTesseractEngine creates an exec-based Tesseract adapter.
func NewTesseractEngine(language string) *TesseractEngine {
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{
		language: language,
		run:      execRun,
	}
}

func (t *TesseractEngine) Name() string { return "tesseract" }

// ExtractText performs OCR on a preprocessed bitmap.
func (t *TesseractEngine) ExtractText(ctx context.Context, img image.Image) (string, error) {
	binary := TesseractCmd()
	if _, err := exec.LookPath(binary); err != nil {
		return "", fmt.Errorf("%w: executable %q not found: %v", ErrBackendUnavailable, binary, err)
	}

	data, err := encodePNG(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExecution, err)
	}

	inputFile := filepath.Join(os.TempDir(), "tess_"+uuid.New().String()+".png")
	if err := os.WriteFile(inputFile, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExecution, err)
	}
	defer os.Remove(inputFile)

	stdout, stderr, err := t.run(ctx, binary,
		inputFile, "stdout",
		"-l", t.language,
		"--psm", "6",
		"--oem", "3",
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v - %s", ErrExecution, err, strings.TrimSpace(string(stderr)))
	}

	return strings.TrimSpace(string(stdout)), nil
}

// TesseractCmd resolves the executable, honoring the TESSERACT_CMD override
// for deployments with a non-standard install path.
func TesseractCmd() string {
	if cmd := os.Getenv("TESSERACT_CMD"); cmd != "" {
		return cmd
	}
	return "tesseract"
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}
