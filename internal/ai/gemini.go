package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider enhances OCR text through Google's multimodal models. The
// underlying client is created lazily on first use and reused for the life
// of the process.
type GeminiProvider struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiProvider creates a Gemini provider handle.
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{
		apiKey: apiKey,
		model:  model,
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) handle(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		p.client, p.initErr = genai.NewClient(ctx, option.WithAPIKey(p.apiKey))
	})
	return p.client, p.initErr
}

// Enhance sends image + prompt and blocks until the full response arrives.
func (p *GeminiProvider) Enhance(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	client, err := p.handle(ctx)
	if err != nil {
		return "", fmt.Errorf("gemini client: %v", err)
	}

	model := client.GenerativeModel(p.model)
	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		&genai.Blob{MIMEType: mimeType, Data: image},
	)
	if err != nil {
		return "", err
	}

	text := collectText(resp)
	if text == "" {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("blocked (%s)", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("no text found in response")
	}
	return text, nil
}

// collectText concatenates all text parts of all candidates and trims
// whitespace.
func collectText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
