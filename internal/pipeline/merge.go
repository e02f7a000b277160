package pipeline

import "github.com/textlift/enhanced-ocr-service/internal/ai"

// Merge chooses the final text for a work item. The enhanced text wins if and
// only if the enhancement actually succeeded with non-empty output; disabled
// and failed outcomes fall back to the OCR text. Deliberately content-blind
// beyond the outcome tag: no length or quality comparison.
func Merge(ocrText string, enhanced ai.Enhancement) string {
	if enhanced.Outcome == ai.OutcomeSuccess && enhanced.Text != "" {
		return enhanced.Text
	}
	return ocrText
}
