package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"cinescript-backend/internal/logger"
	"cinescript-backend/internal/models"
)

// translationBatchSize caps how many subtitle lines go into a single model
// call. Long videos are split into consecutive batches.
const translationBatchSize = 50

type TranslatorService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

func NewTranslatorService(apiKey string, concurrentReqs int) (*TranslatorService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-3-flash-preview")
	model.SetTemperature(0.2)
	model.SetTopP(0.95)

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &TranslatorService{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (s *TranslatorService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *TranslatorService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *TranslatorService) releaseRate() {
	s.rateChan <- struct{}{}
}

// TranslateSegments translates the original text of every segment into the
// target language, preserving order and count. The result is all-or-nothing:
// any misaligned batch discards the whole run and no segment is modified.
func (s *TranslatorService) TranslateSegments(ctx context.Context, segments []models.Segment, targetLang string) ([]string, error) {
	if !models.IsSupportedLanguage(targetLang) {
		return nil, &InvalidLanguageError{Code: targetLang}
	}

	lines := make([]string, len(segments))
	for i, seg := range segments {
		lines[i] = seg.OriginalText
	}

	translated := make([]string, 0, len(lines))
	for start := 0; start < len(lines); start += translationBatchSize {
		end := start + translationBatchSize
		if end > len(lines) {
			end = len(lines)
		}

		batch, err := s.translateBatch(ctx, lines[start:end], targetLang)
		if err != nil {
			return nil, err
		}
		translated = append(translated, batch...)
	}

	if len(translated) != len(segments) {
		return nil, &TranslationAlignmentError{Want: len(segments), Got: len(translated)}
	}
	return translated, nil
}

func (s *TranslatorService) translateBatch(ctx context.Context, lines []string, targetLang string) ([]string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer s.releaseRate()

	prompt := buildTranslationPrompt(lines, targetLang)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, &ExternalServiceError{Service: "translation", Err: err}
	}

	rawText := extractText(resp)
	rawText = strings.TrimPrefix(rawText, "```json")
	rawText = strings.TrimPrefix(rawText, "```")
	rawText = strings.TrimSuffix(rawText, "```")
	rawText = strings.TrimSpace(rawText)

	var out []string
	if err := json.Unmarshal([]byte(rawText), &out); err != nil {
		// Try to extract JSON array
		start := strings.Index(rawText, "[")
		end := strings.LastIndex(rawText, "]")
		if start >= 0 && end > start {
			if err := json.Unmarshal([]byte(rawText[start:end+1]), &out); err != nil {
				return nil, &ExternalServiceError{Service: "translation", Err: fmt.Errorf("unparseable model output: %w", err)}
			}
		} else {
			return nil, &ExternalServiceError{Service: "translation", Err: fmt.Errorf("unparseable model output: %w", err)}
		}
	}

	if len(out) != len(lines) {
		logger.S().Warnw("translation batch misaligned", "want", len(lines), "got", len(out))
		return nil, &TranslationAlignmentError{Want: len(lines), Got: len(out)}
	}
	return out, nil
}

func buildTranslationPrompt(lines []string, targetLang string) string {
	var b strings.Builder

	langName := models.SupportedLanguages[targetLang]

	b.WriteString(fmt.Sprintf("You are a professional subtitle translator. Translate each subtitle line below into %s.\n\n", langName))
	b.WriteString("CRITICAL: Return ONLY a valid JSON array of strings. No preamble, no markdown, no backticks.\n")
	b.WriteString(fmt.Sprintf("The array must contain exactly %d strings, one translation per input line, in the same order.\n", len(lines)))
	b.WriteString("Keep translations concise enough to read as subtitles. Never merge or split lines.\n\n")

	b.WriteString("Input lines as JSON:\n")
	data, _ := json.Marshal(lines)
	b.Write(data)
	b.WriteString("\n")

	return b.String()
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
