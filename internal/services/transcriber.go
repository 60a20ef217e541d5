package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cinescript-backend/internal/models"
)

// TranscriberService calls a Whisper-compatible speech-to-text HTTP API and
// turns the response into timed subtitle segments.
type TranscriberService struct {
	apiURL string
	apiKey string
	model  string
	client *http.Client
}

func NewTranscriberService(apiURL, apiKey, model string) *TranscriberService {
	return &TranscriberService{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 15 * time.Minute},
	}
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
}

// Transcribe uploads the audio file and returns ordered segments plus the
// detected source language.
func (s *TranscriberService) Transcribe(ctx context.Context, audioPath string) ([]models.Segment, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read audio file: %w", err)
	}

	w.WriteField("model", s.model)
	w.WriteField("response_format", "verbose_json")
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, &body)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", &ExternalServiceError{Service: "speech-to-text", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", &ExternalServiceError{
			Service: "speech-to-text",
			Err:     fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet)),
		}
	}

	var parsed whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, "", &ExternalServiceError{Service: "speech-to-text", Err: fmt.Errorf("unparseable response: %w", err)}
	}

	segments := make([]models.Segment, 0, len(parsed.Segments))
	for i, ws := range parsed.Segments {
		text := strings.TrimSpace(ws.Text)
		if ws.End <= ws.Start || text == "" {
			continue
		}
		segments = append(segments, models.Segment{
			ID:           "seg-" + strconv.Itoa(i+1),
			StartTime:    ws.Start,
			EndTime:      ws.End,
			OriginalText: text,
		})
	}

	if len(segments) == 0 {
		return nil, "", &ExternalServiceError{Service: "speech-to-text", Err: fmt.Errorf("no speech detected")}
	}

	return segments, parsed.Language, nil
}
