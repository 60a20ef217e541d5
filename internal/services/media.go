package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"cinescript-backend/internal/logger"
	"cinescript-backend/internal/models"
)

// MediaService shells out to ffmpeg and ffprobe for probing, audio
// extraction and subtitle burn-in.
type MediaService struct {
	ffmpegPath  string
	ffprobePath string
}

func NewMediaService(ffmpegPath, ffprobePath string) *MediaService {
	return &MediaService{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// ProbeDuration returns the container duration in seconds.
func (m *MediaService) ProbeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, m.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		videoPath,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, &ExternalServiceError{Service: "ffprobe", Err: fmt.Errorf("probe failed for %s: %w", videoPath, err)}
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, &ExternalServiceError{Service: "ffprobe", Err: fmt.Errorf("unparseable probe output: %w", err)}
	}

	duration, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, &ExternalServiceError{Service: "ffprobe", Err: fmt.Errorf("invalid duration %q: %w", parsed.Format.Duration, err)}
	}
	return duration, nil
}

// ExtractAudio demuxes the audio track to a mono 16 kHz mp3, the cheapest
// input the speech-to-text API accepts.
func (m *MediaService) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-b:a", "64k",
		audioPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		logger.S().Errorw("audio extraction failed", "video", videoPath, "output", tail(out))
		return &ExternalServiceError{Service: "ffmpeg", Err: fmt.Errorf("audio extraction failed: %w", err)}
	}
	return nil
}

// BurnSubtitles renders the SRT file into the video stream using the
// subtitles filter, styled per the video's settings. Audio is copied.
func (m *MediaService) BurnSubtitles(ctx context.Context, videoPath, srtPath, outPath string, settings models.SubtitleSettings) error {
	filter := fmt.Sprintf("subtitles=%s:force_style='%s'",
		escapeFilterPath(srtPath), buildForceStyle(settings))

	cmd := exec.CommandContext(ctx, m.ffmpegPath,
		"-y",
		"-i", videoPath,
		"-vf", filter,
		"-c:a", "copy",
		outPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		logger.S().Errorw("subtitle burn-in failed", "video", videoPath, "output", tail(out))
		return &ExternalServiceError{Service: "ffmpeg", Err: fmt.Errorf("subtitle burn-in failed: %w", err)}
	}
	return nil
}

// buildForceStyle converts the stored settings into an ASS force_style
// string. Opacity is folded into the BackColour alpha channel.
func buildForceStyle(s models.SubtitleSettings) string {
	alpha := int((1 - s.BackgroundOpacity) * 255)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 255 {
		alpha = 255
	}

	parts := []string{
		"FontName=" + s.FontFamily,
		fmt.Sprintf("FontSize=%d", s.FontSize),
		"PrimaryColour=" + hexToASSColor(s.FontColor, 0),
		"BackColour=" + hexToASSColor(s.BackgroundColor, alpha),
		"BorderStyle=4",
		fmt.Sprintf("Alignment=%d", assAlignment(s.Position)),
	}
	return strings.Join(parts, ",")
}

// hexToASSColor converts #RRGGBB into ASS &HAABBGGRR notation.
func hexToASSColor(hex string, alpha int) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		hex = "FFFFFF"
	}
	r, g, b := hex[0:2], hex[2:4], hex[4:6]
	return fmt.Sprintf("&H%02X%s%s%s", alpha, strings.ToUpper(b), strings.ToUpper(g), strings.ToUpper(r))
}

// assAlignment maps position names to numpad-style ASS alignment values.
func assAlignment(position string) int {
	switch position {
	case models.PositionTop:
		return 8
	case models.PositionMiddle:
		return 5
	default:
		return 2
	}
}

// escapeFilterPath escapes the characters ffmpeg's filter parser treats
// specially in file paths.
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, `:`, `\:`)
	p = strings.ReplaceAll(p, `'`, `\'`)
	return p
}

func tail(out []byte) string {
	const limit = 512
	if len(out) <= limit {
		return string(out)
	}
	return string(out[len(out)-limit:])
}
