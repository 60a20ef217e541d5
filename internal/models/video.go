package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoStatus is the lifecycle stage of a video. Besides describing progress
// it doubles as the mutual-exclusion flag for background jobs: entering a
// busy status is the lock acquire, leaving it is the release.
type VideoStatus string

const (
	StatusUploaded     VideoStatus = "uploaded"
	StatusTranscribing VideoStatus = "transcribing"
	StatusTranscribed  VideoStatus = "transcribed"
	StatusTranslating  VideoStatus = "translating"
	StatusTranslated   VideoStatus = "translated"
	StatusRendering    VideoStatus = "rendering"
	StatusCompleted    VideoStatus = "completed"
	StatusError        VideoStatus = "error"
)

// Busy reports whether a job is in flight for this status. All triggers and
// editor mutations are rejected while busy; at most one job per video.
func (s VideoStatus) Busy() bool {
	return s == StatusTranscribing || s == StatusTranslating || s == StatusRendering
}

// Source statuses permitted for each trigger. Transcription may be re-run
// from scratch after a failure, which is the only recovery path out of error.
var (
	TranscribeFrom = []VideoStatus{StatusUploaded, StatusError}
	TranslateFrom  = []VideoStatus{StatusTranscribed, StatusTranslated}
	ExportFrom     = []VideoStatus{StatusTranscribed, StatusTranslated, StatusCompleted}
)

// AllowsTranscribe reports whether the transcribe trigger is valid from s.
func (s VideoStatus) AllowsTranscribe() bool { return statusIn(s, TranscribeFrom) }

// AllowsTranslate reports whether the translate trigger is valid from s.
func (s VideoStatus) AllowsTranslate() bool { return statusIn(s, TranslateFrom) }

// AllowsExport reports whether the export trigger is valid from s.
func (s VideoStatus) AllowsExport() bool { return statusIn(s, ExportFrom) }

func statusIn(s VideoStatus, set []VideoStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Segment is one timed subtitle cue. The interval is half-open:
// [StartTime, EndTime). Segments are kept in chronological order and the
// store preserves the order it is given.
type Segment struct {
	ID             string  `json:"id"`
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"`
	OriginalText   string  `json:"original_text"`
	TranslatedText string  `json:"translated_text"`
}

// SubtitleSettings is the per-video rendering configuration for burned-in
// subtitles. Settings are replaced wholesale on every save.
type SubtitleSettings struct {
	FontFamily        string  `json:"font_family"`
	FontSize          int     `json:"font_size"`
	FontColor         string  `json:"font_color"`
	BackgroundColor   string  `json:"background_color"`
	BackgroundOpacity float64 `json:"background_opacity"`
	Position          string  `json:"position"` // top | middle | bottom
}

const (
	PositionTop    = "top"
	PositionMiddle = "middle"
	PositionBottom = "bottom"

	MinFontSize = 12
	MaxFontSize = 48
)

// DefaultSubtitleSettings returns the platform defaults applied at video
// creation and for any field omitted on a settings save.
func DefaultSubtitleSettings() SubtitleSettings {
	return SubtitleSettings{
		FontFamily:        "Arial",
		FontSize:          24,
		FontColor:         "#FFFFFF",
		BackgroundColor:   "#000000",
		BackgroundOpacity: 0.7,
		Position:          PositionBottom,
	}
}

type Video struct {
	ID               uuid.UUID        `json:"id"`
	ProjectID        uuid.UUID        `json:"project_id"`
	UserID           uuid.UUID        `json:"user_id"`
	Filename         string           `json:"filename"`
	OriginalFilename string           `json:"original_filename"`
	FilePath         string           `json:"-"`
	SourceURL        *string          `json:"source_url,omitempty"`
	Duration         *float64         `json:"duration"`
	Status           VideoStatus      `json:"status"`
	Progress         int              `json:"progress"`
	ErrorMessage     *string          `json:"error_message,omitempty"`
	SourceLanguage   *string          `json:"source_language"`
	TargetLanguage   *string          `json:"target_language"`
	Segments         []Segment        `json:"segments"`
	Settings         SubtitleSettings `json:"subtitle_settings"`
	OutputPath       *string          `json:"-"`
	OutputObject     *string          `json:"output_object,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type TranslateRequest struct {
	TargetLanguage string `json:"target_language"`
}

type UpdateSubtitlesRequest struct {
	Segments []Segment `json:"segments"`
}

// UpdateSettingsRequest uses pointers so omitted fields can be told apart
// from zero values; omitted fields take the platform default, not the
// previously stored value.
type UpdateSettingsRequest struct {
	FontFamily        *string  `json:"font_family"`
	FontSize          *int     `json:"font_size"`
	FontColor         *string  `json:"font_color"`
	BackgroundColor   *string  `json:"background_color"`
	BackgroundOpacity *float64 `json:"background_opacity"`
	Position          *string  `json:"position"`
}

type ImportYouTubeRequest struct {
	URL string `json:"url"`
}

// SupportedLanguages is the fixed set of translation targets, keyed by
// ISO-639-1 code.
var SupportedLanguages = map[string]string{
	"ar": "Arabic",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"hi": "Hindi",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// IsSupportedLanguage reports whether code is a valid translation target.
func IsSupportedLanguage(code string) bool {
	_, ok := SupportedLanguages[code]
	return ok
}
