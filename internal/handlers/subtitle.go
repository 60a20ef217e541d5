package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"cinescript-backend/internal/models"
	"cinescript-backend/internal/services"
	"cinescript-backend/internal/subtitle"
)

// SubtitleHandler serves the editor: bulk segment saves, settings saves and
// the active-segment lookup used by the preview scrubber.
type SubtitleHandler struct {
	videoRepo videoRepository
}

func NewSubtitleHandler(videoRepo videoRepository) *SubtitleHandler {
	return &SubtitleHandler{videoRepo: videoRepo}
}

// UpdateSubtitles replaces the video's segment list wholesale. The request
// is all-or-nothing: one invalid segment rejects the whole save.
func (h *SubtitleHandler) UpdateSubtitles(w http.ResponseWriter, r *http.Request) {
	video, ok := loadAccessibleVideo(w, r, h.videoRepo)
	if !ok {
		return
	}

	var req models.UpdateSubtitlesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if fields := subtitle.Validate(req.Segments); len(fields) > 0 {
		handleServiceError(w, r, &services.ValidationError{Fields: fields})
		return
	}

	applied, err := h.videoRepo.ReplaceSegments(r.Context(), video.ID, req.Segments)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save subtitles", r))
		return
	}
	if !applied {
		handleServiceError(w, r, &services.ConflictError{Message: "Video has a job in progress"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Subtitles saved",
		"segments": len(req.Segments),
	})
}

// UpdateSettings replaces the rendering settings wholesale. Omitted fields
// take the platform default rather than the previously stored value.
func (h *SubtitleHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	video, ok := loadAccessibleVideo(w, r, h.videoRepo)
	if !ok {
		return
	}

	var req models.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	settings, fields := resolveSettings(req)
	if len(fields) > 0 {
		handleServiceError(w, r, &services.ValidationError{Fields: fields})
		return
	}

	applied, err := h.videoRepo.ReplaceSettings(r.Context(), video.ID, settings)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save settings", r))
		return
	}
	if !applied {
		handleServiceError(w, r, &services.ConflictError{Message: "Video has a job in progress"})
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// ActiveSegment returns the segment covering playback time t, if any.
// Intervals are half-open, so a segment's end time belongs to its successor.
func (h *SubtitleHandler) ActiveSegment(w http.ResponseWriter, r *http.Request) {
	video, ok := loadAccessibleVideo(w, r, h.videoRepo)
	if !ok {
		return
	}

	t, err := strconv.ParseFloat(r.URL.Query().Get("t"), 64)
	if err != nil || t < 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"t": "t must be a non-negative number"}, r))
		return
	}

	seg, found := subtitle.FindActive(video.Segments, t)
	if !found {
		writeJSON(w, http.StatusOK, map[string]interface{}{"active": nil})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active": seg,
		"text":   subtitle.DisplayText(seg),
	})
}

// resolveSettings merges the request over the platform defaults and
// validates the result.
func resolveSettings(req models.UpdateSettingsRequest) (models.SubtitleSettings, map[string]string) {
	settings := models.DefaultSubtitleSettings()
	fields := make(map[string]string)

	if req.FontFamily != nil {
		if *req.FontFamily == "" {
			fields["font_family"] = "Font family cannot be empty"
		} else {
			settings.FontFamily = *req.FontFamily
		}
	}
	if req.FontSize != nil {
		if *req.FontSize < models.MinFontSize || *req.FontSize > models.MaxFontSize {
			fields["font_size"] = "Font size must be between 12 and 48"
		} else {
			settings.FontSize = *req.FontSize
		}
	}
	if req.FontColor != nil {
		if !isHexColor(*req.FontColor) {
			fields["font_color"] = "Font color must be a #RRGGBB hex value"
		} else {
			settings.FontColor = *req.FontColor
		}
	}
	if req.BackgroundColor != nil {
		if !isHexColor(*req.BackgroundColor) {
			fields["background_color"] = "Background color must be a #RRGGBB hex value"
		} else {
			settings.BackgroundColor = *req.BackgroundColor
		}
	}
	if req.BackgroundOpacity != nil {
		if *req.BackgroundOpacity < 0 || *req.BackgroundOpacity > 1 {
			fields["background_opacity"] = "Background opacity must be between 0 and 1"
		} else {
			settings.BackgroundOpacity = *req.BackgroundOpacity
		}
	}
	if req.Position != nil {
		switch *req.Position {
		case models.PositionTop, models.PositionMiddle, models.PositionBottom:
			settings.Position = *req.Position
		default:
			fields["position"] = "Position must be top, middle or bottom"
		}
	}

	return settings, fields
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
