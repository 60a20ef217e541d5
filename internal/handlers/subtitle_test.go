package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"cinescript-backend/internal/models"
)

func TestSubtitleHandler_UpdateSubtitles_Valid(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{
		video:          &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusTranscribed},
		replaceApplied: true,
	}

	h := NewSubtitleHandler(videoRepo)

	body, _ := json.Marshal(models.UpdateSubtitlesRequest{Segments: []models.Segment{
		{ID: "seg-1", StartTime: 0, EndTime: 2, OriginalText: "hello"},
		{ID: "seg-2", StartTime: 2, EndTime: 4, OriginalText: "world"},
	}})

	req := triggerRequest(t, http.MethodPut, "/api/v1/videos/"+videoID.String()+"/subtitles", body, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.UpdateSubtitles(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(videoRepo.replacedSegments) != 2 {
		t.Errorf("expected 2 segments saved, got %d", len(videoRepo.replacedSegments))
	}
}

func TestSubtitleHandler_UpdateSubtitles_InvalidSegment(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{
		video:          &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusTranscribed},
		replaceApplied: true,
	}

	h := NewSubtitleHandler(videoRepo)

	// end before start
	body, _ := json.Marshal(models.UpdateSubtitlesRequest{Segments: []models.Segment{
		{ID: "seg-1", StartTime: 5, EndTime: 2, OriginalText: "bad"},
	}})

	req := triggerRequest(t, http.MethodPut, "/api/v1/videos/"+videoID.String()+"/subtitles", body, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.UpdateSubtitles(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if videoRepo.replacedSegments != nil {
		t.Errorf("nothing should be saved when validation fails")
	}

	var resp models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Error.Code != "VALIDATION_ERROR" || len(resp.Error.Fields) == 0 {
		t.Errorf("expected field-level validation errors, got %+v", resp.Error)
	}
}

func TestSubtitleHandler_UpdateSubtitles_WhileBusy(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{
		video:          &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusTranslating},
		replaceApplied: false,
	}

	h := NewSubtitleHandler(videoRepo)

	body, _ := json.Marshal(models.UpdateSubtitlesRequest{Segments: []models.Segment{
		{ID: "seg-1", StartTime: 0, EndTime: 2, OriginalText: "hello"},
	}})

	req := triggerRequest(t, http.MethodPut, "/api/v1/videos/"+videoID.String()+"/subtitles", body, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.UpdateSubtitles(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestSubtitleHandler_UpdateSettings_OmittedFieldsDefault(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{
		video:          &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusTranscribed},
		replaceApplied: true,
	}

	h := NewSubtitleHandler(videoRepo)

	// Only font_size present; everything else must come back as defaults.
	req := triggerRequest(t, http.MethodPut, "/api/v1/videos/"+videoID.String()+"/settings",
		[]byte(`{"font_size": 32}`), videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.UpdateSettings(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	saved := videoRepo.replacedSettings
	if saved == nil {
		t.Fatal("expected settings to be saved")
	}
	defaults := models.DefaultSubtitleSettings()
	if saved.FontSize != 32 {
		t.Errorf("font size = %d, want 32", saved.FontSize)
	}
	if saved.FontFamily != defaults.FontFamily || saved.Position != defaults.Position ||
		saved.FontColor != defaults.FontColor || saved.BackgroundOpacity != defaults.BackgroundOpacity {
		t.Errorf("omitted fields should take platform defaults, got %+v", saved)
	}
}

func TestSubtitleHandler_UpdateSettings_Idempotent(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{
		video:          &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusTranscribed},
		replaceApplied: true,
	}

	h := NewSubtitleHandler(videoRepo)
	body := []byte(`{"font_size": 30, "position": "top"}`)

	var first, second models.SubtitleSettings
	for i, dst := range []*models.SubtitleSettings{&first, &second} {
		req := triggerRequest(t, http.MethodPut, "/api/v1/videos/"+videoID.String()+"/settings", body, videoID, ownerIdentity(ownerID))
		rr := httptest.NewRecorder()
		h.UpdateSettings(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("save %d: expected status 200, got %d", i+1, rr.Code)
		}
		json.NewDecoder(rr.Body).Decode(dst)
	}

	if first != second {
		t.Errorf("repeated saves with the same body should produce identical settings: %+v vs %+v", first, second)
	}
}

func TestSubtitleHandler_UpdateSettings_Invalid(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{
		video:          &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusTranscribed},
		replaceApplied: true,
	}

	h := NewSubtitleHandler(videoRepo)

	req := triggerRequest(t, http.MethodPut, "/api/v1/videos/"+videoID.String()+"/settings",
		[]byte(`{"font_size": 99, "font_color": "red", "position": "sideways"}`), videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.UpdateSettings(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var resp models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	for _, field := range []string{"font_size", "font_color", "position"} {
		if _, ok := resp.Error.Fields[field]; !ok {
			t.Errorf("expected a validation message for %s", field)
		}
	}
	if videoRepo.replacedSettings != nil {
		t.Errorf("nothing should be saved when validation fails")
	}
}

func TestSubtitleHandler_ActiveSegment_HalfOpenBoundary(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{
		video: &models.Video{
			ID: videoID, UserID: ownerID, Status: models.StatusTranscribed,
			Segments: []models.Segment{
				{ID: "seg-1", StartTime: 0, EndTime: 2, OriginalText: "first"},
				{ID: "seg-2", StartTime: 2, EndTime: 4, OriginalText: "second"},
			},
		},
	}

	h := NewSubtitleHandler(videoRepo)

	// t exactly at the shared boundary belongs to the second segment.
	req := triggerRequest(t, http.MethodGet, "/api/v1/videos/"+videoID.String()+"/subtitles/active?t=2", nil, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.ActiveSegment(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp struct {
		Active *models.Segment `json:"active"`
	}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Active == nil || resp.Active.ID != "seg-2" {
		t.Errorf("t=2 should resolve to seg-2, got %+v", resp.Active)
	}
}

func TestSubtitleHandler_ActiveSegment_Gap(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{
		video: &models.Video{
			ID: videoID, UserID: ownerID, Status: models.StatusTranscribed,
			Segments: []models.Segment{
				{ID: "seg-1", StartTime: 0, EndTime: 2, OriginalText: "first"},
				{ID: "seg-2", StartTime: 5, EndTime: 7, OriginalText: "second"},
			},
		},
	}

	h := NewSubtitleHandler(videoRepo)

	req := triggerRequest(t, http.MethodGet, "/api/v1/videos/"+videoID.String()+"/subtitles/active?t=3.5", nil, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.ActiveSegment(rr, req)

	var resp map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["active"] != nil {
		t.Errorf("expected no active segment in a gap, got %v", resp["active"])
	}
}
