package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cinescript-backend/internal/middleware"
	"cinescript-backend/internal/models"
)

type stubVideoRepo struct {
	video *models.Video

	transitionCalls []models.VideoStatus
	denyTransition  bool

	replacedSegments []models.Segment
	replacedSettings *models.SubtitleSettings
	replaceApplied   bool

	errorReason string
}

func (s *stubVideoRepo) Create(ctx context.Context, v *models.Video) error { return nil }

func (s *stubVideoRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	if s.video == nil || s.video.ID != id {
		return nil, errors.New("not found")
	}
	v := *s.video
	return &v, nil
}

func (s *stubVideoRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Video, error) {
	return nil, nil
}

func (s *stubVideoRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubVideoRepo) UpdateDuration(ctx context.Context, id uuid.UUID, duration float64) error {
	return nil
}

func (s *stubVideoRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.VideoStatus, to models.VideoStatus) (models.VideoStatus, bool, error) {
	s.transitionCalls = append(s.transitionCalls, to)
	if s.denyTransition {
		return "", false, nil
	}
	prev := s.video.Status
	for _, f := range from {
		if f == prev {
			s.video.Status = to
			return prev, true, nil
		}
	}
	return "", false, nil
}

func (s *stubVideoRepo) SetError(ctx context.Context, id uuid.UUID, reason string) error {
	s.errorReason = reason
	s.video.Status = models.StatusError
	return nil
}

func (s *stubVideoRepo) ReplaceSegments(ctx context.Context, id uuid.UUID, segments []models.Segment) (bool, error) {
	if !s.replaceApplied {
		return false, nil
	}
	s.replacedSegments = segments
	return true, nil
}

func (s *stubVideoRepo) ReplaceSettings(ctx context.Context, id uuid.UUID, settings models.SubtitleSettings) (bool, error) {
	if !s.replaceApplied {
		return false, nil
	}
	s.replacedSettings = &settings
	return true, nil
}

type stubJobRepo struct {
	created    *models.Job
	createErr  error
	getByIDJob *models.Job
}

func (s *stubJobRepo) Create(ctx context.Context, job *models.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	job.ID = uuid.New()
	s.created = job
	return nil
}

func (s *stubJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	if s.getByIDJob == nil {
		return nil, errors.New("not found")
	}
	return s.getByIDJob, nil
}

type stubQueue struct {
	enqueued   []*models.Job
	enqueueErr error
}

func (s *stubQueue) Enqueue(ctx context.Context, job *models.Job) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.enqueued = append(s.enqueued, job)
	return nil
}

func triggerRequest(t *testing.T, method, path string, body []byte, videoID uuid.UUID, id middleware.Identity) *http.Request {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", videoID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(middleware.WithIdentity(req.Context(), id))
	return req
}

func ownerIdentity(userID uuid.UUID) middleware.Identity {
	return middleware.Identity{UserID: userID, SubscriptionActive: true}
}

func TestLifecycleHandler_Transcribe_FromUploaded(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{video: &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusUploaded}}
	jobRepo := &stubJobRepo{}
	queue := &stubQueue{}

	h := NewLifecycleHandler(videoRepo, jobRepo, queue)

	req := triggerRequest(t, http.MethodPost, "/api/v1/videos/"+videoID.String()+"/transcribe", nil, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.Transcribe(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if videoRepo.video.Status != models.StatusTranscribing {
		t.Errorf("expected video to be transcribing, got %s", videoRepo.video.Status)
	}
	if jobRepo.created == nil || jobRepo.created.Type != models.JobTranscription {
		t.Fatalf("expected a transcription job to be created")
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("expected 1 enqueued job, got %d", len(queue.enqueued))
	}

	var config models.JobConfig
	if err := json.Unmarshal(jobRepo.created.ConfigJSON, &config); err != nil {
		t.Fatalf("failed to parse job config: %v", err)
	}
	if config.ResumeStatus != models.StatusUploaded {
		t.Errorf("expected resume status uploaded, got %s", config.ResumeStatus)
	}
}

func TestLifecycleHandler_Transcribe_RetryFromError(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{video: &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusError}}
	h := NewLifecycleHandler(videoRepo, &stubJobRepo{}, &stubQueue{})

	req := triggerRequest(t, http.MethodPost, "/api/v1/videos/"+videoID.String()+"/transcribe", nil, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.Transcribe(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202 for retry from error, got %d", rr.Code)
	}
}

func TestLifecycleHandler_Transcribe_WhileBusy(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{video: &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusTranscribing}}
	jobRepo := &stubJobRepo{}
	queue := &stubQueue{}

	h := NewLifecycleHandler(videoRepo, jobRepo, queue)

	req := triggerRequest(t, http.MethodPost, "/api/v1/videos/"+videoID.String()+"/transcribe", nil, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.Transcribe(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	if jobRepo.created != nil || len(queue.enqueued) != 0 {
		t.Errorf("no job should be created while another is in flight")
	}
}

func TestLifecycleHandler_Transcribe_InvalidState(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{video: &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusCompleted}}
	h := NewLifecycleHandler(videoRepo, &stubJobRepo{}, &stubQueue{})

	req := triggerRequest(t, http.MethodPost, "/api/v1/videos/"+videoID.String()+"/transcribe", nil, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.Transcribe(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var resp models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Error.Code != "INVALID_STATE" {
		t.Errorf("expected INVALID_STATE, got %s", resp.Error.Code)
	}
}

func TestLifecycleHandler_Transcribe_LostRace(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	// Status still reads uploaded, but the CAS is denied as if another
	// trigger won in between.
	videoRepo := &stubVideoRepo{
		video:          &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusUploaded},
		denyTransition: true,
	}
	jobRepo := &stubJobRepo{}

	h := NewLifecycleHandler(videoRepo, jobRepo, &stubQueue{})

	req := triggerRequest(t, http.MethodPost, "/api/v1/videos/"+videoID.String()+"/transcribe", nil, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.Transcribe(rr, req)

	if rr.Code != http.StatusBadRequest && rr.Code != http.StatusConflict {
		t.Fatalf("expected 400 or 409 after lost race, got %d", rr.Code)
	}
	if jobRepo.created != nil {
		t.Errorf("no job should be created after a lost race")
	}
}

func TestLifecycleHandler_Translate_UnsupportedLanguage(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{video: &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusTranscribed}}
	h := NewLifecycleHandler(videoRepo, &stubJobRepo{}, &stubQueue{})

	body, _ := json.Marshal(models.TranslateRequest{TargetLanguage: "xx"})
	req := triggerRequest(t, http.MethodPost, "/api/v1/videos/"+videoID.String()+"/translate", body, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.Translate(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var resp models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Error.Code != "INVALID_LANGUAGE" {
		t.Errorf("expected INVALID_LANGUAGE, got %s", resp.Error.Code)
	}
	if videoRepo.video.Status != models.StatusTranscribed {
		t.Errorf("status must not move on a rejected trigger")
	}
}

func TestLifecycleHandler_Translate_CarriesTargetLanguage(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{video: &models.Video{
		ID:       videoID,
		UserID:   ownerID,
		Status:   models.StatusTranslated,
		Segments: []models.Segment{{ID: "seg-1", StartTime: 0, EndTime: 2, OriginalText: "hello"}},
	}}
	jobRepo := &stubJobRepo{}

	h := NewLifecycleHandler(videoRepo, jobRepo, &stubQueue{})

	body, _ := json.Marshal(models.TranslateRequest{TargetLanguage: "es"})
	req := triggerRequest(t, http.MethodPost, "/api/v1/videos/"+videoID.String()+"/translate", body, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.Translate(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var config models.JobConfig
	json.Unmarshal(jobRepo.created.ConfigJSON, &config)
	if config.TargetLanguage != "es" {
		t.Errorf("expected target language es, got %q", config.TargetLanguage)
	}
	if config.ResumeStatus != models.StatusTranslated {
		t.Errorf("expected resume status translated, got %s", config.ResumeStatus)
	}
}

func TestLifecycleHandler_Translate_NoSegments(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	// Transcribed, but the editor emptied the segment list since.
	videoRepo := &stubVideoRepo{video: &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusTranscribed, Segments: []models.Segment{}}}
	jobRepo := &stubJobRepo{}

	h := NewLifecycleHandler(videoRepo, jobRepo, &stubQueue{})

	body, _ := json.Marshal(models.TranslateRequest{TargetLanguage: "es"})
	req := triggerRequest(t, http.MethodPost, "/api/v1/videos/"+videoID.String()+"/translate", body, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.Translate(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var resp models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Error.Code != "INVALID_STATE" {
		t.Errorf("expected INVALID_STATE, got %s", resp.Error.Code)
	}
	if videoRepo.video.Status != models.StatusTranscribed {
		t.Errorf("status must not move on a rejected trigger, got %s", videoRepo.video.Status)
	}
	if jobRepo.created != nil {
		t.Errorf("no job should be created without segments")
	}
}

func TestLifecycleHandler_SubscriptionRequired(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{video: &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusUploaded}}
	h := NewLifecycleHandler(videoRepo, &stubJobRepo{}, &stubQueue{})

	// Owner without an active subscription
	req := triggerRequest(t, http.MethodPost, "/api/v1/videos/"+videoID.String()+"/transcribe", nil, videoID,
		middleware.Identity{UserID: ownerID})
	rr := httptest.NewRecorder()
	h.Transcribe(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}

	var resp models.ErrorResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Error.Code != "SUBSCRIPTION_REQUIRED" {
		t.Errorf("expected SUBSCRIPTION_REQUIRED, got %s", resp.Error.Code)
	}
}

func TestLifecycleHandler_EnqueueFailureRollsBack(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{video: &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusUploaded}}
	queue := &stubQueue{enqueueErr: errors.New("redis down")}

	h := NewLifecycleHandler(videoRepo, &stubJobRepo{}, queue)

	req := triggerRequest(t, http.MethodPost, "/api/v1/videos/"+videoID.String()+"/transcribe", nil, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.Transcribe(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	if videoRepo.video.Status != models.StatusUploaded {
		t.Errorf("expected status rolled back to uploaded, got %s", videoRepo.video.Status)
	}
}

func TestLifecycleHandler_Export_NoSegments(t *testing.T) {
	ownerID := uuid.New()
	videoID := uuid.New()
	videoRepo := &stubVideoRepo{video: &models.Video{ID: videoID, UserID: ownerID, Status: models.StatusTranscribed, Segments: []models.Segment{}}}
	h := NewLifecycleHandler(videoRepo, &stubJobRepo{}, &stubQueue{})

	req := triggerRequest(t, http.MethodPost, "/api/v1/videos/"+videoID.String()+"/export", nil, videoID, ownerIdentity(ownerID))
	rr := httptest.NewRecorder()
	h.Export(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
