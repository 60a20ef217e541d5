package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cinescript-backend/internal/models"
	"cinescript-backend/internal/services"
)

type fakeVideoStore struct {
	video *models.Video

	errorReason   string
	revertedTo    models.VideoStatus
	completedSegs []models.Segment
	completedLang string
	exported      bool
	exportObject  string
}

func (f *fakeVideoStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	if f.video == nil {
		return nil, errors.New("not found")
	}
	v := *f.video
	return &v, nil
}

func (f *fakeVideoStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	return nil
}

func (f *fakeVideoStore) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.VideoStatus, to models.VideoStatus) (models.VideoStatus, bool, error) {
	prev := f.video.Status
	for _, s := range from {
		if s == prev {
			f.video.Status = to
			f.revertedTo = to
			return prev, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeVideoStore) SetError(ctx context.Context, id uuid.UUID, reason string) error {
	f.errorReason = reason
	f.video.Status = models.StatusError
	return nil
}

func (f *fakeVideoStore) CompleteTranscription(ctx context.Context, id uuid.UUID, segments []models.Segment, sourceLanguage string) error {
	f.completedSegs = segments
	f.completedLang = sourceLanguage
	f.video.Status = models.StatusTranscribed
	f.video.Segments = segments
	return nil
}

func (f *fakeVideoStore) CompleteTranslation(ctx context.Context, id uuid.UUID, segments []models.Segment, targetLanguage string) error {
	f.completedSegs = segments
	f.completedLang = targetLanguage
	f.video.Status = models.StatusTranslated
	f.video.Segments = segments
	return nil
}

func (f *fakeVideoStore) CompleteExport(ctx context.Context, id uuid.UUID, outputPath, outputObject string) error {
	f.exported = true
	f.exportObject = outputObject
	f.video.Status = models.StatusCompleted
	return nil
}

type fakeJobStore struct {
	failedReason string
	completed    bool
}

func (f *fakeJobStore) MarkProcessing(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeJobStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	f.completed = true
	return nil
}
func (f *fakeJobStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	f.failedReason = reason
	return nil
}

type fakeTranscriber struct {
	segments []models.Segment
	language string
	err      error
	called   bool
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) ([]models.Segment, string, error) {
	f.called = true
	return f.segments, f.language, f.err
}

type fakeTranslator struct {
	out []string
	err error
}

func (f *fakeTranslator) TranslateSegments(ctx context.Context, segments []models.Segment, targetLang string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

type fakeMedia struct {
	extractErr error
	burnErr    error
}

func (f *fakeMedia) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	return f.extractErr
}

func (f *fakeMedia) BurnSubtitles(ctx context.Context, videoPath, srtPath, outPath string, settings models.SubtitleSettings) error {
	return f.burnErr
}

type fakeExportStore struct {
	uploadErr error
	uploaded  string
}

func (f *fakeExportStore) UploadFile(ctx context.Context, objectName, filePath, contentType string) (int64, error) {
	if f.uploadErr != nil {
		return 0, f.uploadErr
	}
	f.uploaded = objectName
	return 1, nil
}

type fakeCaptions struct {
	has      bool
	segments []models.Segment
	err      error
}

func (f *fakeCaptions) HasCaptions(videoID string) bool { return f.has }
func (f *fakeCaptions) GetTimedCaptions(videoID string) ([]models.Segment, error) {
	return f.segments, f.err
}

// testRedis returns a client pointing at nothing; publishes fail silently,
// which is all the process methods need.
func testRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
}

func testPool(t *testing.T, videos *fakeVideoStore, jobs *fakeJobStore, tr *fakeTranscriber, tl *fakeTranslator, m *fakeMedia, st *fakeExportStore, cs *fakeCaptions) *Pool {
	t.Helper()
	return NewPool(testRedis(), videos, jobs, tr, tl, m, st, cs, t.TempDir(), t.TempDir(), 1)
}

func translationJob(videoID uuid.UUID, targetLang string, resume models.VideoStatus) *models.Job {
	config, _ := json.Marshal(models.JobConfig{TargetLanguage: targetLang, ResumeStatus: resume})
	return &models.Job{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Type:       models.JobTranslation,
		VideoID:    videoID,
		ConfigJSON: config,
	}
}

func TestProcessTranslation_MergesTranslations(t *testing.T) {
	videoID := uuid.New()
	videos := &fakeVideoStore{video: &models.Video{
		ID:     videoID,
		Status: models.StatusTranslating,
		Segments: []models.Segment{
			{ID: "seg-1", StartTime: 0, EndTime: 2, OriginalText: "hello"},
			{ID: "seg-2", StartTime: 2, EndTime: 4, OriginalText: "world"},
		},
	}}
	tl := &fakeTranslator{out: []string{"hola", "mundo"}}

	p := testPool(t, videos, &fakeJobStore{}, &fakeTranscriber{}, tl, &fakeMedia{}, &fakeExportStore{}, &fakeCaptions{})

	if err := p.processTranslation(context.Background(), translationJob(videoID, "es", models.StatusTranscribed)); err != nil {
		t.Fatalf("processTranslation() error = %v", err)
	}

	if videos.completedLang != "es" {
		t.Errorf("target language = %q, want es", videos.completedLang)
	}
	if len(videos.completedSegs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(videos.completedSegs))
	}
	if videos.completedSegs[0].TranslatedText != "hola" || videos.completedSegs[1].TranslatedText != "mundo" {
		t.Errorf("translations not merged: %+v", videos.completedSegs)
	}
	if videos.completedSegs[0].OriginalText != "hello" {
		t.Errorf("original text must be preserved")
	}
}

func TestProcessTranslation_CorruptConfig(t *testing.T) {
	videoID := uuid.New()
	videos := &fakeVideoStore{video: &models.Video{
		ID:     videoID,
		Status: models.StatusTranslating,
		Segments: []models.Segment{
			{ID: "seg-1", StartTime: 0, EndTime: 2, OriginalText: "hello"},
		},
	}}
	tl := &fakeTranslator{out: []string{"hola"}}

	p := testPool(t, videos, &fakeJobStore{}, &fakeTranscriber{}, tl, &fakeMedia{}, &fakeExportStore{}, &fakeCaptions{})

	job := translationJob(videoID, "es", models.StatusTranscribed)
	job.ConfigJSON = json.RawMessage(`{not json`)

	if err := p.processTranslation(context.Background(), job); err == nil {
		t.Fatal("expected error for corrupt job config")
	}
	if videos.completedSegs != nil {
		t.Errorf("translation must not run with a corrupt config, saved %+v", videos.completedSegs)
	}
}

func TestHandleFailure_AlignmentRevertsStatus(t *testing.T) {
	videoID := uuid.New()
	videos := &fakeVideoStore{video: &models.Video{
		ID:     videoID,
		Status: models.StatusTranslating,
		Segments: []models.Segment{
			{ID: "seg-1", StartTime: 0, EndTime: 2, OriginalText: "hello", TranslatedText: "bonjour"},
		},
	}}
	jobs := &fakeJobStore{}

	p := testPool(t, videos, jobs, &fakeTranscriber{}, &fakeTranslator{}, &fakeMedia{}, &fakeExportStore{}, &fakeCaptions{})

	job := translationJob(videoID, "es", models.StatusTranslated)
	p.handleFailure(context.Background(), job, &services.TranslationAlignmentError{Want: 3, Got: 2})

	if videos.video.Status != models.StatusTranslated {
		t.Errorf("status = %s, want revert to translated", videos.video.Status)
	}
	if videos.errorReason != "" {
		t.Errorf("alignment failure must not park the video in error status")
	}
	if jobs.failedReason == "" {
		t.Errorf("job must still be marked failed")
	}
	if videos.video.Segments[0].TranslatedText != "bonjour" {
		t.Errorf("existing translations must be preserved on alignment failure")
	}
}

func TestHandleFailure_ExternalErrorSetsErrorStatus(t *testing.T) {
	videoID := uuid.New()
	videos := &fakeVideoStore{video: &models.Video{ID: videoID, Status: models.StatusTranscribing}}
	jobs := &fakeJobStore{}

	p := testPool(t, videos, jobs, &fakeTranscriber{}, &fakeTranslator{}, &fakeMedia{}, &fakeExportStore{}, &fakeCaptions{})

	job := &models.Job{ID: uuid.New(), UserID: uuid.New(), Type: models.JobTranscription, VideoID: videoID}
	p.handleFailure(context.Background(), job, &services.ExternalServiceError{Service: "speech-to-text", Err: errors.New("timeout")})

	if videos.video.Status != models.StatusError {
		t.Errorf("status = %s, want error", videos.video.Status)
	}
	if videos.errorReason == "" {
		t.Errorf("expected an error reason on the video")
	}
}

func TestProcessTranscription_CaptionFastPath(t *testing.T) {
	videoID := uuid.New()
	sourceURL := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	videos := &fakeVideoStore{video: &models.Video{
		ID:        videoID,
		Status:    models.StatusTranscribing,
		SourceURL: &sourceURL,
		FilePath:  "users/u/videos/v.mp4",
	}}
	tr := &fakeTranscriber{}
	captions := &fakeCaptions{
		has: true,
		segments: []models.Segment{
			{ID: "seg-1", StartTime: 0, EndTime: 3, OriginalText: "from captions"},
		},
	}

	p := testPool(t, videos, &fakeJobStore{}, tr, &fakeTranslator{}, &fakeMedia{}, &fakeExportStore{}, captions)

	job := &models.Job{ID: uuid.New(), UserID: uuid.New(), Type: models.JobTranscription, VideoID: videoID}
	if err := p.processTranscription(context.Background(), job); err != nil {
		t.Fatalf("processTranscription() error = %v", err)
	}

	if tr.called {
		t.Errorf("speech-to-text must be skipped when captions are available")
	}
	if len(videos.completedSegs) != 1 || videos.completedSegs[0].OriginalText != "from captions" {
		t.Errorf("expected caption segments to be saved, got %+v", videos.completedSegs)
	}
}

func TestProcessTranscription_WhisperPath(t *testing.T) {
	videoID := uuid.New()
	videos := &fakeVideoStore{video: &models.Video{
		ID:       videoID,
		Status:   models.StatusTranscribing,
		FilePath: "users/u/videos/v.mp4",
	}}
	tr := &fakeTranscriber{
		segments: []models.Segment{{ID: "seg-1", StartTime: 0, EndTime: 2, OriginalText: "spoken"}},
		language: "en",
	}

	p := testPool(t, videos, &fakeJobStore{}, tr, &fakeTranslator{}, &fakeMedia{}, &fakeExportStore{}, &fakeCaptions{})

	job := &models.Job{ID: uuid.New(), UserID: uuid.New(), Type: models.JobTranscription, VideoID: videoID}
	if err := p.processTranscription(context.Background(), job); err != nil {
		t.Fatalf("processTranscription() error = %v", err)
	}

	if !tr.called {
		t.Fatalf("expected the transcriber to be called")
	}
	if videos.completedLang != "en" {
		t.Errorf("detected language = %q, want en", videos.completedLang)
	}
}

func TestProcessExport_UploadsAndCompletes(t *testing.T) {
	videoID := uuid.New()
	userID := uuid.New()
	videos := &fakeVideoStore{video: &models.Video{
		ID:       videoID,
		UserID:   userID,
		Status:   models.StatusRendering,
		FilePath: "users/u/videos/v.mp4",
		Segments: []models.Segment{{ID: "seg-1", StartTime: 0, EndTime: 2, OriginalText: "hello"}},
		Settings: models.DefaultSubtitleSettings(),
	}}
	st := &fakeExportStore{}

	p := testPool(t, videos, &fakeJobStore{}, &fakeTranscriber{}, &fakeTranslator{}, &fakeMedia{}, st, &fakeCaptions{})

	job := &models.Job{ID: uuid.New(), UserID: userID, Type: models.JobExport, VideoID: videoID}
	if err := p.processExport(context.Background(), job); err != nil {
		t.Fatalf("processExport() error = %v", err)
	}

	if !videos.exported {
		t.Errorf("expected CompleteExport to be called")
	}
	if st.uploaded == "" || videos.exportObject != st.uploaded {
		t.Errorf("uploaded object %q should match the recorded export object %q", st.uploaded, videos.exportObject)
	}
}

func TestProcessExport_BurnFailure(t *testing.T) {
	videoID := uuid.New()
	videos := &fakeVideoStore{video: &models.Video{
		ID:       videoID,
		Status:   models.StatusRendering,
		FilePath: "users/u/videos/v.mp4",
		Segments: []models.Segment{{ID: "seg-1", StartTime: 0, EndTime: 2, OriginalText: "hello"}},
	}}
	m := &fakeMedia{burnErr: &services.ExternalServiceError{Service: "ffmpeg", Err: errors.New("exit status 1")}}

	p := testPool(t, videos, &fakeJobStore{}, &fakeTranscriber{}, &fakeTranslator{}, m, &fakeExportStore{}, &fakeCaptions{})

	job := &models.Job{ID: uuid.New(), UserID: uuid.New(), Type: models.JobExport, VideoID: videoID}
	err := p.processExport(context.Background(), job)
	if err == nil {
		t.Fatal("expected an error from a failed burn-in")
	}
	if videos.exported {
		t.Errorf("export must not complete after a burn failure")
	}
}
