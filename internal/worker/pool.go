package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cinescript-backend/internal/logger"
	"cinescript-backend/internal/models"
	"cinescript-backend/internal/queue"
	"cinescript-backend/internal/services"
	"cinescript-backend/internal/subtitle"
)

type videoStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
	TransitionStatus(ctx context.Context, id uuid.UUID, from []models.VideoStatus, to models.VideoStatus) (models.VideoStatus, bool, error)
	SetError(ctx context.Context, id uuid.UUID, reason string) error
	CompleteTranscription(ctx context.Context, id uuid.UUID, segments []models.Segment, sourceLanguage string) error
	CompleteTranslation(ctx context.Context, id uuid.UUID, segments []models.Segment, targetLanguage string) error
	CompleteExport(ctx context.Context, id uuid.UUID, outputPath, outputObject string) error
}

type jobStore interface {
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]models.Segment, string, error)
}

type translator interface {
	TranslateSegments(ctx context.Context, segments []models.Segment, targetLang string) ([]string, error)
}

type mediaProcessor interface {
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	BurnSubtitles(ctx context.Context, videoPath, srtPath, outPath string, settings models.SubtitleSettings) error
}

type exportStore interface {
	UploadFile(ctx context.Context, objectName, filePath, contentType string) (int64, error)
}

type captionSource interface {
	HasCaptions(videoID string) bool
	GetTimedCaptions(videoID string) ([]models.Segment, error)
}

// Pool drains the job queues. A job is processed by at most one worker (the
// Redis lock covers redelivery) and never retried automatically: failures
// settle into the error status and wait for a manual re-trigger.
type Pool struct {
	redis       *redis.Client
	videoRepo   videoStore
	jobRepo     jobStore
	transcriber transcriber
	translator  translator
	media       mediaProcessor
	storage     exportStore
	captions    captionSource
	storagePath string
	outputPath  string
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	videoRepo videoStore,
	jobRepo jobStore,
	transcriberSvc transcriber,
	translatorSvc translator,
	mediaSvc mediaProcessor,
	storageSvc exportStore,
	captionsSvc captionSource,
	storagePath string,
	outputPath string,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		videoRepo:   videoRepo,
		jobRepo:     jobRepo,
		transcriber: transcriberSvc,
		translator:  translatorSvc,
		media:       mediaSvc,
		storage:     storageSvc,
		captions:    captionsSvc,
		storagePath: storagePath,
		outputPath:  outputPath,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	logger.S().Infow("started worker goroutines", "count", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	queues := queue.All()

	for {
		select {
		case <-p.stopChan:
			logger.S().Infow("worker shutting down", "worker", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			logger.S().Errorw("failed to parse job", "worker", id, "error", err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 30*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		logger.S().Infow("processing job", "worker", id, "job_id", job.ID, "type", job.Type)
		p.jobRepo.MarkProcessing(ctx, job.ID)

		var processErr error
		switch job.Type {
		case models.JobTranscription:
			processErr = p.processTranscription(ctx, &job)
		case models.JobTranslation:
			processErr = p.processTranslation(ctx, &job)
		case models.JobExport:
			processErr = p.processExport(ctx, &job)
		default:
			processErr = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			p.handleSuccess(ctx, &job)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) processTranscription(ctx context.Context, job *models.Job) error {
	video, err := p.videoRepo.GetByID(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	p.publishProgress(ctx, job, video.ID, models.StatusTranscribing, 10)

	// Imported videos with published captions skip speech-to-text entirely.
	if video.SourceURL != nil {
		if videoID := services.ExtractVideoID(*video.SourceURL); videoID != "" && p.captions.HasCaptions(videoID) {
			segments, capErr := p.captions.GetTimedCaptions(videoID)
			if capErr == nil && len(segments) > 0 {
				return p.videoRepo.CompleteTranscription(ctx, video.ID, segments, "")
			}
			logger.S().Warnw("caption fetch failed, falling back to speech-to-text",
				"video_id", video.ID, "error", capErr)
		}
	}

	videoPath := filepath.Join(p.storagePath, video.FilePath)
	audioPath := filepath.Join(os.TempDir(), video.ID.String()+".mp3")
	defer os.Remove(audioPath)

	if err := p.media.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		return err
	}

	p.publishProgress(ctx, job, video.ID, models.StatusTranscribing, 40)
	p.videoRepo.UpdateProgress(ctx, video.ID, 40)

	segments, language, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return err
	}

	p.publishProgress(ctx, job, video.ID, models.StatusTranscribing, 90)

	return p.videoRepo.CompleteTranscription(ctx, video.ID, segments, language)
}

func (p *Pool) processTranslation(ctx context.Context, job *models.Job) error {
	video, err := p.videoRepo.GetByID(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	var config models.JobConfig
	if err := json.Unmarshal(job.ConfigJSON, &config); err != nil {
		return fmt.Errorf("unreadable job config: %w", err)
	}

	if len(video.Segments) == 0 {
		return fmt.Errorf("video has no segments to translate")
	}

	p.publishProgress(ctx, job, video.ID, models.StatusTranslating, 20)

	translated, err := p.translator.TranslateSegments(ctx, video.Segments, config.TargetLanguage)
	if err != nil {
		return err
	}

	segments := make([]models.Segment, len(video.Segments))
	copy(segments, video.Segments)
	for i := range segments {
		segments[i].TranslatedText = translated[i]
	}

	p.publishProgress(ctx, job, video.ID, models.StatusTranslating, 90)

	return p.videoRepo.CompleteTranslation(ctx, video.ID, segments, config.TargetLanguage)
}

func (p *Pool) processExport(ctx context.Context, job *models.Job) error {
	video, err := p.videoRepo.GetByID(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("failed to load video: %w", err)
	}

	if len(video.Segments) == 0 {
		return fmt.Errorf("video has no segments to render")
	}

	srtPath := filepath.Join(os.TempDir(), video.ID.String()+".srt")
	if err := os.WriteFile(srtPath, []byte(subtitle.GenerateSRT(video.Segments)), 0o644); err != nil {
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}
	defer os.Remove(srtPath)

	p.publishProgress(ctx, job, video.ID, models.StatusRendering, 20)

	if err := os.MkdirAll(p.outputPath, 0o755); err != nil {
		return fmt.Errorf("failed to prepare output directory: %w", err)
	}

	videoPath := filepath.Join(p.storagePath, video.FilePath)
	outPath := filepath.Join(p.outputPath, video.ID.String()+"_export.mp4")

	if err := p.media.BurnSubtitles(ctx, videoPath, srtPath, outPath, video.Settings); err != nil {
		return err
	}

	p.publishProgress(ctx, job, video.ID, models.StatusRendering, 80)

	objectName := fmt.Sprintf("exports/%s/%s.mp4", video.UserID, video.ID)
	if _, err := p.storage.UploadFile(ctx, objectName, outPath, "video/mp4"); err != nil {
		return err
	}

	return p.videoRepo.CompleteExport(ctx, video.ID, outPath, objectName)
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.jobRepo.MarkCompleted(ctx, job.ID)

	status := models.StatusCompleted
	if video, err := p.videoRepo.GetByID(ctx, job.VideoID); err == nil {
		status = video.Status
	}

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:   job.ID,
			VideoID: job.VideoID,
			Status:  status,
		},
	})

	logger.S().Infow("job completed", "job_id", job.ID, "type", job.Type)
}

// handleFailure settles a failed job. A translation alignment failure is the
// one soft case: the model misbehaved but nothing is broken, so the video
// returns to the status it held before the trigger and keeps its segments.
// Everything else parks the video in the error status.
func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	errMsg := err.Error()
	p.jobRepo.MarkFailed(ctx, job.ID, errMsg)

	var config models.JobConfig
	if cfgErr := json.Unmarshal(job.ConfigJSON, &config); cfgErr != nil {
		// A broken payload leaves config zero, so the alignment revert below
		// is skipped and the video falls through to the error status.
		logger.S().Errorw("unreadable job config", "job_id", job.ID, "error", cfgErr)
	}

	errorCode := "JOB_FAILED"

	var alignErr *services.TranslationAlignmentError
	var extErr *services.ExternalServiceError
	switch {
	case errors.As(err, &alignErr):
		errorCode = "TRANSLATION_ALIGNMENT"
		if config.ResumeStatus != "" {
			busy := []models.VideoStatus{models.StatusTranscribing, models.StatusTranslating, models.StatusRendering}
			if _, ok, revertErr := p.videoRepo.TransitionStatus(ctx, job.VideoID, busy, config.ResumeStatus); revertErr != nil || !ok {
				logger.S().Errorw("failed to revert video after alignment failure",
					"video_id", job.VideoID, "error", revertErr)
			}
		}
	case errors.As(err, &extErr):
		errorCode = "EXTERNAL_SERVICE_ERROR"
		p.videoRepo.SetError(ctx, job.VideoID, errMsg)
	default:
		p.videoRepo.SetError(ctx, job.VideoID, errMsg)
	}

	p.publish(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			VideoID:      job.VideoID,
			ErrorCode:    errorCode,
			ErrorMessage: errMsg,
		},
	})

	logger.S().Errorw("job failed", "job_id", job.ID, "type", job.Type, "code", errorCode, "error", errMsg)
}

func (p *Pool) publishProgress(ctx context.Context, job *models.Job, videoID uuid.UUID, status models.VideoStatus, progress int) {
	p.publish(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			VideoID:  videoID,
			Status:   status,
			Progress: progress,
		},
	})
}

// publish sends a WebSocket update via Redis pub/sub.
func (p *Pool) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	data, _ := json.Marshal(msg)
	p.redis.Publish(ctx, fmt.Sprintf("user_updates:%s", userID.String()), string(data))
}
