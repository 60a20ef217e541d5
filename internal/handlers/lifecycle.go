package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"cinescript-backend/internal/logger"
	"cinescript-backend/internal/middleware"
	"cinescript-backend/internal/models"
	"cinescript-backend/internal/services"
)

type jobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

type jobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

// LifecycleHandler owns the three processing triggers. Each trigger is a
// compare-and-set on the video status followed by a fire-and-forget enqueue;
// the status itself is the job lock, so two concurrent triggers can never
// both win.
type LifecycleHandler struct {
	videoRepo videoRepository
	jobRepo   jobRepository
	queue     jobQueue
}

func NewLifecycleHandler(videoRepo videoRepository, jobRepo jobRepository, queue jobQueue) *LifecycleHandler {
	return &LifecycleHandler{
		videoRepo: videoRepo,
		jobRepo:   jobRepo,
		queue:     queue,
	}
}

func (h *LifecycleHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	video, ok := h.processableVideo(w, r)
	if !ok {
		return
	}

	if !video.Status.AllowsTranscribe() {
		handleServiceError(w, r, &services.InvalidStateError{Operation: "transcribe", Status: string(video.Status)})
		return
	}

	h.trigger(w, r, video, models.JobTranscription, models.TranscribeFrom, models.StatusTranscribing, "")
}

func (h *LifecycleHandler) Translate(w http.ResponseWriter, r *http.Request) {
	video, ok := h.processableVideo(w, r)
	if !ok {
		return
	}

	var req models.TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if !models.IsSupportedLanguage(req.TargetLanguage) {
		handleServiceError(w, r, &services.InvalidLanguageError{Code: req.TargetLanguage})
		return
	}

	if !video.Status.AllowsTranslate() {
		handleServiceError(w, r, &services.InvalidStateError{Operation: "translate", Status: string(video.Status)})
		return
	}

	if len(video.Segments) == 0 {
		handleServiceError(w, r, &services.InvalidStateError{Operation: "translate", Status: "without segments"})
		return
	}

	h.trigger(w, r, video, models.JobTranslation, models.TranslateFrom, models.StatusTranslating, req.TargetLanguage)
}

func (h *LifecycleHandler) Export(w http.ResponseWriter, r *http.Request) {
	video, ok := h.processableVideo(w, r)
	if !ok {
		return
	}

	if !video.Status.AllowsExport() {
		handleServiceError(w, r, &services.InvalidStateError{Operation: "export", Status: string(video.Status)})
		return
	}

	if len(video.Segments) == 0 {
		handleServiceError(w, r, &services.InvalidStateError{Operation: "export", Status: "without segments"})
		return
	}

	h.trigger(w, r, video, models.JobExport, models.ExportFrom, models.StatusRendering, "")
}

// trigger performs the CAS acquire, persists the job and enqueues it. A lost
// race surfaces as a conflict; an enqueue failure rolls the status back so
// the video is not stuck busy with no worker coming.
func (h *LifecycleHandler) trigger(
	w http.ResponseWriter,
	r *http.Request,
	video *models.Video,
	jobType string,
	from []models.VideoStatus,
	to models.VideoStatus,
	targetLanguage string,
) {
	ctx := r.Context()

	prev, acquired, err := h.videoRepo.TransitionStatus(ctx, video.ID, from, to)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update video status", r))
		return
	}
	if !acquired {
		// Lost the race or the status moved since we loaded it.
		current, err := h.videoRepo.GetByID(ctx, video.ID)
		if err == nil && current.Status.Busy() {
			handleServiceError(w, r, &services.ConflictError{Message: "Video has a job in progress"})
			return
		}
		status := string(video.Status)
		if err == nil {
			status = string(current.Status)
		}
		handleServiceError(w, r, &services.InvalidStateError{Operation: jobType, Status: status})
		return
	}

	configJSON, _ := json.Marshal(models.JobConfig{
		TargetLanguage: targetLanguage,
		ResumeStatus:   prev,
	})

	identity := middleware.GetIdentity(r.Context())
	job := &models.Job{
		UserID:     identity.UserID,
		Type:       jobType,
		VideoID:    video.ID,
		ConfigJSON: configJSON,
	}

	if err := h.jobRepo.Create(ctx, job); err != nil {
		h.rollback(ctx, video.ID, to, prev)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	if err := h.queue.Enqueue(ctx, job); err != nil {
		h.rollback(ctx, video.ID, to, prev)
		logger.S().Errorw("failed to enqueue job", "job_id", job.ID, "type", jobType, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to enqueue job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   job.ID,
		"video_id": video.ID,
		"status":   to,
	})
}

func (h *LifecycleHandler) rollback(ctx context.Context, videoID uuid.UUID, from, to models.VideoStatus) {
	if _, _, err := h.videoRepo.TransitionStatus(ctx, videoID, []models.VideoStatus{from}, to); err != nil {
		logger.S().Errorw("failed to roll back video status", "video_id", videoID, "error", err)
	}
}

// processableVideo loads the video and runs the processing gate (ownership
// or elevated role, plus active subscription for non-admins).
func (h *LifecycleHandler) processableVideo(w http.ResponseWriter, r *http.Request) (*models.Video, bool) {
	video, ok := loadAccessibleVideo(w, r, h.videoRepo)
	if !ok {
		return nil, false
	}

	identity := middleware.GetIdentity(r.Context())
	if err := services.AuthorizeProcessing(identity, video); err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}

	if video.Status.Busy() {
		handleServiceError(w, r, &services.ConflictError{Message: "Video has a job in progress"})
		return nil, false
	}

	return video, true
}
