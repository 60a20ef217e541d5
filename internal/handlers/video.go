package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cinescript-backend/internal/logger"
	"cinescript-backend/internal/middleware"
	"cinescript-backend/internal/models"
	"cinescript-backend/internal/services"
)

type videoRepository interface {
	Create(ctx context.Context, v *models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Video, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateDuration(ctx context.Context, id uuid.UUID, duration float64) error
	TransitionStatus(ctx context.Context, id uuid.UUID, from []models.VideoStatus, to models.VideoStatus) (models.VideoStatus, bool, error)
	SetError(ctx context.Context, id uuid.UUID, reason string) error
	ReplaceSegments(ctx context.Context, id uuid.UUID, segments []models.Segment) (bool, error)
	ReplaceSettings(ctx context.Context, id uuid.UUID, settings models.SubtitleSettings) (bool, error)
}

type durationProber interface {
	ProbeDuration(ctx context.Context, videoPath string) (float64, error)
}

type videoDownloader interface {
	DownloadVideo(videoURL, destPath string) (string, error)
	HasCaptions(videoID string) bool
}

type objectPresigner interface {
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	RemoveObject(ctx context.Context, objectName string) error
}

type VideoHandler struct {
	videoRepo      videoRepository
	projectRepo    projectRepository
	media          durationProber
	youtube        videoDownloader
	storage        objectPresigner
	storagePath    string
	maxUploadBytes int64
}

func NewVideoHandler(
	videoRepo videoRepository,
	projectRepo projectRepository,
	media durationProber,
	youtube videoDownloader,
	storage objectPresigner,
	storagePath string,
	maxUploadBytes int64,
) *VideoHandler {
	return &VideoHandler{
		videoRepo:      videoRepo,
		projectRepo:    projectRepo,
		media:          media,
		youtube:        youtube,
		storage:        storage,
		storagePath:    storagePath,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	if r.ContentLength > h.maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds upload limit", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	// Magic byte check before trusting the extension
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	buf = buf[:n]

	mimeType := http.DetectContentType(buf)
	if !isAllowedVideoType(mimeType, header.Filename) {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "File type not supported", r))
		return
	}
	file.Seek(0, io.SeekStart)

	identity := middleware.GetIdentity(r.Context())
	fileID := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(header.Filename))
	relPath := filepath.Join("users", identity.UserID.String(), "videos", fileID+ext)
	fullPath := filepath.Join(h.storagePath, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(fullPath)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store file", r))
		return
	}
	dst.Close()

	video := &models.Video{
		ProjectID:        project.ID,
		UserID:           identity.UserID,
		Filename:         fileID + ext,
		OriginalFilename: header.Filename,
		FilePath:         relPath,
		Status:           models.StatusUploaded,
		Segments:         []models.Segment{},
		Settings:         models.DefaultSubtitleSettings(),
	}

	if err := h.videoRepo.Create(r.Context(), video); err != nil {
		os.Remove(fullPath)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create video record", r))
		return
	}

	// Probe duration off the request path
	go h.probeDuration(video.ID, fullPath)

	writeJSON(w, http.StatusCreated, video)
}

func (h *VideoHandler) ImportYouTube(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req models.ImportYouTubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	videoID := services.ExtractVideoID(req.URL)
	if videoID == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"url": "Invalid YouTube URL"}, r))
		return
	}

	identity := middleware.GetIdentity(r.Context())
	fileID := uuid.New().String()
	relPath := filepath.Join("users", identity.UserID.String(), "videos", fileID+".mp4")

	video := &models.Video{
		ProjectID:        project.ID,
		UserID:           identity.UserID,
		Filename:         fileID + ".mp4",
		OriginalFilename: "youtube-" + videoID + ".mp4",
		FilePath:         relPath,
		SourceURL:        &req.URL,
		Status:           models.StatusUploaded,
		Segments:         []models.Segment{},
		Settings:         models.DefaultSubtitleSettings(),
	}

	if err := h.videoRepo.Create(r.Context(), video); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create video record", r))
		return
	}

	// Download happens in the background; a failed download parks the video
	// in the error status, from where transcription can be re-triggered.
	go h.downloadImport(video.ID, req.URL, filepath.Join(h.storagePath, relPath))

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"video":              video,
		"captions_available": h.youtube.HasCaptions(videoID),
	})
}

func (h *VideoHandler) probeDuration(videoID uuid.UUID, fullPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	duration, err := h.media.ProbeDuration(ctx, fullPath)
	if err != nil {
		logger.S().Warnw("duration probe failed", "video_id", videoID, "error", err)
		return
	}
	if err := h.videoRepo.UpdateDuration(ctx, videoID, duration); err != nil {
		logger.S().Warnw("failed to save duration", "video_id", videoID, "error", err)
	}
}

func (h *VideoHandler) downloadImport(videoID uuid.UUID, url, fullPath string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		h.videoRepo.SetError(ctx, videoID, "failed to prepare storage for import")
		return
	}

	if _, err := h.youtube.DownloadVideo(url, fullPath); err != nil {
		logger.S().Errorw("youtube import failed", "video_id", videoID, "error", err)
		h.videoRepo.SetError(ctx, videoID, "YouTube download failed: "+err.Error())
		return
	}

	h.probeDuration(videoID, fullPath)
}

func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	videos, err := h.videoRepo.ListByProject(r.Context(), project.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list videos", r))
		return
	}
	if videos == nil {
		videos = []*models.Video{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"videos": videos})
}

func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	video, ok := h.accessibleVideo(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (h *VideoHandler) Status(w http.ResponseWriter, r *http.Request) {
	video, ok := h.accessibleVideo(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":            video.ID,
		"status":        video.Status,
		"progress":      video.Progress,
		"error_message": video.ErrorMessage,
	})
}

func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	video, ok := h.accessibleVideo(w, r)
	if !ok {
		return
	}

	if video.Status.Busy() {
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", "Video has a job in progress", r))
		return
	}

	removeVideoFiles(video, h.storagePath)
	if video.OutputObject != nil && *video.OutputObject != "" {
		if err := h.storage.RemoveObject(r.Context(), *video.OutputObject); err != nil {
			logger.S().Warnw("failed to remove export object", "video_id", video.ID, "error", err)
		}
	}

	if err := h.videoRepo.Delete(r.Context(), video.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete video", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Video deleted"})
}

// Download returns a short-lived link to the rendered export.
func (h *VideoHandler) Download(w http.ResponseWriter, r *http.Request) {
	video, ok := h.accessibleVideo(w, r)
	if !ok {
		return
	}

	if video.Status != models.StatusCompleted || video.OutputObject == nil || *video.OutputObject == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_STATE", "No completed export available for this video", r))
		return
	}

	url, err := h.storage.PresignedURL(r.Context(), *video.OutputObject, time.Hour)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url":        url,
		"expires_in": 3600,
	})
}

func (h *VideoHandler) ownedProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid project ID", r))
		return nil, false
	}

	project, err := h.projectRepo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Project not found", r))
		return nil, false
	}

	identity := middleware.GetIdentity(r.Context())
	if project.UserID != identity.UserID && !identity.Admin {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}

	return project, true
}

// accessibleVideo loads the video from the URL and runs the access gate.
func (h *VideoHandler) accessibleVideo(w http.ResponseWriter, r *http.Request) (*models.Video, bool) {
	return loadAccessibleVideo(w, r, h.videoRepo)
}

func loadAccessibleVideo(w http.ResponseWriter, r *http.Request, repo videoRepository) (*models.Video, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid video ID", r))
		return nil, false
	}

	video, err := repo.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Video not found", r))
		return nil, false
	}

	identity := middleware.GetIdentity(r.Context())
	if err := services.AuthorizeVideoAccess(identity, video); err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}

	return video, true
}

func isAllowedVideoType(mime, filename string) bool {
	allowed := map[string]bool{
		"video/mp4":                true,
		"video/webm":               true,
		"video/quicktime":          true,
		"video/x-msvideo":          true,
		"application/octet-stream": true,
	}
	if !allowed[mime] {
		return false
	}
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".mp4") || strings.HasSuffix(lower, ".webm") ||
		strings.HasSuffix(lower, ".mov") || strings.HasSuffix(lower, ".avi") ||
		strings.HasSuffix(lower, ".mkv")
}
