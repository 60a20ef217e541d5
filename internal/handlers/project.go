package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cinescript-backend/internal/logger"
	"cinescript-backend/internal/middleware"
	"cinescript-backend/internal/models"
)

type projectRepository interface {
	Create(ctx context.Context, p *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)
	Update(ctx context.Context, p *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProjectHandler struct {
	projectRepo projectRepository
	videoRepo   videoRepository
	storagePath string
}

func NewProjectHandler(projectRepo projectRepository, videoRepo videoRepository, storagePath string) *ProjectHandler {
	return &ProjectHandler{
		projectRepo: projectRepo,
		videoRepo:   videoRepo,
		storagePath: storagePath,
	}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"name": "Project name is required"}, r))
		return
	}

	identity := middleware.GetIdentity(r.Context())
	project := &models.Project{
		UserID:      identity.UserID,
		Name:        req.Name,
		Description: req.Description,
	}

	if err := h.projectRepo.Create(r.Context(), project); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create project", r))
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	projects, err := h.projectRepo.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list projects", r))
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project": project,
		"videos":  videos,
	})
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req models.UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
				map[string]string{"name": "Project name cannot be empty"}, r))
			return
		}
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}

	if err := h.projectRepo.Update(r.Context(), project); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to update project", r))
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	// Remove media files before the rows cascade away.
	videos, err := h.videoRepo.ListByProject(r.Context(), project.ID)
	if err == nil {
		for _, v := range videos {
			removeVideoFiles(v, h.storagePath)
		}
	}

	if err := h.projectRepo.Delete(r.Context(), project.ID); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete project", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Project deleted"})
}

// ownedProject loads the project from the URL and enforces ownership. Admins
// may operate on any project.
func (h *ProjectHandler) ownedProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
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

func removeVideoFiles(v *models.Video, storagePath string) {
	if v.FilePath != "" {
		if err := os.Remove(filepath.Join(storagePath, v.FilePath)); err != nil && !os.IsNotExist(err) {
			logger.S().Warnw("failed to remove video file", "video_id", v.ID, "error", err)
		}
	}
	if v.OutputPath != nil && *v.OutputPath != "" {
		if err := os.Remove(*v.OutputPath); err != nil && !os.IsNotExist(err) {
			logger.S().Warnw("failed to remove export file", "video_id", v.ID, "error", err)
		}
	}
}
