package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job types, one per external processing stage.
const (
	JobTranscription = "transcription"
	JobTranslation   = "translation"
	JobExport        = "export"
)

// Job statuses.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Job is one queued unit of background work against a video. There is no
// automatic retry: a failed job settles and the client re-triggers.
type Job struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"`
	VideoID      uuid.UUID       `json:"video_id"`
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// JobConfig is the per-job payload stored in ConfigJSON. ResumeStatus is the
// stable status the video held before the trigger acquired the busy state;
// a translation alignment failure rolls back to it.
type JobConfig struct {
	TargetLanguage string      `json:"target_language,omitempty"`
	ResumeStatus   VideoStatus `json:"resume_status,omitempty"`
}

// WebSocket event envelope.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StatusUpdate struct {
	JobID    uuid.UUID   `json:"job_id"`
	VideoID  uuid.UUID   `json:"video_id"`
	Status   VideoStatus `json:"status"`
	Progress int         `json:"progress"`
}

type CompletedEvent struct {
	JobID   uuid.UUID   `json:"job_id"`
	VideoID uuid.UUID   `json:"video_id"`
	Status  VideoStatus `json:"status"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	VideoID      uuid.UUID `json:"video_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API error envelope.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
