package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"cinescript-backend/internal/models"
)

// Redis list names, one per job type.
const (
	QueueTranscription = "queue:transcription"
	QueueTranslation   = "queue:translation"
	QueueExport        = "queue:export"
)

// All returns every queue a worker should drain.
func All() []string {
	return []string{QueueTranscription, QueueTranslation, QueueExport}
}

// ForJobType maps a job type to its queue name.
func ForJobType(jobType string) string {
	switch jobType {
	case models.JobTranscription:
		return QueueTranscription
	case models.JobTranslation:
		return QueueTranslation
	case models.JobExport:
		return QueueExport
	default:
		return "queue:" + jobType
	}
}

// RedisQueue pushes jobs onto per-type Redis lists; workers drain them with
// a blocking pop on the other side.
type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.LPush(ctx, ForJobType(job.Type), string(data)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}
