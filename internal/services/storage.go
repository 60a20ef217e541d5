package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"cinescript-backend/internal/logger"
)

// StorageService keeps rendered exports in an S3-compatible bucket and hands
// out short-lived download links.
type StorageService struct {
	client *minio.Client
	bucket string
}

func NewStorageService(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*StorageService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		logger.S().Infow("created storage bucket", "bucket", bucket)
	}

	return &StorageService{client: client, bucket: bucket}, nil
}

// UploadFile stores a local file under objectName and returns its size.
func (s *StorageService) UploadFile(ctx context.Context, objectName, filePath, contentType string) (int64, error) {
	info, err := s.client.FPutObject(ctx, s.bucket, objectName, filePath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, &ExternalServiceError{Service: "object storage", Err: err}
	}
	return info.Size, nil
}

// PresignedURL returns a time-limited GET link for a stored object.
func (s *StorageService) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, url.Values{})
	if err != nil {
		return "", &ExternalServiceError{Service: "object storage", Err: err}
	}
	return u.String(), nil
}

// RemoveObject deletes a stored export, used when its video is deleted.
func (s *StorageService) RemoveObject(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return &ExternalServiceError{Service: "object storage", Err: err}
	}
	return nil
}
