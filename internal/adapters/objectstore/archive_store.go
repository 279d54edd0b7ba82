// Package objectstore replicates download archives to an S3-compatible bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/converti/converti-api/internal/core"
	"github.com/minio/minio-go/v7"
)

const archiveObjectName = "converted.zip"

// Client is the subset of *minio.Client used by ArchiveStore.
type Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(
		ctx context.Context,
		bucketName, objectName, filePath string,
		opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// ArchiveStoreOptions configures NewArchiveStore.
type ArchiveStoreOptions struct {
	Client Client       // Required
	Bucket string       // Required
	Region string       // Optional: region used when the bucket is created
	Logger *slog.Logger // Optional
}

// ArchiveStore uploads converted.zip bundles as <job id>/converted.zip.
type ArchiveStore struct {
	client Client
	bucket string
	region string
	logger *slog.Logger
}

// NewArchiveStore validates options and constructs an ArchiveStore.
func NewArchiveStore(opts ArchiveStoreOptions) (*ArchiveStore, error) {
	if opts.Client == nil {
		return nil, errors.New("object store client is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveStore{
		client: opts.Client,
		bucket: bucket,
		region: opts.Region,
		logger: logger.With("component", "archive_store", "bucket", bucket),
	}, nil
}

// ObjectKey returns the object name for a job's archive.
func ObjectKey(jobID string) string {
	return jobID + "/" + archiveObjectName
}

// EnsureBucket creates the bucket when it does not exist.
func (s *ArchiveStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil {
		// Another instance may have created it in the meantime.
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.InfoContext(ctx, "created archive bucket")
	return nil
}

// PutArchive uploads the archive at path.
func (s *ArchiveStore) PutArchive(ctx context.Context, jobID, path string) error {
	info, err := s.client.FPutObject(ctx, s.bucket, ObjectKey(jobID), path, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return fmt.Errorf("put archive %s: %w", jobID, err)
	}
	s.logger.DebugContext(ctx, "archive replicated", "job_id", jobID, "size", info.Size)
	return nil
}

// DeleteArchive removes the replicated archive. A missing object is not an error.
func (s *ArchiveStore) DeleteArchive(ctx context.Context, jobID string) error {
	err := s.client.RemoveObject(ctx, s.bucket, ObjectKey(jobID), minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}
	return fmt.Errorf("delete archive %s: %w", jobID, err)
}

var _ core.ArchiveStore = (*ArchiveStore)(nil)
