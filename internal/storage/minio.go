package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maneesh/mediadrop/internal/manifest"
	"github.com/maneesh/mediadrop/internal/models"
)

const manifestPrefix = "bundles/"

// MinioBundleStore keeps one JSON manifest object per bundle.
type MinioBundleStore struct {
	client     *minio.Client
	bucketName string
	now        func() time.Time
}

// NewMinioBundleStore initializes a MinIO client and makes sure the bucket exists.
func NewMinioBundleStore(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinioBundleStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		slog.Info("creating bucket", "bucket", bucketName)
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return NewMinioBundleStoreFromClient(client, bucketName), nil
}

// NewMinioBundleStoreFromClient wraps an existing client. The bucket must
// already exist.
func NewMinioBundleStoreFromClient(client *minio.Client, bucketName string) *MinioBundleStore {
	return &MinioBundleStore{
		client:     client,
		bucketName: bucketName,
		now:        time.Now,
	}
}

// Put writes the manifest unless an object for token already exists.
func (mc *MinioBundleStore) Put(ctx context.Context, token string, attachments []models.Attachment) error {
	objectKey := manifestKey(token)
	ctx, span := tracer.Start(ctx, "minio.put_bundle",
		trace.WithAttributes(
			attribute.String("object_key", objectKey),
			attribute.Int("attachment_count", len(attachments)),
		),
	)
	defer span.End()

	if len(attachments) == 0 {
		return ErrEmptyBundle
	}

	_, err := mc.client.StatObject(ctx, mc.bucketName, objectKey, minio.StatObjectOptions{})
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("duplicate", true))
		return ErrDuplicateToken
	case !isNoSuchKey(err):
		span.RecordError(err)
		return fmt.Errorf("failed to stat manifest: %w", err)
	}

	data, err := manifest.Encode(token, attachments, mc.now())
	if err != nil {
		span.RecordError(err)
		return err
	}

	_, err = mc.client.PutObject(ctx, mc.bucketName, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upload manifest: %w", err)
	}

	span.SetAttributes(attribute.Bool("upload_success", true))
	return nil
}

// Get downloads and verifies the bundle manifest.
func (mc *MinioBundleStore) Get(ctx context.Context, token string) ([]models.Attachment, error) {
	objectKey := manifestKey(token)
	ctx, span := tracer.Start(ctx, "minio.get_bundle",
		trace.WithAttributes(
			attribute.String("object_key", objectKey),
		),
	)
	defer span.End()

	object, err := mc.client.GetObject(ctx, mc.bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer object.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(object)
	if err != nil {
		if isNoSuchKey(err) {
			span.SetAttributes(attribute.Bool("found", false))
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}

	m, err := manifest.Decode(data)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bundle %s: %w", token, err)
	}

	span.SetAttributes(
		attribute.Bool("found", true),
		attribute.Int("size_bytes", len(data)),
	)
	return m.Attachments, nil
}

func manifestKey(token string) string {
	return manifestPrefix + token + ".json"
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
