package analysis

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
)

// S3Archive writes analysis transcripts to an S3-compatible bucket.
type S3Archive struct {
	client *minio.Client
	bucket string
}

func NewS3Archive(client *minio.Client, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket}
}

func (a *S3Archive) Store(ctx context.Context, key string, payload []byte) error {
	if a.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if key == "" {
		return fmt.Errorf("object key is required")
	}

	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put transcript object: %w", err)
	}

	return nil
}
