package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"saferide-service/internal/config"
	"saferide-service/internal/domain/detection"
)

// Sidecar is the JSON metadata document archived next to a media artifact.
type Sidecar struct {
	Detections []detection.Detection `json:"detections"`
}

type S3Client struct {
	client *s3.Client
	bucket string
	region string
}

func NewS3Client(cfg config.S3Config) (*S3Client, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("s3 bucket and region are required")
	}

	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3Client{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
	}, nil
}

// ObjectURL derives the public URL for a key. The bucket is public-read via
// bucket policy, so the URL is valid as soon as the object lands.
func (c *S3Client) ObjectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, strings.TrimLeft(key, "/"))
}

// Upload puts the media file under key and, if a sidecar is supplied, a JSON
// document at the same key with its extension replaced by .json. The media
// URL is returned even when the sidecar write fails after one re-attempt;
// the caller decides how loudly to report the partial archive.
func (c *S3Client) Upload(ctx context.Context, localPath, key string, sidecar *Sidecar, contentType string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", localPath, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty artifact %s", localPath)
	}

	input := &s3.PutObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := c.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}

	url := c.ObjectURL(key)

	if sidecar != nil {
		if err := c.putSidecar(ctx, key, sidecar); err != nil {
			// One reconciliation attempt keeps the pair co-consistent
			// across transient failures.
			if retryErr := c.putSidecar(ctx, key, sidecar); retryErr != nil {
				return url, fmt.Errorf("sidecar upload failed: %w", retryErr)
			}
		}
	}

	return url, nil
}

func (c *S3Client) putSidecar(ctx context.Context, mediaKey string, sidecar *Sidecar) error {
	body, err := json.Marshal(sidecar)
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}

	key := SidecarKey(mediaKey)
	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	return err
}

// SidecarKey replaces the media key's extension with .json.
func SidecarKey(mediaKey string) string {
	ext := filepath.Ext(mediaKey)
	return strings.TrimSuffix(mediaKey, ext) + ".json"
}
