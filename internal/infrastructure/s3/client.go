package s3infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/transfer-notifier/internal/config"
	"github.com/transfer-notifier/internal/domain"
	"github.com/transfer-notifier/internal/infrastructure/awsconf"
)

// API is the subset of the S3 client used by Store.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store writes retention archives to a bucket.
type Store struct {
	client API
	bucket string
	now    func() time.Time
}

// NewClient creates an S3 client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}

	clientOpts := []func(*s3.Options){}
	if endpoint := awsconf.Endpoint(cfg); endpoint != nil {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = endpoint
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// NewStore creates a Store with the given S3 client and bucket name.
func NewStore(client API, bucket string) *Store {
	return &Store{client: client, bucket: bucket, now: time.Now}
}

// Upload streams r to S3 under key and returns the object URL.
func (s *Store) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Archive writes records as one JSON-lines object keyed by sweep date and run id.
func (s *Store) Archive(ctx context.Context, runID string, records []domain.NotificationRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encode notification %s: %w", records[i].NotificationID, err)
		}
	}
	_, err := s.Upload(ctx, ArchiveKey(s.now(), runID), &buf, "application/x-ndjson")
	return err
}

// ArchiveKey returns the object key for a sweep run.
func ArchiveKey(at time.Time, runID string) string {
	return fmt.Sprintf("retention/%s/%s.jsonl", at.UTC().Format("2006/01/02"), runID)
}
