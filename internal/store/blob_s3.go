package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"nyx/internal/domain"
)

const (
	defaultPresignExpiry = 7 * 24 * time.Hour
	maxBlobSize          = 64 << 20
)

// S3Config locates the bucket attachments are written to. AccessKey and
// SecretKey may be empty to use the default AWS credential chain.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	UsePathStyle  bool
	PresignExpiry time.Duration
}

type s3Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3BlobStore uploads envelopes to an S3 bucket and returns presigned GET
// URLs, so recipients need no credentials to fetch them.
type S3BlobStore struct {
	bucket  string
	expiry  time.Duration
	put     s3Putter
	presign s3Presigner
	http    *http.Client
}

// NewS3BlobStore builds the S3 client from cfg.
func NewS3BlobStore(ctx context.Context, cfg S3Config) (*S3BlobStore, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newS3BlobStore(cfg, client, s3.NewPresignClient(client)), nil
}

func newS3BlobStore(cfg S3Config, put s3Putter, presign s3Presigner) *S3BlobStore {
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	return &S3BlobStore{
		bucket:  cfg.Bucket,
		expiry:  expiry,
		put:     put,
		presign: presign,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func storageKey() string {
	d := time.Now().UTC()
	return fmt.Sprintf("attachments/%d/%02d/%02d/%s", d.Year(), d.Month(), d.Day(), uuid.New())
}

// Upload puts data in the bucket and returns a presigned URL for it.
func (s *S3BlobStore) Upload(ctx context.Context, data []byte, mime string) (string, error) {
	key := storageKey()
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if mime != "" {
		in.ContentType = aws.String(mime)
	}
	if _, err := s.put.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("%w: put %s: %w", domain.ErrRemoteUnavailable, key, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Fetch downloads a blob by URL.
func (s *S3BlobStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("blob url: %w", domain.ErrInvalidFormat)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("blob: %s: %w", resp.Status, domain.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: blob: %s", domain.ErrRemoteUnavailable, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBlobSize))
}

var _ domain.BlobStore = (*S3BlobStore)(nil)
