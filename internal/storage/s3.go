package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Bucket string
	// Prefix is prepended to every key.
	Prefix string
	// Endpoint points the client at an S3 compatible service such as MinIO.
	// Path style addressing is used whenever it is set.
	Endpoint string
}

type s3Storage struct {
	client *s3.Client
	config S3Config
}

func NewS3Storage(ctx context.Context, c S3Config) (Storage, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &s3Storage{
		client: s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			if c.Endpoint != "" {
				o.BaseEndpoint = aws.String(c.Endpoint)
				o.UsePathStyle = true
			}
		}),
		config: c,
	}, nil
}

func (s *s3Storage) url(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.config.Bucket, key)
}

func (s *s3Storage) Put(ctx context.Context, key string, data []byte) (string, error) {
	key = path.Join(s.config.Prefix, key)

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(ContentType(key, data)),
		ContentLength: aws.Int64(int64(len(data))),
	}); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", s.url(key), err)
	}

	return s.url(key), nil
}

func (s *s3Storage) Get(ctx context.Context, url string) ([]byte, error) {
	key, err := objectKey(s.config, url)
	if err != nil {
		return nil, err
	}

	object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer object.Body.Close()

	data, err := io.ReadAll(object.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return data, nil
}

// objectKey maps an s3:// URL back to its key, accepting only keys below the configured prefix.
func objectKey(c S3Config, url string) (string, error) {
	key, ok := strings.CutPrefix(url, fmt.Sprintf("s3://%s/", c.Bucket))
	if !ok {
		return "", fmt.Errorf("%q is not in bucket %s: %w", url, c.Bucket, ErrOutsideStorage)
	}
	if key == "" || path.Clean(key) != key {
		return "", fmt.Errorf("%q is not a stored object: %w", url, ErrOutsideStorage)
	}
	if prefix := path.Clean(c.Prefix); c.Prefix != "" && prefix != "." && !strings.HasPrefix(key, prefix+"/") {
		return "", fmt.Errorf("%q is not under prefix %s: %w", url, prefix, ErrOutsideStorage)
	}
	return key, nil
}
