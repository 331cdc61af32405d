package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/logging"
	"github.com/releasedesk/backend/internal/config"
)

// S3Store keeps release assets in an S3-compatible bucket and hands out presigned URLs.
type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(cfg *config.Config) (*S3Store, error) {
	client, err := buildClient(cfg.AssetsS3Endpoint, cfg.AssetsS3Region, cfg.AssetsS3AccessKeyID, cfg.AssetsS3SecretAccessKey, cfg.AssetsS3UsePathStyle)
	if err != nil {
		return nil, err
	}
	return &S3Store{client: client, bucket: cfg.AssetsBucket}, nil
}

func buildClient(endpoint, region, key, secret string, pathStyle bool) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		awsconfig.WithLogger(logging.NewStandardLogger(io.Discard)),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return client, nil
}

// Put streams r to the bucket with a multipart uploader, hashing on the way.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, contentType string) (*StoredObject, error) {
	hasher := sha256.New()
	counter := &countingReader{r: io.TeeReader(r, hasher)}

	uploader := manager.NewUploader(s.client)
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		ACL:         s3types.ObjectCannedACLPrivate,
		Body:        counter,
	}
	if _, err := uploader.Upload(ctx, in, func(u *manager.Uploader) { u.PartSize = 10 * 1024 * 1024 }); err != nil {
		return nil, &UpstreamError{Service: "object storage", Err: err}
	}
	return &StoredObject{Key: key, Size: counter.n, Checksum: hex.EncodeToString(hasher.Sum(nil))}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &UpstreamError{Service: "object storage", Err: err}
	}
	return nil
}

// DownloadURL presigns a GET that sets Content-Disposition to the original file name.
func (s *S3Store) DownloadURL(ctx context.Context, key, downloadName string, ttl time.Duration) (string, time.Time, error) {
	presigner := s3.NewPresignClient(s.client)
	in := &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}
	if downloadName != "" {
		in.ResponseContentDisposition = aws.String(fmt.Sprintf("attachment; filename=%q", downloadName))
	}
	out, err := presigner.PresignGetObject(ctx, in, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", time.Time{}, &UpstreamError{Service: "object storage", Err: err}
	}
	return out.URL, time.Now().Add(ttl), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
