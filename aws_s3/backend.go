// Package aws_s3 contains the S3 back-end: one object per entity, keyed by prefix + ID.
package aws_s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sharedcode/livepers"
)

func init() {
	livepers.RegisterBackend(livepers.S3Backend, func(ctx context.Context, cfg livepers.Config) (livepers.Backend, error) {
		client := Connect(ConfigFromLivepers(cfg.S3))
		return NewBackend(client, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix), nil
	})
}

// Documents above this size are uploaded in parts.
const largeObjectMinSize = 10 * 1024 * 1024

// API is the subset of the S3 client used by the back-end.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Backend is the S3 back-end.
type Backend struct {
	client     API
	uploader   *manager.Uploader
	bucketName string
	region     string
	prefix     string
}

// NewBackend returns a Backend storing documents in bucketName. Multipart upload of large
// documents is used when client supports it (an *s3.Client does).
func NewBackend(client API, bucketName, region, prefix string) *Backend {
	b := &Backend{
		client:     client,
		bucketName: bucketName,
		region:     region,
		prefix:     prefix,
	}
	if uc, ok := client.(manager.UploadAPIClient); ok {
		b.uploader = manager.NewUploader(uc, func(u *manager.Uploader) {
			u.PartSize = largeObjectMinSize
		})
	}
	return b
}

// Key returns the object key of id.
func (b *Backend) Key(id livepers.ID) string {
	return b.prefix + string(id)
}

// Init creates the bucket if it does not exist.
func (b *Backend) Init(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucketName)})
	if err == nil {
		return nil
	}
	var nf *types.NotFound
	var nsb *types.NoSuchBucket
	if !errors.As(err, &nf) && !errors.As(err, &nsb) {
		return fmt.Errorf("couldn't access bucket %s, details: %w", b.bucketName, err)
	}
	in := &s3.CreateBucketInput{Bucket: aws.String(b.bucketName)}
	// us-east-1 is the default location and must not be named.
	if b.region != "" && b.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, in); err != nil {
		return fmt.Errorf("couldn't create bucket %s in Region %s, details: %w", b.bucketName, b.region, err)
	}
	log.Info("created bucket", "bucket", b.bucketName, "region", b.region)
	return nil
}

func (b *Backend) Read(ctx context.Context, id livepers.ID) (livepers.Data, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(b.Key(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("read %s: %w", id, livepers.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	defer result.Body.Close()
	body, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	d, err := livepers.DecodeData(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return d, nil
}

func (b *Backend) Write(ctx context.Context, data livepers.Data) error {
	id := data.ID()
	if id.IsNil() {
		return fmt.Errorf("write: document has no id")
	}
	ba, err := livepers.EncodeData(data)
	if err != nil {
		return err
	}
	in := &s3.PutObjectInput{
		Bucket:      aws.String(b.bucketName),
		Key:         aws.String(b.Key(id)),
		Body:        bytes.NewReader(ba),
		ContentType: aws.String("application/json"),
	}
	if isLargeObject(ba) && b.uploader != nil {
		_, err = b.uploader.Upload(ctx, in)
	} else {
		_, err = b.client.PutObject(ctx, in)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}
	return nil
}

// Delete removes the object of id. S3 does not report missing keys on delete.
func (b *Backend) Delete(ctx context.Context, id livepers.ID) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(b.Key(id)),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func isLargeObject(data []byte) bool {
	return len(data) > largeObjectMinSize
}
