package bufferstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dunamismax/pixelgate/internal/apierr"
)

type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	UseSSL   bool
}

type Client struct {
	minio  *minio.Client
	bucket string
}

func NewClient(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	return &Client{
		minio:  mc,
		bucket: cfg.Bucket,
	}, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := c.minio.BucketExists(ctx, c.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}

	return nil
}

func (c *Client) Get(ctx context.Context, uri string) (Object, error) {
	obj, err := c.minio.GetObject(ctx, c.bucket, uri, minio.GetObjectOptions{})
	if err != nil {
		return Object{}, fmt.Errorf("get object %s: %w", uri, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return Object{}, remapMissing(uri, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return Object{}, remapMissing(uri, err)
	}

	return Object{Bytes: data, ContentType: info.ContentType}, nil
}

func (c *Client) Put(ctx context.Context, uri string, obj Object) error {
	reader := bytes.NewReader(obj.Bytes)
	_, err := c.minio.PutObject(
		ctx,
		c.bucket,
		uri,
		reader,
		int64(len(obj.Bytes)),
		minio.PutObjectOptions{ContentType: obj.ContentType},
	)
	if err != nil {
		return fmt.Errorf("put object %s: %w", uri, err)
	}
	return nil
}

// remapMissing turns the storage layer's "no such object" signal into the
// client-facing NotFound kind. Every other failure stays internal.
func remapMissing(uri string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" {
		return apierr.NotFound("object not found: %s", uri)
	}
	return fmt.Errorf("read object %s: %w", uri, err)
}
