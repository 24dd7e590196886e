// Package s3 is a read-only remote driver over an S3 or MinIO bucket.
// Key prefixes play the role of folders.
package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/dabendan2/file-explorer/internal/logging"
	"github.com/dabendan2/file-explorer/internal/metrics"
	"github.com/dabendan2/file-explorer/internal/models"
	"github.com/dabendan2/file-explorer/internal/storage"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string
}

// Backend implements storage.Backend on a bucket.
type Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3 backend. A custom endpoint switches to path-style
// addressing for MinIO.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
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
			o.UsePathStyle = true
		}
	})

	logging.Info("s3 remote backend configured",
		zap.String("bucket", cfg.Bucket),
		zap.String("endpoint", cfg.Endpoint),
		zap.String("prefix", cfg.Prefix))

	return &Backend{
		client: client,
		bucket: cfg.Bucket,
		prefix: cleanPrefix(cfg.Prefix),
	}, nil
}

// Type returns "s3".
func (b *Backend) Type() string { return "s3" }

// List returns the objects and common prefixes directly under dir.
func (b *Backend) List(ctx context.Context, dir string) ([]models.DirEntry, error) {
	start := time.Now()
	entries, err := b.list(ctx, dir)
	metrics.RecordRemoteOperation(b.Type(), "list", time.Since(start), err == nil)
	return entries, err
}

func (b *Backend) list(ctx context.Context, dir string) ([]models.DirEntry, error) {
	dirPrefix := b.key(dir)
	if dirPrefix != "" {
		dirPrefix += "/"
	}

	var entries []models.DirEntry
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(dirPrefix),
		Delimiter: aws.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: list %s: %v", storage.ErrUpstream, dirPrefix, err)
		}
		entries = append(entries, b.pageEntries(dirPrefix, page)...)
	}

	if len(entries) == 0 && dirPrefix != b.rootPrefix() {
		return nil, fmt.Errorf("%q: %w", dir, storage.ErrNotFound)
	}
	return entries, nil
}

// pageEntries adapts one ListObjectsV2 page. Folders come from common
// prefixes; the zero-byte directory marker for dirPrefix itself is skipped.
func (b *Backend) pageEntries(dirPrefix string, page *s3.ListObjectsV2Output) []models.DirEntry {
	entries := make([]models.DirEntry, 0, len(page.CommonPrefixes)+len(page.Contents))
	for _, cp := range page.CommonPrefixes {
		full := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
		name := path.Base(full)
		if name == "" || name == "." || name == "/" {
			continue
		}
		e := models.NewFolderEntry(name, time.Time{})
		e.ID = b.id(full)
		entries = append(entries, e)
	}
	for _, obj := range page.Contents {
		key := aws.ToString(obj.Key)
		if key == dirPrefix || strings.HasSuffix(key, "/") {
			continue
		}
		e := models.NewFileEntry(path.Base(key), aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified))
		e.ID = b.id(key)
		entries = append(entries, e)
	}
	return entries
}

// Open streams an object.
func (b *Backend) Open(ctx context.Context, id string) (*storage.Content, error) {
	key := b.key(id)
	if key == "" || key == strings.TrimSuffix(b.prefix, "/") {
		return nil, fmt.Errorf("object key is required: %w", storage.ErrNotFound)
	}

	start := time.Now()
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		metrics.RecordRemoteOperation(b.Type(), "read", time.Since(start), false)
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%q: %w", id, storage.ErrNotFound)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: get %s: %v", storage.ErrUpstream, key, err)
	}
	metrics.RecordRemoteOperation(b.Type(), "read", time.Since(start), true)

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return &storage.Content{
		Body:    out.Body,
		Name:    path.Base(key),
		Size:    size,
		ModTime: aws.ToTime(out.LastModified),
	}, nil
}

// key maps a client path onto a bucket key under the configured prefix.
func (b *Backend) key(rel string) string {
	rel = strings.Trim(path.Clean("/"+rel), "/")
	switch {
	case rel == "":
		return strings.TrimSuffix(b.prefix, "/")
	case b.prefix == "":
		return rel
	default:
		return b.prefix + rel
	}
}

// id maps a bucket key back to the client-visible path.
func (b *Backend) id(key string) string {
	return strings.TrimPrefix(key, b.prefix)
}

func (b *Backend) rootPrefix() string {
	return b.prefix
}

func cleanPrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}
