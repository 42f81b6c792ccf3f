package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appcfg "github.com/jorgepascosoto/neo-backup-decrypt/internal/config"
	"github.com/jorgepascosoto/neo-backup-decrypt/internal/errors"
)

// ObjectAPI is the part of the S3 API a backup download needs.
type ObjectAPI interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

type R2Client struct {
	client ObjectAPI
	bucket string
	prefix string
}

type BackupObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

func NewR2Client(ctx context.Context, cfg *appcfg.Config) (*R2Client, error) {
	bucket, prefix, err := cfg.RemoteLocation()
	if err != nil {
		return nil, err
	}

	// Use the standard AWS configuration with custom endpoint
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.R2AccessKeyID,
			cfg.R2SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with R2 endpoint
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID))
		o.UsePathStyle = true
	})

	return NewR2ClientFromAPI(client, bucket, prefix), nil
}

func NewR2ClientFromAPI(api ObjectAPI, bucket, prefix string) *R2Client {
	return &R2Client{
		client: api,
		bucket: bucket,
		prefix: prefix,
	}
}

// ListBackups returns every object under the prefix, sorted by key so that a
// folder's files and its sidecar arrive next to each other.
func (c *R2Client) ListBackups(ctx context.Context) ([]BackupObject, error) {
	var backups []BackupObject

	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.NewStorageError("list", c.bucket, c.prefix, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// folder markers created by some clients
			if strings.HasSuffix(key, "/") {
				continue
			}
			backups = append(backups, BackupObject{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Key < backups[j].Key
	})

	return backups, nil
}

// LocalPath maps an object key to a path under destDir. Keys that would
// escape destDir are rejected.
func (c *R2Client) LocalPath(destDir, key string) (string, error) {
	rel := strings.TrimPrefix(key, c.prefix)
	rel = filepath.FromSlash(rel)
	if rel == "" || !filepath.IsLocal(rel) {
		return "", errors.NewStorageError("download", c.bucket, key,
			fmt.Errorf("%w: key does not map to a local path", errors.ErrDownloadFailed))
	}
	return filepath.Join(destDir, rel), nil
}

// Download fetches one object into destDir, keeping the key layout below the
// prefix, and returns the local path.
func (c *R2Client) Download(ctx context.Context, obj BackupObject, destDir string) (string, error) {
	path, err := c.LocalPath(destDir, obj.Key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}

	// Use the download manager for better retry handling and large file support
	downloader := manager.NewDownloader(c.client)

	_, err = downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(obj.Key),
	})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", errors.NewStorageError("download", c.bucket, obj.Key,
			fmt.Errorf("%w: %v", errors.ErrDownloadFailed, err))
	}

	if !obj.LastModified.IsZero() {
		// best effort, only used for display
		_ = os.Chtimes(path, obj.LastModified, obj.LastModified)
	}

	return path, nil
}

// DownloadAll mirrors the prefix into destDir and returns the number of
// files and bytes fetched.
func (c *R2Client) DownloadAll(ctx context.Context, destDir string) (int, int64, error) {
	objects, err := c.ListBackups(ctx)
	if err != nil {
		return 0, 0, err
	}

	var total int64
	for i, obj := range objects {
		if _, err := c.Download(ctx, obj, destDir); err != nil {
			return i, total, err
		}
		total += obj.Size
	}

	return len(objects), total, nil
}

func (c *R2Client) Bucket() string {
	return c.bucket
}

func (c *R2Client) Prefix() string {
	return c.prefix
}
