package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/go-resty/resty/v2"
)

var (
	// ErrNotFound is returned when a location does not hold an object.
	ErrNotFound = errors.New("artifact not found")
	// ErrForbidden is returned when the store refuses access. Object stores
	// answer this way for missing keys when the caller cannot list the bucket.
	ErrForbidden = errors.New("artifact access denied")
)

type ObjectDownloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error)
}

// Fetcher reads model artifacts from local paths, http(s) URLs and s3:// URIs.
type Fetcher struct {
	http *resty.Client
	s3   ObjectDownloader
}

type S3Config struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
}

func NewFetcher(client *resty.Client, s3 ObjectDownloader) *Fetcher {
	if client == nil {
		client = resty.New()
	}
	return &Fetcher{http: client, s3: s3}
}

// NewS3Downloader builds a downloader, pointing at a custom endpoint such as
// MinIO when one is configured.
func NewS3Downloader(ctx context.Context, cfg S3Config) (*manager.Downloader, error) {
	opts := []func(*aws_config.LoadOptions) error{
		aws_config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := aws_config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})
	return manager.NewDownloader(client), nil
}

type unavailableDownloader struct {
	err error
}

// UnavailableDownloader fails every download with err. It stands in when the
// S3 client could not be built so that s3:// loads report why.
func UnavailableDownloader(err error) ObjectDownloader {
	return unavailableDownloader{err: err}
}

func (d unavailableDownloader) Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error) {
	return 0, d.err
}

func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// bare paths, including windows drive letters
		return readFile(location)
	}

	switch u.Scheme {
	case "file":
		return readFile(u.Path)
	case "http", "https":
		return f.fetchHTTP(ctx, location)
	case "s3":
		return f.fetchS3(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	default:
		return nil, fmt.Errorf("unsupported artifact location scheme %q", u.Scheme)
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, location string) ([]byte, error) {
	res, err := f.http.R().SetContext(ctx).Get(location)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", location, err)
	}
	switch res.StatusCode() {
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	case http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrForbidden, location)
	}
	if res.IsError() {
		return nil, fmt.Errorf("failed to fetch %s: status %d", location, res.StatusCode())
	}
	return res.Body(), nil
}

func (f *Fetcher) fetchS3(ctx context.Context, bucket, key string) ([]byte, error) {
	if f.s3 == nil {
		return nil, fmt.Errorf("s3 location s3://%s/%s given but no s3 client is configured", bucket, key)
	}
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 location s3://%s/%s", bucket, key)
	}

	buf := manager.NewWriteAtBuffer([]byte{})
	_, err := f.s3.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDenied" {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrForbidden, bucket, key)
		}
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}
	return buf.Bytes(), nil
}

// MetadataLocation is where the optional metadata of an artifact lives.
func MetadataLocation(location string) string {
	return location + ".json"
}
