package datastore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dshills/vizier/pkg/dataset"
	"github.com/dshills/vizier/pkg/domain/types"
	verrors "github.com/dshills/vizier/pkg/errors"
)

const snapshotContentType = "application/x-vizier-dataset"

// S3Store keeps snapshots as objects in a single S3-compatible bucket
// (AWS S3 or MinIO). Object keys are {prefix}{dataset id}.vzds.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config holds explicit construction parameters.
type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Endpoint        string `yaml:"endpoint"` // optional; enables a custom endpoint (e.g. MinIO)
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	PathStyle       bool   `yaml:"path_style"`
}

// NewS3Store creates an S3 dataset store. Credentials fall back to the
// default AWS chain unless an access key pair is configured.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// CreateDataset uploads a new snapshot under a fresh identifier.
func (s *S3Store) CreateDataset(ctx context.Context, columns []dataset.Column, rows []dataset.Row, opts ...dataset.Option) (*dataset.Dataset, error) {
	d, err := dataset.New(types.NewDatasetID(), columns, rows, opts...)
	if err != nil {
		return nil, err
	}

	data, err := Encode(d)
	if err != nil {
		return nil, err
	}

	key := s.key(d.ID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String(snapshotContentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload dataset %s: %w", d.ID, err)
	}
	return d, nil
}

// GetDataset downloads a snapshot by identifier.
func (s *S3Store) GetDataset(ctx context.Context, id types.DatasetID) (*dataset.Dataset, error) {
	key := s.key(id)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("dataset %s: %w", id, verrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download dataset %s: %w", id, err)
	}
	defer func() {
		_ = out.Body.Close()
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", id, err)
	}
	d, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", id, err)
	}
	return d, nil
}

// DeleteDataset removes a snapshot object. S3 deletes are idempotent, so the
// object is probed first to report whether it existed.
func (s *S3Store) DeleteDataset(ctx context.Context, id types.DatasetID) (bool, error) {
	key := s.key(id)
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to probe dataset %s: %w", id, err)
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return false, fmt.Errorf("failed to delete dataset %s: %w", id, err)
	}
	return true, nil
}

func (s *S3Store) key(id types.DatasetID) string {
	return s.prefix + string(id) + snapshotExt
}

func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}
