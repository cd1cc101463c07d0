package statedoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/bmatcuk/doublestar/v4"
)

// S3Config configures the S3-backed state store.
//
// Authentication follows the AWS SDK v2 default chain unless explicit
// credentials are provided. For S3-compatible stores (MinIO, Wasabi), set
// Endpoint and typically ForcePathStyle.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Prefix is the root key prefix for state documents. Defaults to "state".
	Prefix string

	// Region is the AWS region. Optional; resolved from environment or
	// instance metadata when empty.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	Endpoint string

	// Profile is the AWS profile name to use from shared config.
	Profile string

	// AccessKeyID is an explicit access key. If set, SecretAccessKey must also be set.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key. Required if AccessKeyID is set.
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs (bucket in path, not subdomain).
	ForcePathStyle bool

	// DiscoverRegion enables EC2 instance metadata region discovery when no
	// region is configured or resolvable from the environment.
	DiscoverRegion bool
}

// Validate checks that required configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3 state store: bucket name is required")
	}
	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return errors.New("s3 state store: both access key ID and secret access key must be provided together")
	}
	return nil
}

const defaultS3Prefix = "state"

// aliasKeyPrefix is where alias pointer objects live, outside the physical
// index namespace.
const aliasKeyPrefix = "_aliases"

// S3Store implements Backend on an S3 (or S3-compatible) bucket.
//
// Layout:
//   - <prefix>/<index>/<doc_id>.json   document bodies
//   - <prefix>/_aliases/<alias>        pointer objects naming a physical index
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ Backend = (*S3Store)(nil)
var _ Backend = (*SQLiteStore)(nil)

// NewS3Store creates an S3-backed state store.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("s3 state store: load aws config: %w", err)
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = defaultS3Prefix
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: prefix,
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg S3Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	if awsCfg.Region == "" && cfg.DiscoverRegion {
		if region, err := discoverIMDSRegion(ctx, awsCfg); err == nil && region != "" {
			awsCfg.Region = region
		}
	}

	return awsCfg, nil
}

// discoverIMDSRegion asks the EC2 instance metadata service for the local
// region. Failures are non-fatal; callers fall back to SDK defaults.
func discoverIMDSRegion(ctx context.Context, awsCfg aws.Config) (string, error) {
	out, err := imds.NewFromConfig(awsCfg).GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", err
	}
	return out.Region, nil
}

func (s *S3Store) docKey(index, docID string) string {
	return path.Join(s.prefix, index, docID+".json")
}

func (s *S3Store) aliasKey(alias string) string {
	return path.Join(s.prefix, aliasKeyPrefix, alias)
}

// SearchStateDoc lists the state prefix and matches document keys against a
// <prefix>/*/<doc_id>.json pattern, skipping the alias namespace. The first
// matching key (keys arrive in lexical order) is fetched and returned.
func (s *S3Store) SearchStateDoc(ctx context.Context, docID string) (*Hit, error) {
	pattern := s.prefix + "/*/" + docID + ".json"

	var continuation *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix + "/"),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, s.wrapError("SearchStateDoc", docID, err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasPrefix(key, path.Join(s.prefix, aliasKeyPrefix)+"/") {
				continue
			}
			ok, err := doublestar.Match(pattern, key)
			if err != nil {
				return nil, fmt.Errorf("match state doc key: %w", err)
			}
			if !ok {
				continue
			}

			index := strings.TrimPrefix(path.Dir(key), s.prefix+"/")
			body, err := s.getObject(ctx, key)
			if err != nil {
				return nil, s.wrapError("SearchStateDoc", docID, err)
			}
			return &Hit{Index: index, ID: docID, Body: body}, nil
		}

		if !aws.ToBool(out.IsTruncated) {
			return nil, nil
		}
		continuation = out.NextContinuationToken
	}
}

// IndexStateDoc upserts a document body at the physical index resolved from
// target. S3 puts are full replaces, which matches the upsert contract.
func (s *S3Store) IndexStateDoc(ctx context.Context, target, docID string, body []byte) error {
	index, err := s.resolveTarget(ctx, target)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.docKey(index, docID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return s.wrapError("IndexStateDoc", docID, err)
	}
	return nil
}

func (s *S3Store) resolveTarget(ctx context.Context, target string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("%w: empty target", ErrUnknownLocation)
	}

	body, err := s.getObject(ctx, s.aliasKey(target))
	if err == nil {
		index := strings.TrimSpace(string(body))
		if index == "" {
			return "", fmt.Errorf("%w: alias %s points nowhere", ErrUnknownLocation, target)
		}
		return index, nil
	}
	if !isS3NotFound(err) {
		return "", s.wrapError("resolveTarget", target, err)
	}

	// No pointer object. The default write alias self-initializes; any other
	// target is taken as a physical index name.
	if target != WriteAlias {
		return target, nil
	}
	if err := s.putAlias(ctx, target, defaultPhysicalIndex); err != nil {
		return "", err
	}
	return defaultPhysicalIndex, nil
}

func (s *S3Store) putAlias(ctx context.Context, alias, index string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.aliasKey(alias)),
		Body:        strings.NewReader(index),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return s.wrapError("putAlias", alias, err)
	}
	return nil
}

// RolloverWriteAlias re-points the write alias at a new physical index.
func (s *S3Store) RolloverWriteAlias(ctx context.Context, newIndex string) error {
	if newIndex == "" {
		return fmt.Errorf("%w: empty index", ErrUnknownLocation)
	}
	return s.putAlias(ctx, WriteAlias, newIndex)
}

func (s *S3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func (s *S3Store) wrapError(op, key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ServiceUnavailable", "InternalError", "SlowDown":
			return fmt.Errorf("s3 %s: %s/%s: %w: %v", op, s.bucket, key, ErrBackendUnavailable, err)
		}
	}
	return fmt.Errorf("s3 %s: %s/%s: %w", op, s.bucket, key, err)
}
