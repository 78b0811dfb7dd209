package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/tendant/simple-storage/pkg/simplestorage"
)

const backendName = "s3"

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name, lower-cased before use
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	SkipCreateBucket bool         // Do not create the bucket when it is missing
	Logger           *slog.Logger // Optional; defaults to slog.Default()
}

// Backend is an S3-compatible implementation of the simplestorage.Adapter interface
type Backend struct {
	client *s3.Client
	bucket string
	config Config
	logger *slog.Logger
}

// New validates config, connects to S3 and creates the bucket if it does
// not exist.
func New(ctx context.Context, config Config) (*Backend, error) {
	config, err := validate(config)
	if err != nil {
		return nil, err
	}

	// Set up AWS config
	var awsCfg aws.Config
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		// Use provided credentials
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		// Use default credential chain
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.Region),
		)
	}
	if err != nil {
		return nil, &simplestorage.ConfigError{Backend: backendName, Msg: "failed to load AWS config", Err: err}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoint for S3-compatible services (MinIO, etc.)
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		}
	})

	backend := newBackend(client, config)
	if !config.SkipCreateBucket {
		if err := backend.createBucketIfNotExists(ctx); err != nil {
			return nil, err
		}
	}
	return backend, nil
}

func validate(config Config) (Config, error) {
	config.Bucket = strings.ToLower(strings.TrimSpace(config.Bucket))
	if config.Bucket == "" {
		return config, simplestorage.Misconfigured(backendName, "bucket", "bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.EnableSSE && config.SSEAlgorithm != "AES256" && config.SSEAlgorithm != "aws:kms" {
		return config, simplestorage.Misconfigured(backendName, "sse_algorithm", fmt.Sprintf("unsupported algorithm %q", config.SSEAlgorithm))
	}
	config.Endpoint = strings.TrimSuffix(config.Endpoint, "/")
	return config, nil
}

func newBackend(client *s3.Client, config Config) *Backend {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		client: client,
		bucket: config.Bucket,
		config: config,
		logger: logger,
	}
}

// createBucketIfNotExists creates the bucket if it doesn't exist
func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}

	// Handle multiple error types for MinIO compatibility
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) &&
		simplestorage.KindOf(mapError("connect", b.bucket, err)) != simplestorage.KindNotFound {
		return mapError("connect", b.bucket, err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	// Add location constraint for regions other than us-east-1
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	if _, err := b.client.CreateBucket(ctx, createInput); err != nil {
		// Another client may have created it concurrently
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return mapError("connect", b.bucket, err)
	}
	b.logger.Info("New S3 bucket created", "bucket", b.bucket)
	return nil
}

func (b *Backend) Name() string { return backendName }

func (b *Backend) NormalizeKey(contextPath, key string) string {
	return simplestorage.NormalizeKey(contextPath, key)
}

func (b *Backend) applySSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE {
		return
	}
	switch b.config.SSEAlgorithm {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if b.config.SSEKMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
		}
	}
}

// Put streams content to S3. The content type is sent as the object's
// Content-Type; the remaining attributes become user metadata.
func (b *Backend) Put(ctx context.Context, fullPath string, content io.Reader, attrs simplestorage.Attributes) error {
	contentType, metadata := simplestorage.SplitAttributes(attrs)

	input := &s3.PutObjectInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(fullPath),
		Body:     content,
		Metadata: metadata,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	b.applySSE(input)

	uploader := manager.NewUploader(b.client)
	if _, err := uploader.Upload(ctx, input); err != nil {
		return mapError("put", fullPath, err)
	}
	return nil
}

// Remove deletes the object; a missing object is not an error
func (b *Backend) Remove(ctx context.Context, fullPath string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(fullPath),
	})
	if err != nil {
		mapped := mapError("remove", fullPath, err)
		if simplestorage.IsNotFound(mapped) {
			return nil
		}
		return mapped
	}
	return nil
}

// GetMeta retrieves metadata for an object in S3
func (b *Backend) GetMeta(ctx context.Context, fullPath string) (*simplestorage.ObjectMeta, error) {
	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(fullPath),
	})
	if err != nil {
		return nil, mapError("get_meta", fullPath, err)
	}

	meta := &simplestorage.ObjectMeta{
		Key:         fullPath,
		ContentType: aws.ToString(result.ContentType),
		Size:        -1,
		ETag:        strings.Trim(aws.ToString(result.ETag), "\""),
		Metadata:    make(map[string]string, len(result.Metadata)),
	}
	if result.ContentLength != nil {
		meta.Size = *result.ContentLength
	}
	if result.LastModified != nil {
		meta.UpdatedAt = *result.LastModified
	}
	for k, v := range result.Metadata {
		meta.Metadata[k] = v
	}
	return meta, nil
}

// Open returns the object body stream
func (b *Backend) Open(ctx context.Context, fullPath string) (io.ReadCloser, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(fullPath),
	})
	if err != nil {
		return nil, mapError("open", fullPath, err)
	}
	return result.Body, nil
}

// URL builds the object URL from endpoint, bucket and path. Custom
// endpoints use path-style URLs.
func (b *Backend) URL(fullPath string) string {
	if b.config.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", b.config.Endpoint, b.bucket, fullPath)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.config.Region, fullPath)
}

// mapError classifies S3 failures by HTTP status, falling back to typed
// errors and API error codes.
func mapError(op, fullPath string, err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return simplestorage.NotFound(backendName, op, fullPath, err)
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.Response != nil {
		return simplestorage.Translate(backendName, op, fullPath, respErr.HTTPStatusCode(), err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return simplestorage.NotFound(backendName, op, fullPath, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return simplestorage.AccessDenied(backendName, op, fullPath, err)
		}
	}
	return simplestorage.Unexpected(backendName, op, fullPath, err)
}
