// Package remote uploads crash logs to an S3 compatible bucket.
package remote

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"mclaunch/internal/crypto"
)

type ObjectInfo struct {
	Size   int64
	Blake3 string
}

// Matches reports whether the stored object has the given size and digest.
func (o *ObjectInfo) Matches(size int64, blake3 string) bool {
	return o.Size == size && o.Blake3 != "" && o.Blake3 == blake3
}

type S3 struct {
	client         *s3.Client
	uploader       *manager.Uploader
	bucket         string
	prefix         string
	host           string
	customEndpoint bool
}

func NewS3(ctx context.Context, bucket, region, prefix, endpoint string, maxRetryAttempts int) (*S3, error) {
	var configOpts []func(*awsconfig.LoadOptions) error
	configOpts = append(configOpts, awsconfig.WithRegion(region))

	if maxRetryAttempts > 0 {
		configOpts = append(configOpts,
			awsconfig.WithRetryMaxAttempts(maxRetryAttempts),
			awsconfig.WithRetryMode(aws.RetryModeStandard),
		)
		slog.Debug("Configured S3 retry strategy", "mode", "standard", "maxAttempts", maxRetryAttempts)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if endpoint != "" {
		if accessKey := os.Getenv("AWS_ACCESS_KEY_ID"); accessKey != "" {
			if secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY"); secretKey != "" {
				cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
			}
		}
	}

	var client *s3.Client
	if endpoint != "" {
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
		slog.Debug("S3 client initialized with custom endpoint", "endpoint", endpoint)
	} else {
		client = s3.NewFromConfig(cfg)
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}

	return &S3{
		client:         client,
		uploader:       uploader,
		bucket:         bucket,
		prefix:         prefix,
		host:           host,
		customEndpoint: endpoint != "",
	}, nil
}

// CrashKey is the object key of a crash log: <prefix>/<host>/<file name>.
func CrashKey(prefix, host, localPath string) string {
	return path.Join(prefix, host, filepath.Base(localPath))
}

// UploadCrashLog stores the crash log at localPath unless an object with
// the same digest already exists under its key.
func (s *S3) UploadCrashLog(ctx context.Context, localPath string) error {
	sum, err := crypto.BLAKE3File(localPath)
	if err != nil {
		return fmt.Errorf("failed to hash crash log: %w", err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	st, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	key := CrashKey(s.prefix, s.host, localPath)
	if info, err := s.Head(ctx, key); err == nil && info.Matches(st.Size(), sum) {
		slog.Info("Crash log already uploaded", "bucket", s.bucket, "key", key)
		return nil
	}

	input := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         file,
		ContentType:  aws.String("text/plain; charset=utf-8"),
		StorageClass: types.StorageClassStandard,
		Metadata:     map[string]string{"blake3": sum},
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	slog.Info("Uploaded crash log to S3", "bucket", s.bucket, "key", key)
	return nil
}

func (s *S3) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	output, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to head object %s: %w", key, err)
	}

	info := &ObjectInfo{}
	if output.ContentLength != nil {
		info.Size = *output.ContentLength
	}
	if output.Metadata != nil {
		info.Blake3 = output.Metadata["blake3"]
	}
	return info, nil
}

func (s *S3) VerifyCredentials(ctx context.Context) error {
	slog.Info("Verifying AWS credentials and bucket access", "bucket", s.bucket, "customEndpoint", s.customEndpoint)

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		if s.customEndpoint {
			return fmt.Errorf("failed to verify bucket access on custom endpoint (path-style): %w", err)
		}
		return fmt.Errorf("failed to verify AWS credentials or bucket access: %w", err)
	}

	slog.Info("AWS credentials verified successfully", "bucket", s.bucket)
	return nil
}
