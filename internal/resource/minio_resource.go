package resource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"compress-service/pkg/config"
	"compress-service/pkg/logger"
	"compress-service/pkg/manager"
)

const bucketCheckTimeout = 10 * time.Second

var (
	minioResourceOnce      sync.Once
	singletonMinioResource *MinioResource
)

// minioOptions is the validated subset of MinioConfig the resource needs.
type minioOptions struct {
	enabled      bool
	endpoint     string
	accessKey    string
	secretKey    string
	useSSL       bool
	bucket       string
	outputPrefix string
}

// newMinioOptions 校验配置；未启用时不要求任何字段
func newMinioOptions(c config.MinioConfig) (minioOptions, error) {
	if !c.Enabled {
		return minioOptions{}, nil
	}
	opts := minioOptions{
		enabled:      true,
		endpoint:     strings.TrimSpace(c.Endpoint),
		accessKey:    firstNonEmpty(c.AccessKeyID, c.AccessKey),
		secretKey:    firstNonEmpty(c.SecretAccessKey, c.SecretKey),
		useSSL:       c.UseSSL,
		bucket:       strings.TrimSpace(c.BucketName),
		outputPrefix: strings.Trim(c.OutputPrefix, "/"),
	}
	switch {
	case opts.endpoint == "":
		return minioOptions{}, fmt.Errorf("minio endpoint is required")
	case opts.bucket == "":
		return minioOptions{}, fmt.Errorf("minio bucket_name is required")
	}
	return opts, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// MinioResource holds the object store client used for source media and
// compressed artifacts. Disabled resources keep a nil client.
type MinioResource struct {
	opts   minioOptions
	client *minio.Client
}

// DefaultMinioResource 获取MinIO资源单例
func DefaultMinioResource() *MinioResource {
	minioResourceOnce.Do(func() {
		singletonMinioResource = &MinioResource{}
	})
	return singletonMinioResource
}

// MustOpen connects when minio.enabled is set and makes sure the bucket exists.
func (r *MinioResource) MustOpen() {
	if r.client != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MinioResource")
	}
	if err := r.open(cfg.Minio); err != nil {
		panic(err.Error())
	}
}

func (r *MinioResource) open(c config.MinioConfig) error {
	opts, err := newMinioOptions(c)
	if err != nil {
		return err
	}
	r.opts = opts
	if !opts.enabled {
		return nil
	}

	client, err := minio.New(opts.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.accessKey, opts.secretKey, ""),
		Secure: opts.useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), bucketCheckTimeout)
	defer cancel()
	if err := ensureBucket(ctx, client, opts.bucket); err != nil {
		return err
	}
	r.client = client

	logger.Info("MinIO resource initialized", map[string]interface{}{
		"endpoint":      opts.endpoint,
		"bucket_name":   opts.bucket,
		"output_prefix": opts.outputPrefix,
	})
	return nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check minio bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create minio bucket: %w", err)
	}
	return nil
}

// Enabled reports whether the resource holds a live client.
func (r *MinioResource) Enabled() bool { return r.client != nil }

// GetClient returns nil when MinIO is disabled.
func (r *MinioResource) GetClient() *minio.Client { return r.client }

func (r *MinioResource) GetBucketName() string { return r.opts.bucket }

// OutputPrefix 产物对象键的前缀，不含首尾斜杠
func (r *MinioResource) OutputPrefix() string { return r.opts.outputPrefix }

// Close minio-go 客户端无需关闭连接
func (r *MinioResource) Close() {}

// MinioResourcePlugin MinIO资源插件
type MinioResourcePlugin struct{}

func (p *MinioResourcePlugin) Name() string {
	return "minioResource"
}

func (p *MinioResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultMinioResource()
}
