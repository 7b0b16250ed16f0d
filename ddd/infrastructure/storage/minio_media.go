package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"

	"compress-service/ddd/domain/gateway"
	"compress-service/ddd/domain/vo"
	"compress-service/internal/resource"
	"compress-service/pkg/logger"
)

// MinioMediaResolver 从MinIO读取待压缩的原始视频
type MinioMediaResolver struct {
	minioResource *resource.MinioResource
}

func NewMinioMediaResolver(minioResource *resource.MinioResource) gateway.MediaResolver {
	return &MinioMediaResolver{minioResource: minioResource}
}

// Open stats the object so that a missing key fails before any work starts.
func (r *MinioMediaResolver) Open(ctx context.Context, ref vo.MediaRef) (gateway.MediaSource, error) {
	client := r.minioResource.GetClient()
	if client == nil {
		return nil, fmt.Errorf("minio is not enabled")
	}
	bucketName := r.minioResource.GetBucketName()

	info, err := client.StatObject(ctx, bucketName, ref.Key, minio.StatObjectOptions{})
	if err != nil {
		logger.Error("Failed to stat source object", map[string]interface{}{
			"object_key": ref.Key,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("stat object failed: %w", err)
	}
	// 以对象存储的实际大小为准
	ref.Size = info.Size
	if ref.FileName == "" {
		ref.FileName = filepath.Base(ref.Key)
	}
	return &minioSource{client: client, bucket: bucketName, ref: ref}, nil
}

type minioSource struct {
	client *minio.Client
	bucket string
	ref    vo.MediaRef
}

func (s *minioSource) Size() int64              { return s.ref.Size }
func (s *minioSource) DurationSeconds() float64 { return s.ref.DurationSeconds }
func (s *minioSource) FileName() string         { return s.ref.FileName }
func (s *minioSource) Ext() string              { return s.ref.Ext() }

// Download 从MinIO下载文件到本地路径
func (s *minioSource) Download(ctx context.Context, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create local directory failed: %w", err)
	}

	object, err := s.client.GetObject(ctx, s.bucket, s.ref.Key, minio.GetObjectOptions{})
	if err != nil {
		logger.Error("Failed to get object from MinIO", map[string]interface{}{
			"object_key": s.ref.Key,
			"error":      err.Error(),
		})
		return fmt.Errorf("get object from minio failed: %w", err)
	}
	defer object.Close()

	localFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create local file failed: %w", err)
	}
	defer localFile.Close()

	n, err := localFile.ReadFrom(object)
	if err != nil {
		logger.Error("Failed to download file from MinIO", map[string]interface{}{
			"object_key": s.ref.Key,
			"local_path": dst,
			"error":      err.Error(),
		})
		return fmt.Errorf("download file from minio failed: %w", err)
	}

	logger.Info("Source downloaded", map[string]interface{}{
		"object_key": s.ref.Key,
		"local_path": dst,
		"size":       n,
	})
	return nil
}
