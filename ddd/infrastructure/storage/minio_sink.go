package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"compress-service/ddd/domain/gateway"
	"compress-service/internal/resource"
	"compress-service/pkg/logger"
)

// MinioArtifactSink 上传压缩结果：视频、缩略图和说明文本
type MinioArtifactSink struct {
	minioResource *resource.MinioResource
}

func NewMinioArtifactSink(minioResource *resource.MinioResource) gateway.ArtifactSink {
	return &MinioArtifactSink{minioResource: minioResource}
}

// Deliver returns the video object key.
func (s *MinioArtifactSink) Deliver(ctx context.Context, a gateway.Artifact) (string, error) {
	if !s.minioResource.Enabled() {
		return "", fmt.Errorf("minio is not enabled")
	}
	dir := artifactDir(s.minioResource.OutputPrefix(), a.UserID, a.JobID)

	videoKey := path.Join(dir, filepath.Base(a.VideoPath))
	if err := s.putFile(ctx, a.VideoPath, videoKey); err != nil {
		return "", err
	}
	if a.ThumbnailPath != "" {
		if err := s.putFile(ctx, a.ThumbnailPath, path.Join(dir, filepath.Base(a.ThumbnailPath))); err != nil {
			return "", err
		}
	}
	if a.Caption != "" {
		if err := s.putText(ctx, a.Caption, path.Join(dir, "caption.txt")); err != nil {
			return "", err
		}
	}
	return videoKey, nil
}

func (s *MinioArtifactSink) putFile(ctx context.Context, localPath, objectKey string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file failed: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return fmt.Errorf("get file info failed: %w", err)
	}

	_, err = s.minioResource.GetClient().PutObject(ctx, s.minioResource.GetBucketName(), objectKey, file, fileInfo.Size(), minio.PutObjectOptions{
		ContentType: getContentTypeFromExtension(objectKey),
	})
	if err != nil {
		logger.Error("Failed to upload artifact to MinIO", map[string]interface{}{
			"local_path": localPath,
			"object_key": objectKey,
			"error":      err.Error(),
		})
		return fmt.Errorf("upload artifact to minio failed: %w", err)
	}

	logger.Info("Artifact uploaded", map[string]interface{}{
		"object_key": objectKey,
		"size":       fileInfo.Size(),
	})
	return nil
}

func (s *MinioArtifactSink) putText(ctx context.Context, text, objectKey string) error {
	_, err := s.minioResource.GetClient().PutObject(ctx, s.minioResource.GetBucketName(), objectKey,
		strings.NewReader(text), int64(len(text)), minio.PutObjectOptions{
			ContentType: getContentTypeFromExtension(objectKey),
		})
	if err != nil {
		return fmt.Errorf("upload caption failed: %w", err)
	}
	return nil
}
