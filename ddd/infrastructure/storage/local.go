package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"compress-service/ddd/domain/gateway"
	"compress-service/ddd/domain/vo"
	"compress-service/pkg/logger"
)

// LocalMediaResolver serves media from regular files under root.
// Relative keys are joined onto root; absolute keys must already resolve inside it.
type LocalMediaResolver struct {
	root string
}

func NewLocalMediaResolver(root string) gateway.MediaResolver {
	return &LocalMediaResolver{root: root}
}

func (r *LocalMediaResolver) Open(_ context.Context, ref vo.MediaRef) (gateway.MediaSource, error) {
	path, err := r.resolve(ref.Key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat local media failed: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", ref.Key)
	}
	// 以磁盘上的实际大小为准
	ref.Size = info.Size()
	if ref.FileName == "" {
		ref.FileName = filepath.Base(ref.Key)
	}
	return &localSource{ref: ref, path: path}, nil
}

// resolve 返回 key 解析符号链接后的真实路径，越出 root 的一律拒绝
func (r *LocalMediaResolver) resolve(key string) (string, error) {
	if r.root == "" {
		return "", fmt.Errorf("local media root is not configured")
	}
	if key == "" {
		return "", fmt.Errorf("media key is empty")
	}
	root, err := filepath.Abs(r.root)
	if err != nil {
		return "", fmt.Errorf("resolve media root failed: %w", err)
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return "", fmt.Errorf("resolve media root failed: %w", err)
	}

	path := key
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("stat local media failed: %w", err)
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		logger.Warn("Rejected media outside root", map[string]interface{}{
			"object_key": key,
			"root":       root,
		})
		return "", fmt.Errorf("%s is outside the media root", key)
	}
	return resolved, nil
}

type localSource struct {
	ref  vo.MediaRef
	path string
}

func (s *localSource) Size() int64              { return s.ref.Size }
func (s *localSource) DurationSeconds() float64 { return s.ref.DurationSeconds }
func (s *localSource) FileName() string         { return s.ref.FileName }
func (s *localSource) Ext() string              { return s.ref.Ext() }

func (s *localSource) Download(ctx context.Context, dst string) error {
	return copyFile(ctx, s.path, dst)
}

// LocalDirSink 把产物复制到本地目录 <root>/<user>/<job>/
type LocalDirSink struct {
	root string
}

func NewLocalDirSink(root string) gateway.ArtifactSink {
	return &LocalDirSink{root: root}
}

func (s *LocalDirSink) Deliver(ctx context.Context, a gateway.Artifact) (string, error) {
	dir := filepath.Join(s.root, filepath.FromSlash(artifactDir("", a.UserID, a.JobID)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory failed: %w", err)
	}

	videoPath := filepath.Join(dir, filepath.Base(a.VideoPath))
	if err := copyFile(ctx, a.VideoPath, videoPath); err != nil {
		return "", err
	}
	if a.ThumbnailPath != "" {
		if err := copyFile(ctx, a.ThumbnailPath, filepath.Join(dir, filepath.Base(a.ThumbnailPath))); err != nil {
			return "", err
		}
	}
	if a.Caption != "" {
		if err := os.WriteFile(filepath.Join(dir, "caption.txt"), []byte(a.Caption), 0o644); err != nil {
			return "", fmt.Errorf("write caption failed: %w", err)
		}
	}

	logger.Info("Artifact stored locally", map[string]interface{}{
		"path": videoPath,
	})
	return videoPath, nil
}

func copyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s failed: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s failed: %w", dst, err)
	}
	if _, err := io.Copy(out, &ctxReader{ctx: ctx, r: in}); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s failed: %w", dst, err)
	}
	return out.Close()
}

// ctxReader 每次 Read 前检查 ctx，取消后大文件复制也能及时中止
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
