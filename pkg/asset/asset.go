package asset

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"friend-chat/config"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

var (
	// ErrInvalidData 上传内容不是合法的 base64 图片
	ErrInvalidData = errors.New("asset: invalid image data")
	// ErrTooLarge 上传内容超过大小限制
	ErrTooLarge = errors.New("asset: image too large")
)

// 仅接受位图格式，SVG 等可携带脚本的类型会以本站源被浏览器执行
var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// Store 外部图片资源存储
type Store interface {
	// Upload 上传图片（data URI 或裸 base64），返回可访问的URL
	Upload(ctx context.Context, data string) (string, error)
	// Destroy 删除之前由 Upload 返回的URL对应的资源
	Destroy(ctx context.Context, url string) error
}

// LocalStore 本地磁盘资源存储
// 文件名为内容的 BLAKE3 摘要加随机后缀，每次上传独占一个文件，删除互不影响
type LocalStore struct {
	dir      string
	baseURL  string
	maxBytes int
}

// NewLocalStore 创建本地资源存储并确保目录存在
func NewLocalStore(cfg config.AssetConfig) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建资源目录失败: %w", err)
	}
	return &LocalStore{
		dir:      cfg.Dir,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes: cfg.MaxBytes,
	}, nil
}

// Dir 资源所在目录
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Upload(ctx context.Context, data string) (string, error) {
	raw, err := decode(data)
	if err != nil {
		return "", err
	}
	if s.maxBytes > 0 && len(raw) > s.maxBytes {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(raw)
	if !allowedTypes[mt.String()] {
		return "", fmt.Errorf("%w: detected %s", ErrInvalidData, mt.String())
	}

	sum := blake3.Sum256(raw)
	name := hex.EncodeToString(sum[:]) + "-" + uuid.NewString() + mt.Extension()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.write(name, raw); err != nil {
		return "", err
	}
	return s.baseURL + "/" + name, nil
}

func (s *LocalStore) Destroy(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// 其他来源的URL不归本存储管理
	if !strings.HasPrefix(url, s.baseURL+"/") {
		return nil
	}
	name := path.Base(url)
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("删除资源失败: %w", err)
	}
	return nil
}

// write 先写临时文件再重命名，读者不会看到半写文件
func (s *LocalStore) write(name string, raw []byte) error {
	target := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("写入资源失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入资源失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("保存资源失败: %w", err)
	}
	return nil
}

// decode 解析 data:<mime>;base64,<payload> 或裸 base64
func decode(data string) ([]byte, error) {
	payload := strings.TrimSpace(data)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 || !strings.HasSuffix(payload[:idx], ";base64") {
			return nil, ErrInvalidData
		}
		payload = payload[idx+1:]
	}
	if payload == "" {
		return nil, ErrInvalidData
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return raw, nil
}
