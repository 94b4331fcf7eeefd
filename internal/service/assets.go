package service

import (
	"context"
	"errors"
	"time"

	"friend-chat/internal/apperr"
	"friend-chat/pkg/asset"

	"go.uber.org/zap"
)

const defaultAssetTimeout = 10 * time.Second

// uploadImage 在限定时间内上传图片并翻译错误
func uploadImage(ctx context.Context, store asset.Store, timeout time.Duration, data string) (string, error) {
	if timeout <= 0 {
		timeout = defaultAssetTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url, err := store.Upload(ctx, data)
	if err != nil {
		if errors.Is(err, asset.ErrInvalidData) || errors.Is(err, asset.ErrTooLarge) {
			return "", apperr.ErrInvalidImage.Wrap(err)
		}
		return "", apperr.ErrAssetUploadFailed.Wrap(err)
	}
	return url, nil
}

// destroyImage 尽力删除图片，失败只记录日志
func destroyImage(ctx context.Context, store asset.Store, timeout time.Duration, url string, log *zap.Logger) {
	if url == "" {
		return
	}
	if timeout <= 0 {
		timeout = defaultAssetTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := store.Destroy(ctx, url); err != nil {
		log.Warn("删除图片资源失败", zap.String("url", url), zap.Error(err))
	}
}
