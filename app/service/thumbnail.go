package service

import (
	"context"
	"fmt"
	"path/filepath"

	"stream-porter/app/logger"
	"stream-porter/app/model"
	"stream-porter/app/utils/downloader"
	"stream-porter/app/utils/mxplayer"

	"github.com/disintegration/imaging"
)

// Telegram 对视频缩略图的尺寸上限
const thumbnailMaxSide = 320

// FileURLResolver 把 Telegram file_id 解析为直接下载地址
type FileURLResolver interface {
	FileURL(fileID string) (string, error)
}

// ThumbnailService 为上传准备缩略图。
// 优先级为用户自定义缩略图、页面封面图，都不可用时不带缩略图。
type ThumbnailService struct {
	resolver FileURLResolver
	logger   *logger.Logger
}

// NewThumbnailService 创建缩略图服务
func NewThumbnailService(resolver FileURLResolver, log *logger.Logger) *ThumbnailService {
	return &ThumbnailService{
		resolver: resolver,
		logger:   log,
	}
}

// Prepare 生成任务的缩略图文件，返回路径。
// 失败不阻断上传，返回空路径。
func (s *ThumbnailService) Prepare(ctx context.Context, task *model.Task, dir string) string {
	rawPath := filepath.Join(dir, "thumb_raw")

	if task.Request.ThumbFileID != "" && s.resolver != nil {
		if url, err := s.resolver.FileURL(task.Request.ThumbFileID); err == nil {
			if path, err := s.fetchAndNormalize(url, rawPath, dir); err == nil {
				return path
			} else {
				s.logger.Warnf("任务 %s 自定义缩略图处理失败: %v", task.ID, err)
			}
		} else {
			s.logger.Warnf("任务 %s 解析缩略图 file_id 失败: %v", task.ID, err)
		}
	}

	if task.Request.ImageURL != "" {
		if path, err := s.fetchAndNormalize(task.Request.ImageURL, rawPath, dir); err == nil {
			return path
		} else {
			s.logger.Warnf("任务 %s 封面图处理失败: %v", task.ID, err)
		}
	}

	return ""
}

// fetchAndNormalize 下载图片并缩放到 Telegram 允许的尺寸
func (s *ThumbnailService) fetchAndNormalize(url, rawPath, dir string) (string, error) {
	opts := downloader.DefaultOptions()
	opts.Referer = mxplayer.SiteOrigin + "/"
	opts.MaxSize = 10 * 1024 * 1024
	if err := downloader.Fetch(url, rawPath, opts); err != nil {
		return "", err
	}

	img, err := imaging.Open(rawPath)
	if err != nil {
		return "", fmt.Errorf("打开图片失败: %w", err)
	}

	// 等比缩放到长边不超过上限
	if img.Bounds().Dx() > thumbnailMaxSide || img.Bounds().Dy() > thumbnailMaxSide {
		img = imaging.Fit(img, thumbnailMaxSide, thumbnailMaxSide, imaging.Lanczos)
	}

	outPath := filepath.Join(dir, "thumb.jpg")
	if err := imaging.Save(img, outPath, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("保存缩略图失败: %w", err)
	}
	return outPath, nil
}
