package bot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"stream-porter/app/logger"
	"stream-porter/app/model"
	"stream-porter/app/service"
	"stream-porter/app/utils/format"
	"stream-porter/app/utils/gofile"
	"stream-porter/app/utils/mediainfo"
	"stream-porter/app/utils/pathhelper"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// 单个文件发送在限流下的最大尝试次数
const uploadSendAttempts = 3

// Uploader 把下载产物送到用户手里。
// 超出 Telegram 大小上限的文件转投 Gofile 并返回外链。
type Uploader struct {
	api       *tgbotapi.BotAPI
	gofile    *gofile.Client
	sizeLimit int64
	logger    *logger.Logger
	sleep     func(time.Duration)
}

// NewUploader 创建上传器
func NewUploader(api *tgbotapi.BotAPI, gofileClient *gofile.Client, sizeLimit int64, log *logger.Logger) *Uploader {
	return &Uploader{
		api:       api,
		gofile:    gofileClient,
		sizeLimit: sizeLimit,
		logger:    log,
		sleep:     time.Sleep,
	}
}

// progressReader 包装文件读取，把已读字节数回调给进度报告
type progressReader struct {
	io.Reader
	total      int64
	read       int64
	onProgress func(current, total int64)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.read += int64(n)
	if r.onProgress != nil {
		r.onProgress(r.read, r.total)
	}
	return n, err
}

// Upload 按文件大小和用户设置上传文件
func (u *Uploader) Upload(ctx context.Context, task *model.Task, filePath, thumbPath string, info *mediainfo.Info, onProgress func(current, total int64)) (*service.UploadResult, error) {
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat output file: %w", err)
	}
	size := stat.Size()

	if size > u.sizeLimit {
		u.logger.Infof("任务 %s 产物 %s 超出 Telegram 上限，转投 Gofile", task.ID, format.Size(size))
		link, err := u.gofile.Upload(ctx, filePath, task.Request.GofileToken)
		if err != nil {
			return nil, err
		}
		return &service.UploadResult{Kind: service.UploadKindLink, Link: link}, nil
	}

	caption := buildCaption(task, info, size)
	err = u.sendWithFloodWait(func() error {
		file, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("open output file: %w", err)
		}
		defer file.Close()

		reader := tgbotapi.FileReader{
			Name: filepath.Base(filePath),
			Reader: &progressReader{
				Reader:     file,
				total:      size,
				onProgress: onProgress,
			},
		}

		var chattable tgbotapi.Chattable
		if task.Request.UploadMode == model.UploadModeDocument {
			doc := tgbotapi.NewDocument(task.ChatID, reader)
			doc.Caption = caption
			doc.ParseMode = tgbotapi.ModeHTML
			if thumbPath != "" {
				doc.Thumb = tgbotapi.FilePath(thumbPath)
			}
			chattable = doc
		} else {
			video := tgbotapi.NewVideo(task.ChatID, reader)
			video.Caption = caption
			video.ParseMode = tgbotapi.ModeHTML
			video.SupportsStreaming = true
			video.Duration = info.DurationSeconds
			if thumbPath != "" {
				video.Thumb = tgbotapi.FilePath(thumbPath)
			}
			chattable = video
		}

		_, err = u.api.Send(chattable)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("send file: %w", err)
	}
	return &service.UploadResult{Kind: service.UploadKindChat}, nil
}

// sendWithFloodWait 执行发送，被 Telegram 限流时按服务端给出的秒数
// 等待后重试，总共尝试 3 次。其他错误不重试。
func (u *Uploader) sendWithFloodWait(send func() error) error {
	var err error
	for attempt := 1; attempt <= uploadSendAttempts; attempt++ {
		err = send()
		if err == nil {
			return nil
		}
		tgErr, ok := err.(*tgbotapi.Error)
		if !ok || tgErr.RetryAfter <= 0 || attempt == uploadSendAttempts {
			return err
		}
		u.logger.Warnf("上传被限流，%d 秒后第 %d 次重试", tgErr.RetryAfter, attempt+1)
		u.sleep(time.Duration(tgErr.RetryAfter) * time.Second)
	}
	return err
}

// buildCaption 生成发送文件时的说明文字
func buildCaption(task *model.Task, info *mediainfo.Info, size int64) string {
	req := task.Request
	caption := fmt.Sprintf("<b>%s</b>", req.Title)
	if !req.IsMovie {
		caption += "\n" + pathhelper.EpisodeTag(req.Season, req.Episode)
		if req.EpisodeTitle != "" {
			caption += " " + req.EpisodeTitle
		}
	}

	var details []string
	if info.Height > 0 {
		details = append(details, fmt.Sprintf("%dp", info.Height))
	}
	if info.DurationSeconds > 0 {
		details = append(details, format.Clock(info.DurationSeconds))
	}
	details = append(details, format.Size(size))
	caption += "\n"
	for i, d := range details {
		if i > 0 {
			caption += " | "
		}
		caption += d
	}
	return caption
}
