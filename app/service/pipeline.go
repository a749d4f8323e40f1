package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"stream-porter/app/config"
	"stream-porter/app/logger"
	"stream-porter/app/model"
	"stream-porter/app/utils/engine"
	"stream-porter/app/utils/mediainfo"
	"stream-porter/app/utils/mxplayer"
	"stream-porter/app/utils/pathhelper"
)

// UploadKind 上传结果类型
type UploadKind string

const (
	UploadKindChat UploadKind = "chat" // 文件已发到聊天
	UploadKindLink UploadKind = "link" // 文件在外部存储，附下载链接
)

// UploadResult 上传结果。Kind 决定终态消息的处理方式：
// 发到聊天后进度消息直接删除，外链则把进度消息改写为链接。
type UploadResult struct {
	Kind UploadKind
	Link string
}

// DownloadEngine 下载引擎抽象
type DownloadEngine interface {
	Run(ctx context.Context, req engine.Request, onProgress func(percent float64)) (string, error)
}

// Uploader 上传器抽象，按文件大小和用户设置选择目的地
type Uploader interface {
	Upload(ctx context.Context, task *model.Task, filePath, thumbPath string, info *mediainfo.Info, onProgress func(current, total int64)) (*UploadResult, error)
}

// Thumbnailer 缩略图准备器抽象
type Thumbnailer interface {
	Prepare(ctx context.Context, task *model.Task, dir string) string
}

// Prober 媒体信息探测器抽象
type Prober func(ctx context.Context, path string) (*mediainfo.Info, error)

// Notifier 任务进度与结果通知抽象，由机器人层实现。
// 通知失败不得影响任务本身。
type Notifier interface {
	TaskStarted(task *model.Task)
	DownloadProgress(task *model.Task, percent float64)
	UploadProgress(task *model.Task, current, total int64)
	TaskCompleted(task *model.Task)
	TaskLink(task *model.Task, link string)
	TaskFailed(task *model.Task, reason string)
}

// Pipeline 单个任务的下载上传流水线
type Pipeline struct {
	cfg         *config.Config
	queue       *DownloadQueue
	engine      DownloadEngine
	uploader    Uploader
	thumbnailer Thumbnailer
	prober      Prober
	notifier    Notifier
	logger      *logger.Logger
}

// NewPipeline 创建流水线
func NewPipeline(cfg *config.Config, queue *DownloadQueue, eng DownloadEngine, uploader Uploader, thumbnailer Thumbnailer, prober Prober, notifier Notifier, log *logger.Logger) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		queue:       queue,
		engine:      eng,
		uploader:    uploader,
		thumbnailer: thumbnailer,
		prober:      prober,
		notifier:    notifier,
		logger:      log,
	}
}

// Run 执行一个已准入的任务直到终态。
// 任务工作目录在函数返回前一定会被清理，无论成败。
func (p *Pipeline) Run(ctx context.Context, task *model.Task) error {
	taskDir := filepath.Join(p.cfg.Download.Dir, task.ID)
	defer func() {
		if err := os.RemoveAll(taskDir); err != nil {
			p.logger.Warnf("清理任务目录失败 %s: %v", taskDir, err)
		}
	}()

	p.notifier.TaskStarted(task)

	if err := p.run(ctx, task, taskDir); err != nil {
		p.queue.Finish(task.ID, model.TaskStatusFailed, err.Error())
		p.notifier.TaskFailed(task, err.Error())
		return err
	}
	return nil
}

// run 流水线主体，任何一步出错即失败。
// 返回的错误会原样展示给用户，错误文案一律用英文。
func (p *Pipeline) run(ctx context.Context, task *model.Task, taskDir string) error {
	req := task.Request

	// 读取用户 cookies，授权内容没有 cookies 无法下载
	var cookieHeader string
	if req.CookiesPath != "" {
		header, err := engine.LoadCookieHeader(req.CookiesPath)
		if err != nil {
			p.logger.Warnf("任务 %s 读取 cookies 失败: %v", task.ID, err)
		} else {
			cookieHeader = header
		}
	}

	saveName := pathhelper.BuildSaveName(req.Title, req.EpisodeTitle, req.Season, req.Episode, req.IsMovie, req.AudioCount)

	// 下载阶段
	outputPath, err := p.engine.Run(ctx, engine.Request{
		ManifestURL:  req.ManifestURL,
		SaveDir:      taskDir,
		SaveName:     saveName,
		OutputFormat: req.OutputFormat,
		Resolution:   req.Resolution,
		CookieHeader: cookieHeader,
		Origin:       mxplayer.SiteOrigin,
		Referer:      mxplayer.SiteOrigin + "/",
	}, func(percent float64) {
		p.notifier.DownloadProgress(task, percent)
	})
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	// 媒体信息尽力而为，失败时退回页面元数据
	info, err := p.probe(ctx, outputPath)
	if err != nil {
		p.logger.Warnf("任务 %s 探测媒体信息失败: %v", task.ID, err)
		info = &mediainfo.Info{DurationSeconds: req.Duration}
	}

	thumbPath := p.thumbnailer.Prepare(ctx, task, taskDir)

	// 上传阶段
	p.queue.MarkUploading(task.ID)
	result, err := p.uploader.Upload(ctx, task, outputPath, thumbPath, info, func(current, total int64) {
		p.notifier.UploadProgress(task, current, total)
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	p.queue.Finish(task.ID, model.TaskStatusCompleted, "")
	switch result.Kind {
	case UploadKindLink:
		p.notifier.TaskLink(task, result.Link)
	default:
		p.notifier.TaskCompleted(task)
	}

	p.logger.Infof("任务完成: %s 产物=%s", task.ID, filepath.Base(outputPath))
	return nil
}

// probe 执行媒体探测，未注入探测器时返回空信息
func (p *Pipeline) probe(ctx context.Context, path string) (*mediainfo.Info, error) {
	if p.prober == nil {
		return &mediainfo.Info{}, nil
	}
	return p.prober(ctx, path)
}
