package model

import (
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

// 状态常量
const (
	TaskStatusPending     TaskStatus = "pending"     // 排队等待中
	TaskStatusDownloading TaskStatus = "downloading" // 下载中
	TaskStatusUploading   TaskStatus = "uploading"   // 上传中
	TaskStatusCompleted   TaskStatus = "completed"   // 已完成
	TaskStatusFailed      TaskStatus = "failed"      // 失败
	TaskStatusCancelled   TaskStatus = "cancelled"   // 已取消
)

// IsTerminal 检查是否为终态（终态一经写入不再变更）
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// IsActive 检查任务是否正在执行
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusDownloading || s == TaskStatusUploading
}

// DownloadRequest 一次下载的请求参数，入队后不再变更
type DownloadRequest struct {
	Title        string // 视频标题
	EpisodeTitle string // 剧集标题（电影为空）
	Season       int    // 季号，0 表示电影
	Episode      int    // 集号，0 表示电影
	IsMovie      bool
	ManifestURL  string // master m3u8 地址
	ImageURL     string // 封面图地址，可为空
	Duration     int    // 元数据中的时长（秒），可能为 0
	Resolution   string // 选定分辨率，如 "1080"；"best" 表示最高画质
	AudioCount   int    // master 播放列表中的音轨数
	OutputFormat string // mp4 或 mkv
	UploadMode   string // video 或 document
	GofileToken  string // 用户的 Gofile API token，可为空
	ThumbFileID  string // 自定义缩略图的 Telegram file_id，可为空
	CookiesPath  string // 用户 cookies 文件路径
}

// Task 一次用户下载任务。ID 创建后不可变；
// 其余可变字段只允许持有队列锁的一方写入。
type Task struct {
	ID        string // 形如 DL-A3X9
	UserID    int64
	ChatID    int64
	UserName  string
	Request   DownloadRequest
	Status    TaskStatus
	CreatedAt  time.Time
	StartedAt  *time.Time // 进入 downloading 时写入
	FinishedAt *time.Time // 进入终态时写入
	Error      string     // 仅失败时写入

	// 进度消息的 message_id，首次进度更新时惰性创建
	ProgressMessageID int
}

// SetStatus 更新任务状态。终态写入一次后拒绝任何后续变更，
// 返回是否实际发生了变更。
func (t *Task) SetStatus(status TaskStatus) bool {
	if t.Status.IsTerminal() {
		return false
	}
	t.Status = status
	if status.IsTerminal() {
		now := time.Now()
		t.FinishedAt = &now
	}
	return true
}

// Fail 将任务置为失败并记录错误信息（截断到可读长度）
func (t *Task) Fail(errMsg string) bool {
	if !t.SetStatus(TaskStatusFailed) {
		return false
	}
	if len(errMsg) > 200 {
		errMsg = errMsg[:200]
	}
	t.Error = errMsg
	return true
}
