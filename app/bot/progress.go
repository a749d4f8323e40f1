package bot

import (
	"fmt"
	"sync"
	"time"

	"stream-porter/app/logger"
	"stream-porter/app/model"
	"stream-porter/app/utils/format"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// 进度消息的最小编辑间隔，避免触发 Telegram 限流
const (
	downloadEditInterval = 3 * time.Second
	uploadEditInterval   = 2 * time.Second
)

// progressState 单个任务的进度消息状态
type progressState struct {
	lastEdit   time.Time
	mutedUntil time.Time // 被限流后静默到此时刻
	lastText   string
	phaseStart time.Time
	phase      string
}

// ProgressReporter 把任务进度同步到 Telegram 消息。
// 所有方法只记日志不返回错误，进度展示永远不影响任务执行。
type ProgressReporter struct {
	api    *tgbotapi.BotAPI
	logger *logger.Logger
	mu     sync.Mutex
	states map[string]*progressState
}

// NewProgressReporter 创建进度报告器
func NewProgressReporter(api *tgbotapi.BotAPI, log *logger.Logger) *ProgressReporter {
	return &ProgressReporter{
		api:    api,
		logger: log,
		states: make(map[string]*progressState),
	}
}

// TaskStarted 发送任务的进度锚点消息
func (r *ProgressReporter) TaskStarted(task *model.Task) {
	text := fmt.Sprintf("⏬ <b>%s</b>\n%s\n\nPreparing download...", task.ID, task.Request.Title)
	msg := tgbotapi.NewMessage(task.ChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	sent, err := r.api.Send(msg)
	if err != nil {
		r.logger.Warnf("任务 %s 发送进度消息失败: %v", task.ID, err)
		return
	}
	task.ProgressMessageID = sent.MessageID

	r.mu.Lock()
	r.states[task.ID] = &progressState{phaseStart: time.Now(), phase: "download"}
	r.mu.Unlock()
}

// DownloadProgress 更新下载进度，更新频率受限流保护
func (r *ProgressReporter) DownloadProgress(task *model.Task, percent float64) {
	state := r.prepare(task.ID, "download", downloadEditInterval)
	if state == nil {
		return
	}

	elapsed := time.Since(state.phaseStart)
	eta := "-"
	if percent > 0 {
		remaining := elapsed.Seconds() / percent * (100 - percent)
		eta = format.ETA(remaining)
	}

	text := fmt.Sprintf("⏬ <b>%s</b>\n%s\n\n%s %.1f%%\nElapsed: %s | ETA: %s",
		task.ID, task.Request.Title,
		format.ProgressBar(percent, 10), percent,
		format.Duration(elapsed), eta)

	r.edit(task, state, text)
}

// UploadProgress 更新上传进度
func (r *ProgressReporter) UploadProgress(task *model.Task, current, total int64) {
	state := r.prepare(task.ID, "upload", uploadEditInterval)
	if state == nil {
		return
	}

	elapsed := time.Since(state.phaseStart)
	percent := 0.0
	if total > 0 {
		percent = float64(current) / float64(total) * 100
	}
	speed := float64(current) / elapsed.Seconds()
	eta := "-"
	if speed > 0 && total > current {
		eta = format.ETA(float64(total-current) / speed)
	}

	text := fmt.Sprintf("⏫ <b>%s</b>\n%s\n\n%s %.1f%%\n%s / %s | %s | ETA: %s",
		task.ID, task.Request.Title,
		format.ProgressBar(percent, 10), percent,
		format.Size(current), format.Size(total), format.Speed(speed), eta)

	r.edit(task, state, text)
}

// TaskCompleted 文件已发到聊天，删除进度消息
func (r *ProgressReporter) TaskCompleted(task *model.Task) {
	r.forget(task.ID)
	if task.ProgressMessageID == 0 {
		return
	}
	del := tgbotapi.NewDeleteMessage(task.ChatID, task.ProgressMessageID)
	if _, err := r.api.Request(del); err != nil {
		r.logger.Warnf("任务 %s 删除进度消息失败: %v", task.ID, err)
	}
}

// TaskLink 文件在外部存储，把进度消息改写为下载链接
func (r *ProgressReporter) TaskLink(task *model.Task, link string) {
	r.forget(task.ID)
	text := fmt.Sprintf("✅ <b>%s</b>\n%s\n\nFile exceeds the Telegram size limit, download it here:\n%s",
		task.ID, task.Request.Title, link)
	r.finalEdit(task, text)
}

// TaskFailed 把进度消息改写为失败说明
func (r *ProgressReporter) TaskFailed(task *model.Task, reason string) {
	r.forget(task.ID)
	if len(reason) > 200 {
		reason = reason[:200]
	}
	text := fmt.Sprintf("❌ <b>%s</b>\n%s\n\nFailed: %s", task.ID, task.Request.Title, reason)
	r.finalEdit(task, text)
}

// prepare 检查限流窗口，允许更新时返回任务状态并推进时间戳
func (r *ProgressReporter) prepare(taskID, phase string, interval time.Duration) *progressState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[taskID]
	if !ok {
		return nil
	}
	now := time.Now()
	if now.Before(state.mutedUntil) || now.Sub(state.lastEdit) < interval {
		return nil
	}
	if state.phase != phase {
		state.phase = phase
		state.phaseStart = now
	}
	state.lastEdit = now
	return state
}

// edit 编辑进度消息。遇到限流时按服务端要求静默一段时间，
// 期间的进度更新直接丢弃。
func (r *ProgressReporter) edit(task *model.Task, state *progressState, text string) {
	if task.ProgressMessageID == 0 || text == state.lastText {
		return
	}

	msg := tgbotapi.NewEditMessageText(task.ChatID, task.ProgressMessageID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := r.api.Send(msg); err != nil {
		if tgErr, ok := err.(*tgbotapi.Error); ok && tgErr.RetryAfter > 0 {
			r.mu.Lock()
			state.mutedUntil = time.Now().Add(time.Duration(tgErr.RetryAfter) * time.Second)
			r.mu.Unlock()
			r.logger.Warnf("任务 %s 进度更新被限流 %d 秒", task.ID, tgErr.RetryAfter)
			return
		}
		r.logger.Warnf("任务 %s 更新进度消息失败: %v", task.ID, err)
		return
	}

	r.mu.Lock()
	state.lastText = text
	r.mu.Unlock()
}

// finalEdit 写入终态消息，没有锚点消息时改为直接发送
func (r *ProgressReporter) finalEdit(task *model.Task, text string) {
	if task.ProgressMessageID != 0 {
		msg := tgbotapi.NewEditMessageText(task.ChatID, task.ProgressMessageID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := r.api.Send(msg); err == nil {
			return
		}
	}
	msg := tgbotapi.NewMessage(task.ChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := r.api.Send(msg); err != nil {
		r.logger.Warnf("任务 %s 发送终态消息失败: %v", task.ID, err)
	}
}

// forget 清理任务的进度状态
func (r *ProgressReporter) forget(taskID string) {
	r.mu.Lock()
	delete(r.states, taskID)
	r.mu.Unlock()
}
