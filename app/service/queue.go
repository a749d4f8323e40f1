package service

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"stream-porter/app/logger"
	"stream-porter/app/model"
)

// 队列操作错误
var (
	ErrTaskNotFound = errors.New("任务不存在")
	ErrNotTaskOwner = errors.New("任务属于其他用户")
	ErrTaskActive   = errors.New("任务已在执行中")
	ErrTaskFinished = errors.New("任务已结束")
	ErrQueueStopped = errors.New("队列已停止")
)

// 任务 ID 的字符集，全大写字母加数字
const taskIDChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DownloadQueue 内存任务注册表和准入控制器。
// 所有字段由 mu 保护，准入判定和状态迁移在同一临界区内完成。
type DownloadQueue struct {
	mu      sync.Mutex
	pending []*model.Task          // FIFO 等待队列
	items   map[string]*model.Task // 全部任务（含终态），键为任务 ID
	tasks   []*model.Task          // 按创建顺序的全量列表，供查询用

	activeByUser map[int64]int // 每用户执行中任务数
	activeTotal  int           // 全局执行中任务数

	perUserLimit int
	globalLimit  int

	stopped bool
	rnd     *rand.Rand
	logger  *logger.Logger
}

// NewDownloadQueue 创建下载队列
func NewDownloadQueue(log *logger.Logger, perUserLimit, globalLimit int) *DownloadQueue {
	if perUserLimit <= 0 {
		perUserLimit = 1
	}
	if globalLimit < perUserLimit {
		globalLimit = perUserLimit
	}
	return &DownloadQueue{
		items:        make(map[string]*model.Task),
		activeByUser: make(map[int64]int),
		perUserLimit: perUserLimit,
		globalLimit:  globalLimit,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:       log,
	}
}

// newTaskID 生成形如 DL-A3X9 的任务 ID，碰撞时重新生成。
// 调用方必须持有 mu。
func (q *DownloadQueue) newTaskID() string {
	for {
		b := make([]byte, 4)
		for i := range b {
			b[i] = taskIDChars[q.rnd.Intn(len(taskIDChars))]
		}
		id := "DL-" + string(b)
		if _, exists := q.items[id]; !exists {
			return id
		}
	}
}

// Add 入队一个新任务，返回任务和该用户自己等待队列中的位置（从 1 开始）。
// 准入按用户配额进行，其他用户排在前面的任务不占用本用户的位置。
func (q *DownloadQueue) Add(userID, chatID int64, userName string, req model.DownloadRequest) (*model.Task, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return nil, 0, ErrQueueStopped
	}

	task := &model.Task{
		ID:        q.newTaskID(),
		UserID:    userID,
		ChatID:    chatID,
		UserName:  userName,
		Request:   req,
		Status:    model.TaskStatusPending,
		CreatedAt: time.Now(),
	}

	q.items[task.ID] = task
	q.tasks = append(q.tasks, task)
	q.pending = append(q.pending, task)

	position := 0
	for _, t := range q.pending {
		if t.UserID == userID {
			position++
		}
	}

	q.logger.Infof("任务入队: %s 用户=%d 标题=%s 用户队列位置=%d", task.ID, userID, req.Title, position)
	return task, position, nil
}

// NextAdmissible 按 FIFO 顺序扫描等待队列，返回第一个可准入的任务。
// 被准入的任务在同一临界区内迁移到 downloading 并占用配额；
// 没有可准入任务时返回 nil。排在前面但用户已满额的任务会被跳过，
// 不会阻塞后面其他用户的任务。
func (q *DownloadQueue) NextAdmissible() *model.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped || q.activeTotal >= q.globalLimit {
		return nil
	}

	for i, task := range q.pending {
		if q.activeByUser[task.UserID] >= q.perUserLimit {
			continue
		}

		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		task.SetStatus(model.TaskStatusDownloading)
		now := time.Now()
		task.StartedAt = &now
		q.activeByUser[task.UserID]++
		q.activeTotal++

		q.logger.Infof("任务准入: %s 用户=%d 全局活跃=%d/%d", task.ID, task.UserID, q.activeTotal, q.globalLimit)
		return task
	}
	return nil
}

// MarkUploading 将执行中的任务迁移到 uploading，配额不变
func (q *DownloadQueue) MarkUploading(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if task, ok := q.items[normalizeID(id)]; ok && task.Status == model.TaskStatusDownloading {
		task.SetStatus(model.TaskStatusUploading)
	}
}

// Finish 将执行中的任务写入终态并释放配额。终态只能写入一次，
// 重复调用是无害的空操作。
func (q *DownloadQueue) Finish(id string, status model.TaskStatus, errMsg string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.items[normalizeID(id)]
	if !ok || !task.Status.IsActive() {
		return
	}

	if status == model.TaskStatusFailed {
		task.Fail(errMsg)
	} else {
		task.SetStatus(status)
	}
	q.releaseLocked(task)

	q.logger.Infof("任务结束: %s 状态=%s 全局活跃=%d/%d", task.ID, task.Status, q.activeTotal, q.globalLimit)
}

// releaseLocked 释放任务占用的配额。调用方必须持有 mu。
func (q *DownloadQueue) releaseLocked(task *model.Task) {
	if q.activeByUser[task.UserID] > 0 {
		q.activeByUser[task.UserID]--
		if q.activeByUser[task.UserID] == 0 {
			delete(q.activeByUser, task.UserID)
		}
	}
	if q.activeTotal > 0 {
		q.activeTotal--
	}
}

// Cancel 取消指定任务。只有等待中的任务可以取消；
// 执行中返回 ErrTaskActive，已结束返回 ErrTaskFinished，
// 由调用方根据任务状态生成提示。
func (q *DownloadQueue) Cancel(id string, userID int64) (*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.items[normalizeID(id)]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.UserID != userID {
		return task, ErrNotTaskOwner
	}

	switch {
	case task.Status == model.TaskStatusPending:
		q.removePendingLocked(task.ID)
		task.SetStatus(model.TaskStatusCancelled)
		q.logger.Infof("任务已取消: %s 用户=%d", task.ID, userID)
		return task, nil
	case task.Status.IsActive():
		return task, ErrTaskActive
	default:
		return task, ErrTaskFinished
	}
}

// CancelUserPending 取消某用户全部等待中的任务，返回取消数量
func (q *DownloadQueue) CancelUserPending(userID int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	remaining := q.pending[:0]
	cancelled := 0
	for _, task := range q.pending {
		if task.UserID == userID {
			task.SetStatus(model.TaskStatusCancelled)
			cancelled++
			continue
		}
		remaining = append(remaining, task)
	}
	q.pending = remaining

	if cancelled > 0 {
		q.logger.Infof("批量取消等待任务: 用户=%d 数量=%d", userID, cancelled)
	}
	return cancelled
}

// removePendingLocked 从等待队列中移除指定任务。调用方必须持有 mu。
func (q *DownloadQueue) removePendingLocked(id string) {
	for i, task := range q.pending {
		if task.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// Get 按 ID 查找任务，大小写不敏感
func (q *DownloadQueue) Get(id string) (*model.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.items[normalizeID(id)]
	return task, ok
}

// UserTaskView 用户视角的任务概览
type UserTaskView struct {
	Task     *model.Task
	Position int // 等待队列中的位置（从 1 开始），非等待任务为 0
}

// UserStatus 返回某用户全部未结束的任务，等待中的附带用户视角的队列位置
func (q *DownloadQueue) UserStatus(userID int64) []UserTaskView {
	q.mu.Lock()
	defer q.mu.Unlock()

	positions := make(map[string]int, len(q.pending))
	counts := make(map[int64]int)
	for _, task := range q.pending {
		counts[task.UserID]++
		positions[task.ID] = counts[task.UserID]
	}

	var views []UserTaskView
	for _, task := range q.tasks {
		if task.UserID != userID || task.Status.IsTerminal() {
			continue
		}
		views = append(views, UserTaskView{Task: task, Position: positions[task.ID]})
	}
	return views
}

// QueueStats 全局队列统计
type QueueStats struct {
	Pending      int `json:"pending"`
	Active       int `json:"active"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	Cancelled    int `json:"cancelled"`
	PerUserLimit int `json:"per_user_limit"`
	GlobalLimit  int `json:"global_limit"`
}

// GlobalStats 返回全局统计快照
func (q *DownloadQueue) GlobalStats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := QueueStats{
		Pending:      len(q.pending),
		Active:       q.activeTotal,
		PerUserLimit: q.perUserLimit,
		GlobalLimit:  q.globalLimit,
	}
	for _, task := range q.tasks {
		switch task.Status {
		case model.TaskStatusCompleted:
			stats.Completed++
		case model.TaskStatusFailed:
			stats.Failed++
		case model.TaskStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

// Snapshot 返回全部任务的快照副本，按创建顺序排列
func (q *DownloadQueue) Snapshot() []*model.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*model.Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}

// SetLimits 运行时更新并发上限。收紧上限不会打断已在执行的任务，
// 只影响后续准入。
func (q *DownloadQueue) SetLimits(perUser, global int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if perUser <= 0 || global < perUser {
		q.logger.Warnf("忽略非法并发上限: 单用户=%d 全局=%d", perUser, global)
		return
	}
	if perUser == q.perUserLimit && global == q.globalLimit {
		return
	}

	q.logger.Infof("更新并发上限: 单用户 %d->%d 全局 %d->%d", q.perUserLimit, perUser, q.globalLimit, global)
	q.perUserLimit = perUser
	q.globalLimit = global
}

// Stop 停止接收新任务
func (q *DownloadQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
}

// EvictTerminal 移除到达保留期限的终态任务并返回，供归档落库。
// 保留时长从任务进入终态算起，和任务本身运行了多久无关。
func (q *DownloadQueue) EvictTerminal(retention time.Duration) []*model.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	var evicted []*model.Task
	remaining := q.tasks[:0]
	for _, task := range q.tasks {
		if task.Status.IsTerminal() && task.FinishedAt != nil && task.FinishedAt.Before(cutoff) {
			delete(q.items, task.ID)
			evicted = append(evicted, task)
			continue
		}
		remaining = append(remaining, task)
	}
	q.tasks = remaining
	return evicted
}

// normalizeID 任务 ID 统一按大写处理
func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
