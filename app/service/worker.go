package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stream-porter/app/logger"
	"stream-porter/app/model"
)

// TaskHandler 执行单个任务的回调。实现方负责把任务推进到终态；
// 返回错误仅用于日志，状态迁移以队列为准。
type TaskHandler func(ctx context.Context, task *model.Task) error

// Worker 队列调度循环。周期性向队列请求可准入的任务，
// 每个任务在独立 goroutine 中执行。
type Worker struct {
	queue     *DownloadQueue
	handler   TaskHandler
	logger    *logger.Logger
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewWorker 创建调度循环
func NewWorker(queue *DownloadQueue, handler TaskHandler, log *logger.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		queue:    queue,
		handler:  handler,
		logger:   log,
		interval: time.Second,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start 启动调度循环，重复调用无副作用
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		w.logger.Warn("调度循环已经在运行中")
		return
	}

	w.isRunning = true
	w.logger.Info("启动任务调度循环")
	go w.loop()
}

// Stop 停止调度并等待执行中的任务收尾
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return
	}

	w.logger.Info("正在停止任务调度循环...")
	w.queue.Stop()
	w.cancel()
	w.wg.Wait()
	w.isRunning = false
	w.logger.Info("任务调度循环已停止")
}

// loop 调度主循环
func (w *Worker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.dispatch()
		}
	}
}

// dispatch 把当前全部可准入的任务派发出去
func (w *Worker) dispatch() {
	for {
		task := w.queue.NextAdmissible()
		if task == nil {
			return
		}

		w.wg.Add(1)
		go w.runTask(task)
	}
}

// runTask 执行单个任务。任何 panic 都会被兜住并把任务置为失败，
// 保证配额一定被释放。
func (w *Worker) runTask(task *model.Task) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorf("任务 %s 执行时 panic: %v", task.ID, r)
			w.queue.Finish(task.ID, model.TaskStatusFailed, fmt.Sprintf("internal error: %v", r))
		}
	}()

	w.logger.Infof("开始执行任务: %s 标题=%s", task.ID, task.Request.Title)
	if err := w.handler(w.ctx, task); err != nil {
		w.logger.Errorf("任务 %s 执行失败: %v", task.ID, err)
	}
}
