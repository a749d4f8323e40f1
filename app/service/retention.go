package service

import (
	"sync"
	"time"

	"stream-porter/app/config"
	"stream-porter/app/logger"
	"stream-porter/app/model"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// RetentionService 定期清理终态任务。
// 到达保留期限的任务从内存注册表中移出并归档到数据库，
// 过旧的归档记录随后也会被裁剪。
type RetentionService struct {
	queue     *DownloadQueue
	db        *gorm.DB
	cfg       *config.Config
	logger    *logger.Logger
	cron      *cron.Cron
	isRunning bool
	mu        sync.Mutex
}

// 归档记录的保留期限
const (
	archiveFailedMaxAge  = 7 * 24 * time.Hour
	archiveDefaultMaxAge = 30 * 24 * time.Hour
)

// NewRetentionService 创建清理服务
func NewRetentionService(queue *DownloadQueue, db *gorm.DB, cfg *config.Config, log *logger.Logger) *RetentionService {
	return &RetentionService{
		queue:  queue,
		db:     db,
		cfg:    cfg,
		logger: log,
		cron:   cron.New(),
	}
}

// Start 启动定时清理，重复调用无副作用
func (s *RetentionService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.logger.Warn("清理服务已经在运行中")
		return nil
	}

	// 每 10 分钟归档一次到期的终态任务
	if _, err := s.cron.AddFunc("*/10 * * * *", s.evictAndArchive); err != nil {
		return err
	}
	// 每天凌晨裁剪过旧的归档记录
	if _, err := s.cron.AddFunc("30 3 * * *", s.pruneArchive); err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.Infof("启动任务清理服务，内存保留时长: %d 小时", s.cfg.Download.RetentionHours)
	return nil
}

// Stop 停止定时清理
func (s *RetentionService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isRunning = false
	s.logger.Info("任务清理服务已停止")
}

// evictAndArchive 把到期的终态任务移出内存并写入归档表
func (s *RetentionService) evictAndArchive() {
	retention := time.Duration(s.cfg.Download.RetentionHours) * time.Hour
	evicted := s.queue.EvictTerminal(retention)
	if len(evicted) == 0 {
		return
	}

	now := time.Now()
	archives := make([]model.TaskArchive, 0, len(evicted))
	for _, task := range evicted {
		archives = append(archives, model.TaskArchive{
			TaskID:     task.ID,
			UserID:     task.UserID,
			Title:      task.Request.Title,
			Status:     string(task.Status),
			Error:      task.Error,
			CreatedAt:  task.CreatedAt,
			StartedAt:  task.StartedAt,
			ArchivedAt: now,
		})
	}

	if err := s.db.Create(&archives).Error; err != nil {
		s.logger.Errorf("归档终态任务失败: %v", err)
		return
	}
	s.logger.Infof("归档终态任务 %d 个", len(archives))
}

// pruneArchive 裁剪过旧的归档记录。
// 失败任务保留 7 天便于排查，其余保留 30 天。
func (s *RetentionService) pruneArchive() {
	now := time.Now()

	result := s.db.Where("status = ? AND archived_at < ?",
		string(model.TaskStatusFailed), now.Add(-archiveFailedMaxAge)).
		Delete(&model.TaskArchive{})
	if result.Error != nil {
		s.logger.Errorf("裁剪失败任务归档失败: %v", result.Error)
	}
	pruned := result.RowsAffected

	result = s.db.Where("archived_at < ?", now.Add(-archiveDefaultMaxAge)).
		Delete(&model.TaskArchive{})
	if result.Error != nil {
		s.logger.Errorf("裁剪任务归档失败: %v", result.Error)
	}
	pruned += result.RowsAffected

	if pruned > 0 {
		s.logger.Infof("裁剪归档记录 %d 条", pruned)
	}
}
