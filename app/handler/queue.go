package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"stream-porter/app/model"
	"stream-porter/app/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// QueueHandler 队列查询处理器
type QueueHandler struct {
	queue *service.DownloadQueue
	db    *gorm.DB
}

// NewQueueHandler 创建队列处理器
func NewQueueHandler(queue *service.DownloadQueue, db *gorm.DB) *QueueHandler {
	return &QueueHandler{
		queue: queue,
		db:    db,
	}
}

// taskView 任务的对外视图
type taskView struct {
	ID        string     `json:"id"`
	UserID    int64      `json:"user_id"`
	UserName  string     `json:"user_name,omitempty"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

func toTaskView(task *model.Task) taskView {
	return taskView{
		ID:        task.ID,
		UserID:    task.UserID,
		UserName:  task.UserName,
		Title:     task.Request.Title,
		Status:    string(task.Status),
		Error:     task.Error,
		CreatedAt: task.CreatedAt,
		StartedAt: task.StartedAt,
	}
}

// Stats 全局队列统计
func (h *QueueHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, Success(h.queue.GlobalStats(), "ok"))
}

// ListTasks 列出内存注册表中的全部任务，可按状态过滤
func (h *QueueHandler) ListTasks(c *gin.Context) {
	status := c.Query("status")

	var views []taskView
	for _, task := range h.queue.Snapshot() {
		if status != "" && string(task.Status) != status {
			continue
		}
		views = append(views, toTaskView(task))
	}
	c.JSON(http.StatusOK, Success(views, "ok"))
}

// GetTask 查询单个任务，内存中找不到时回查归档表
func (h *QueueHandler) GetTask(c *gin.Context) {
	id := c.Param("id")

	if task, ok := h.queue.Get(id); ok {
		c.JSON(http.StatusOK, Success(toTaskView(task), "ok"))
		return
	}

	var archived model.TaskArchive
	if err := h.db.Where("task_id = ?", id).First(&archived).Error; err == nil {
		c.JSON(http.StatusOK, Success(archived, "ok"))
		return
	}

	c.JSON(http.StatusNotFound, Error(404, "任务不存在"))
}

// CancelTask 取消等待中的任务，供运维处理卡队列
func (h *QueueHandler) CancelTask(c *gin.Context) {
	id := c.Param("id")

	task, ok := h.queue.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, Error(404, "任务不存在"))
		return
	}

	if _, err := h.queue.Cancel(task.ID, task.UserID); err != nil {
		switch {
		case errors.Is(err, service.ErrTaskActive):
			c.JSON(http.StatusConflict, Error(409, "任务已在执行中，无法取消"))
		case errors.Is(err, service.ErrTaskFinished):
			c.JSON(http.StatusConflict, Error(409, "任务已结束"))
		default:
			c.JSON(http.StatusInternalServerError, Error(500, err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, Success(toTaskView(task), "已取消"))
}

// ListArchive 分页查询归档任务
func (h *QueueHandler) ListArchive(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	query := h.db.Model(&model.TaskArchive{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, Error(500, err.Error()))
		return
	}

	var archives []model.TaskArchive
	if err := query.Order("archived_at DESC").
		Limit(pageSize).Offset((page - 1) * pageSize).
		Find(&archives).Error; err != nil {
		c.JSON(http.StatusInternalServerError, Error(500, err.Error()))
		return
	}

	c.JSON(http.StatusOK, Success(gin.H{
		"items": archives,
		"total": total,
		"page":  page,
	}, "ok"))
}
