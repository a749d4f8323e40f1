package model

import (
	"time"
)

// TaskArchive 终态任务归档。内存注册表只保留终态任务一段时间，
// 到期后由清理任务落库，供后续查询。
type TaskArchive struct {
	ID         uint       `json:"id" gorm:"primarykey"`
	TaskID     string     `json:"task_id" gorm:"size:10;not null;index;comment:任务ID"`
	UserID     int64      `json:"user_id" gorm:"not null;index"`
	Title      string     `json:"title"`
	Status     string     `json:"status" gorm:"size:20;comment:终态"` // completed, failed, cancelled
	Error      string     `json:"error" gorm:"type:text"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	ArchivedAt time.Time  `json:"archived_at"`
}

// TableName 指定表名
func (TaskArchive) TableName() string {
	return "task_archive"
}
