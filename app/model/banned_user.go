package model

import (
	"time"
)

// BannedUser 封禁名单
type BannedUser struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	UserID    int64     `json:"user_id" gorm:"not null;uniqueIndex;comment:被封禁的用户ID"`
	Reason    string    `json:"reason" gorm:"type:text;comment:封禁原因"`
	BannedBy  int64     `json:"banned_by" gorm:"comment:操作管理员ID"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (BannedUser) TableName() string {
	return "banned_users"
}
