package model

import (
	"time"
)

// ApiUser 状态 API 的登录账户
type ApiUser struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Username  string    `json:"username" gorm:"not null;uniqueIndex;comment:用户名"`
	Password  string    `json:"-" gorm:"not null;comment:密码哈希"`
	IsAdmin   bool      `json:"is_admin" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ApiUser) TableName() string {
	return "api_users"
}
