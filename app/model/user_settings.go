package model

import (
	"time"
)

// UserSettings 用户偏好设置
type UserSettings struct {
	ID           uint      `json:"id" gorm:"primarykey"`
	UserID       int64     `json:"user_id" gorm:"not null;uniqueIndex;comment:Telegram用户ID"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	OutputFormat string    `json:"output_format" gorm:"size:10;default:mp4;comment:输出容器"` // mp4 或 mkv
	UploadMode   string    `json:"upload_mode" gorm:"size:10;default:video;comment:上传方式"` // video 或 document
	GofileToken  string    `json:"-" gorm:"comment:Gofile API token"`
	ThumbFileID  string    `json:"thumb_file_id" gorm:"comment:自定义缩略图file_id"`
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName 指定表名
func (UserSettings) TableName() string {
	return "user_settings"
}

// 设置项合法值
const (
	OutputFormatMP4 = "mp4"
	OutputFormatMKV = "mkv"

	UploadModeVideo    = "video"
	UploadModeDocument = "document"
)

// ValidOutputFormat 检查输出容器取值是否合法
func ValidOutputFormat(format string) bool {
	return format == OutputFormatMP4 || format == OutputFormatMKV
}

// ValidUploadMode 检查上传方式取值是否合法
func ValidUploadMode(mode string) bool {
	return mode == UploadModeVideo || mode == UploadModeDocument
}
