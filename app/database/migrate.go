package database

import (
	"stream-porter/app/model"

	"gorm.io/gorm"
)

func autoMigrate(db *gorm.DB) error {
	// 自动迁移表结构
	return db.AutoMigrate(
		&model.UserSettings{},
		&model.BannedUser{},
		&model.TaskArchive{},
		&model.ApiUser{},
	)
}
