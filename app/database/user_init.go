package database

import (
	"fmt"

	"stream-porter/app/auth"
	"stream-porter/app/config"
	"stream-porter/app/logger"
	"stream-porter/app/model"

	"gorm.io/gorm"
)

// initAdminUser 初始化状态 API 的管理员账户
func initAdminUser(db *gorm.DB, cfg *config.Config, log *logger.Logger) error {
	if cfg.API.Username == "" || cfg.API.Password == "" {
		return fmt.Errorf("启用状态 API 时必须在配置文件中设置 api.username 和 api.password")
	}

	// 查找是否已存在管理员用户
	var existingAdmin model.ApiUser
	result := db.Where("is_admin = ?", true).First(&existingAdmin)

	if result.Error == nil {
		// 已存在，按配置同步用户名和密码
		needUpdate := false

		if existingAdmin.Username != cfg.API.Username {
			log.Infof("管理员用户名从 '%s' 更新为 '%s'", existingAdmin.Username, cfg.API.Username)
			existingAdmin.Username = cfg.API.Username
			needUpdate = true
		}

		if !auth.VerifyPassword(cfg.API.Password, existingAdmin.Password) {
			hashed, err := auth.HashPassword(cfg.API.Password)
			if err != nil {
				return fmt.Errorf("哈希密码失败: %v", err)
			}
			existingAdmin.Password = hashed
			needUpdate = true
			log.Infof("管理员 '%s' 密码已更新", cfg.API.Username)
		}

		if needUpdate {
			if err := db.Save(&existingAdmin).Error; err != nil {
				return fmt.Errorf("更新管理员账户失败: %v", err)
			}
		}
		return nil
	}

	// 不存在则创建
	hashed, err := auth.HashPassword(cfg.API.Password)
	if err != nil {
		return fmt.Errorf("哈希密码失败: %v", err)
	}

	adminUser := model.ApiUser{
		Username: cfg.API.Username,
		Password: hashed,
		IsAdmin:  true,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		return fmt.Errorf("创建管理员账户失败: %v", err)
	}

	log.Infof("管理员账户 '%s' 创建成功", cfg.API.Username)
	return nil
}
