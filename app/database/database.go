package database

import (
	"os"
	"path/filepath"

	"stream-porter/app/config"
	"stream-porter/app/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Init 初始化数据库连接并迁移表结构
func Init(cfg *config.Config, log *logger.Logger) (*gorm.DB, error) {
	// 确保数据库文件目录存在
	dbPath := "data/stream-porter.db"
	if err := ensureDir(filepath.Dir(dbPath)); err != nil {
		log.Errorf("创建数据库目录失败: %v", err)
		return nil, err
	}

	// 打开数据库连接
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		log.Errorf("连接数据库失败: %v", err)
		return nil, err
	}

	log.Infof("数据库连接成功: %s", dbPath)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		log.Errorf("迁移表结构失败: %v", err)
		return nil, err
	}

	// 仅在启用状态 API 时初始化管理员账户
	if cfg.API.Enabled {
		if err := initAdminUser(db, cfg, log); err != nil {
			log.Errorf("初始化管理员账户失败: %v", err)
			return nil, err
		}
	}

	return db, nil
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureDir 确保目录存在
func ensureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
