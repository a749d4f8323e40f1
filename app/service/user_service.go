package service

import (
	"errors"
	"fmt"
	"time"

	"stream-porter/app/logger"
	"stream-porter/app/model"

	"gorm.io/gorm"
)

// UserService 用户设置与封禁管理
type UserService struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewUserService 创建用户服务
func NewUserService(db *gorm.DB, log *logger.Logger) *UserService {
	return &UserService{
		db:     db,
		logger: log,
	}
}

// GetOrCreateSettings 获取用户设置，不存在时按默认值创建
func (s *UserService) GetOrCreateSettings(userID int64, username, firstName string) (*model.UserSettings, error) {
	var settings model.UserSettings
	err := s.db.Where("user_id = ?", userID).First(&settings).Error
	if err == nil {
		// 顺带刷新活跃时间和资料
		updates := map[string]interface{}{"last_active_at": time.Now()}
		if username != "" && settings.Username != username {
			updates["username"] = username
		}
		if firstName != "" && settings.FirstName != firstName {
			updates["first_name"] = firstName
		}
		if err := s.db.Model(&settings).Updates(updates).Error; err != nil {
			s.logger.Warnf("刷新用户 %d 活跃时间失败: %v", userID, err)
		}
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	settings = model.UserSettings{
		UserID:       userID,
		Username:     username,
		FirstName:    firstName,
		OutputFormat: model.OutputFormatMP4,
		UploadMode:   model.UploadModeVideo,
		LastActiveAt: time.Now(),
	}
	if err := s.db.Create(&settings).Error; err != nil {
		return nil, err
	}
	s.logger.Infof("新用户注册: %d (%s)", userID, username)
	return &settings, nil
}

// UpdateOutputFormat 更新输出容器
func (s *UserService) UpdateOutputFormat(userID int64, format string) error {
	if !model.ValidOutputFormat(format) {
		return fmt.Errorf("非法的输出容器: %s", format)
	}
	return s.db.Model(&model.UserSettings{}).
		Where("user_id = ?", userID).
		Update("output_format", format).Error
}

// UpdateUploadMode 更新上传方式
func (s *UserService) UpdateUploadMode(userID int64, mode string) error {
	if !model.ValidUploadMode(mode) {
		return fmt.Errorf("非法的上传方式: %s", mode)
	}
	return s.db.Model(&model.UserSettings{}).
		Where("user_id = ?", userID).
		Update("upload_mode", mode).Error
}

// UpdateGofileToken 更新 Gofile token，空值表示清除
func (s *UserService) UpdateGofileToken(userID int64, token string) error {
	return s.db.Model(&model.UserSettings{}).
		Where("user_id = ?", userID).
		Update("gofile_token", token).Error
}

// UpdateThumbnail 更新自定义缩略图，空值表示清除
func (s *UserService) UpdateThumbnail(userID int64, fileID string) error {
	return s.db.Model(&model.UserSettings{}).
		Where("user_id = ?", userID).
		Update("thumb_file_id", fileID).Error
}

// UserCount 统计注册用户数
func (s *UserService) UserCount() (int64, error) {
	var count int64
	err := s.db.Model(&model.UserSettings{}).Count(&count).Error
	return count, err
}

// AllUserIDs 返回全部注册用户的 ID，供广播使用
func (s *UserService) AllUserIDs() ([]int64, error) {
	var ids []int64
	err := s.db.Model(&model.UserSettings{}).Pluck("user_id", &ids).Error
	return ids, err
}

// IsBanned 检查用户是否被封禁
func (s *UserService) IsBanned(userID int64) bool {
	var count int64
	if err := s.db.Model(&model.BannedUser{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		s.logger.Errorf("查询封禁状态失败: %v", err)
		return false
	}
	return count > 0
}

// Ban 封禁用户，重复封禁返回错误
func (s *UserService) Ban(userID int64, reason string, bannedBy int64) error {
	if s.IsBanned(userID) {
		return fmt.Errorf("用户 %d 已在封禁名单中", userID)
	}
	entry := model.BannedUser{
		UserID:   userID,
		Reason:   reason,
		BannedBy: bannedBy,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return err
	}
	s.logger.Infof("封禁用户: %d 原因=%s 操作人=%d", userID, reason, bannedBy)
	return nil
}

// Unban 解除封禁
func (s *UserService) Unban(userID int64) error {
	result := s.db.Where("user_id = ?", userID).Delete(&model.BannedUser{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("用户 %d 不在封禁名单中", userID)
	}
	s.logger.Infof("解除封禁: %d", userID)
	return nil
}

// BanList 返回封禁名单
func (s *UserService) BanList() ([]model.BannedUser, error) {
	var banned []model.BannedUser
	err := s.db.Order("created_at DESC").Find(&banned).Error
	return banned, err
}
