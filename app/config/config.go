package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Download DownloadConfig `mapstructure:"download"`
	Upload   UploadConfig   `mapstructure:"upload"`
	API      APIConfig      `mapstructure:"api"`
	Log      LogConfig      `mapstructure:"log"`
	JWT      JWTConfig      `mapstructure:"jwt"`
}

type TelegramConfig struct {
	BotToken string  `mapstructure:"bot_token"`
	Admins   []int64 `mapstructure:"admins"` // 管理员用户 ID
}

type DownloadConfig struct {
	BinaryPath     string `mapstructure:"binary_path"`      // N_m3u8DL-RE 可执行文件路径
	Dir            string `mapstructure:"dir"`              // 下载临时目录
	CookiesDir     string `mapstructure:"cookies_dir"`      // 每用户 cookies 存放目录
	PerUserLimit   int    `mapstructure:"per_user_limit"`   // 单用户并发上限
	GlobalLimit    int    `mapstructure:"global_limit"`     // 全局并发上限
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`  // 单任务硬超时
	ThreadCount    int    `mapstructure:"thread_count"`     // 引擎下载线程数
	RetryCount     int    `mapstructure:"retry_count"`      // 引擎分片重试次数
	RetentionHours int    `mapstructure:"retention_hours"`  // 终态任务在内存中保留时长
}

type UploadConfig struct {
	SizeLimit int64 `mapstructure:"size_limit"` // Telegram 上传大小上限（字节）
}

type APIConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`      // JWT 密钥
	ExpireTime int    `mapstructure:"expire_time"` // 过期时间（小时）
	Issuer     string `mapstructure:"issuer"`      // 签发者
}

func Load() *Config {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	// 确保工作目录存在
	for _, dir := range []string{config.Download.Dir, config.Download.CookiesDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("创建目录失败 %s: %v", dir, err)
		}
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("download.binary_path", "N_m3u8DL-RE")
	viper.SetDefault("download.dir", "data/downloads")
	viper.SetDefault("download.cookies_dir", "data/cookies")
	viper.SetDefault("download.per_user_limit", 2)
	viper.SetDefault("download.global_limit", 5)
	viper.SetDefault("download.timeout_seconds", 1800)
	viper.SetDefault("download.thread_count", 16)
	viper.SetDefault("download.retry_count", 5)
	viper.SetDefault("download.retention_hours", 1)

	// Telegram 上传大小上限 2GB
	viper.SetDefault("upload.size_limit", int64(2)*1024*1024*1024)

	// 状态 API 默认关闭
	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.port", "5000")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// JWT默认配置
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.expire_time", 24) // 24小时
	viper.SetDefault("jwt.issuer", "stream-porter")
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot_token 未设置")
	}
	if config.Download.PerUserLimit <= 0 {
		return fmt.Errorf("单用户并发上限必须大于 0")
	}
	if config.Download.GlobalLimit < config.Download.PerUserLimit {
		return fmt.Errorf("全局并发上限不能小于单用户并发上限")
	}
	if config.API.Enabled && config.JWT.Secret == "" {
		return fmt.Errorf("JWT密钥未设置")
	}
	return nil
}

// CookiesPath 返回指定用户 cookies 文件的路径
func (c *DownloadConfig) CookiesPath(userID int64) string {
	return filepath.Join(c.CookiesDir, fmt.Sprintf("%d.txt", userID))
}

// HasCookies 检查用户是否已上传 cookies
func (c *DownloadConfig) HasCookies(userID int64) bool {
	_, err := os.Stat(c.CookiesPath(userID))
	return err == nil
}
