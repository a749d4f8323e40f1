package config

import (
	"log"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch 监听配置文件变更，重新解析后回调。
// 目前只有并发上限等少数字段支持热更新，由调用方决定应用哪些。
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}

		var config Config
		if err := viper.Unmarshal(&config); err != nil {
			log.Printf("配置热更新解码失败: %v", err)
			return
		}
		if err := validateConfig(&config); err != nil {
			log.Printf("配置热更新验证失败: %v", err)
			return
		}

		onChange(&config)
	})
	viper.WatchConfig()
}
