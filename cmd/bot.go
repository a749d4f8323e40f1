package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stream-porter/app/bot"
	"stream-porter/app/config"
	"stream-porter/app/database"
	"stream-porter/app/logger"
	"stream-porter/app/server"
	"stream-porter/app/service"
	"stream-porter/app/utils/engine"
	"stream-porter/app/utils/gofile"
	"stream-porter/app/utils/mediainfo"
	"stream-porter/app/utils/mxplayer"

	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "启动机器人",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		// 创建日志器
		log := logger.New(cfg.Log)
		defer log.Sync()

		// 初始化数据库
		db, err := database.Init(cfg, log)
		if err != nil {
			log.Fatalf("数据库初始化失败: %v", err)
		}

		// 组装核心服务
		queue := service.NewDownloadQueue(log, cfg.Download.PerUserLimit, cfg.Download.GlobalLimit)
		users := service.NewUserService(db, log)
		scraper := mxplayer.NewClient(log)

		tgBot, err := bot.New(cfg, queue, users, scraper, log)
		if err != nil {
			log.Fatalf("机器人初始化失败: %v", err)
		}

		// 组装任务流水线
		eng := engine.New(cfg.Download, log)
		uploader := bot.NewUploader(tgBot.API(), gofile.New(log), cfg.Upload.SizeLimit, log)
		thumbnailer := service.NewThumbnailService(tgBot, log)
		reporter := bot.NewProgressReporter(tgBot.API(), log)
		pipeline := service.NewPipeline(cfg, queue, eng, uploader, thumbnailer, mediainfo.Probe, reporter, log)
		worker := service.NewWorker(queue, pipeline.Run, log)

		retention := service.NewRetentionService(queue, db, cfg, log)

		// 配置热更新只作用于并发上限
		config.Watch(func(updated *config.Config) {
			queue.SetLimits(updated.Download.PerUserLimit, updated.Download.GlobalLimit)
		})

		worker.Start()
		tgBot.Start()
		if err := retention.Start(); err != nil {
			log.Fatalf("启动清理服务失败: %v", err)
		}

		// 可选的状态查询 API
		var apiServer *server.Server
		if cfg.API.Enabled {
			apiServer = server.New(cfg, queue, db, log)
			go func() {
				if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("启动状态 API 失败: %v", err)
				}
			}()
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("收到关闭信号，正在关闭...")

		tgBot.Stop()
		worker.Stop()
		retention.Stop()

		if apiServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := apiServer.Shutdown(ctx); err != nil {
				log.Errorf("状态 API 关闭失败: %v", err)
			}
		}

		if err := database.Close(db); err != nil {
			log.Errorf("关闭数据库连接失败: %v", err)
		}
		log.Info("已退出")
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}
