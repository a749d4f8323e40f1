package bot

import (
	"strings"
	"sync"

	"stream-porter/app/config"
	"stream-porter/app/logger"
	"stream-porter/app/service"
	"stream-porter/app/utils/mxplayer"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot Telegram 机器人主体，负责接收更新并分发到各处理器
type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *config.Config
	queue    *service.DownloadQueue
	users    *service.UserService
	scraper  *mxplayer.Client
	sessions *sessionStore
	logger   *logger.Logger
	admins   map[int64]bool

	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// New 创建机器人并校验 token
func New(cfg *config.Config, queue *service.DownloadQueue, users *service.UserService, scraper *mxplayer.Client, log *logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, err
	}

	admins := make(map[int64]bool, len(cfg.Telegram.Admins))
	for _, id := range cfg.Telegram.Admins {
		admins[id] = true
	}

	log.Infof("机器人已登录: @%s", api.Self.UserName)
	return &Bot{
		api:      api,
		cfg:      cfg,
		queue:    queue,
		users:    users,
		scraper:  scraper,
		sessions: newSessionStore(),
		logger:   log,
		admins:   admins,
	}, nil
}

// API 返回底层 Bot API 客户端，供上传器和进度报告器共用
func (b *Bot) API() *tgbotapi.BotAPI {
	return b.api
}

// FileURL 把 file_id 解析为直接下载地址
func (b *Bot) FileURL(fileID string) (string, error) {
	return b.api.GetFileDirectURL(fileID)
}

// Start 启动更新接收循环，重复调用无副作用
func (b *Bot) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isRunning {
		b.logger.Warn("机器人已经在运行中")
		return
	}
	b.isRunning = true

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for update := range updates {
			b.dispatch(update)
		}
	}()
	b.logger.Info("开始接收 Telegram 更新")
}

// Stop 停止接收更新并等待处理中的更新完成
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isRunning {
		return
	}
	b.api.StopReceivingUpdates()
	b.wg.Wait()
	b.isRunning = false
	b.logger.Info("机器人已停止")
}

// dispatch 分发单条更新，处理器中的 panic 不会影响接收循环
func (b *Bot) dispatch(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorf("处理更新时 panic: %v", r)
		}
	}()

	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	userID := msg.From.ID

	if b.users.IsBanned(userID) {
		b.reply(msg.Chat.ID, "You are banned from using this bot.")
		return
	}

	if _, err := b.users.GetOrCreateSettings(userID, msg.From.UserName, msg.From.FirstName); err != nil {
		b.logger.Errorf("加载用户 %d 设置失败: %v", userID, err)
	}

	switch {
	case msg.IsCommand():
		b.handleCommand(msg)
	case msg.Document != nil:
		b.handleDocument(msg)
	case len(msg.Photo) > 0:
		b.handlePhoto(msg)
	case msg.Text != "":
		b.handleText(msg)
	}
}

// handleText 处理普通文本：视频页链接进入下载向导，
// 其余文本交给等待输入的会话
func (b *Bot) handleText(msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)

	if mxplayer.IsVideoPage(text) {
		b.startWizard(msg, text)
		return
	}

	if session, ok := b.sessions.Get(msg.From.ID); ok && session.State == stateAwaitGofileToken {
		b.handleGofileTokenInput(msg, session)
		return
	}

	b.reply(msg.Chat.ID, "Send me an MX Player video link to start, or use /help to see what I can do.")
}

// isAdmin 检查是否为配置中的管理员
func (b *Bot) isAdmin(userID int64) bool {
	return b.admins[userID]
}

// reply 发送纯文本回复
func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warnf("发送消息失败: %v", err)
	}
}

// replyHTML 发送 HTML 格式回复
func (b *Bot) replyHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warnf("发送消息失败: %v", err)
	}
}
