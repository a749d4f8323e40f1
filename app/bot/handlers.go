package bot

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"stream-porter/app/model"
	"stream-porter/app/service"
	"stream-porter/app/utils/downloader"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const helpText = `<b>MX Player Downloader</b>

Send me an MX Player video link and I will download it and send the file back to you.

<b>Commands</b>
/queue - show your tasks and their queue positions
/canceltask &lt;id&gt; - cancel a queued task by its ID
/cancelqueue - cancel all your queued tasks
/settings - output format, upload mode, thumbnail, Gofile token
/logout - delete your stored cookies
/help - this message

<b>Cookies</b>
Some videos need your MX Player account. Export cookies with a browser extension (Netscape format) and send the .txt file here.`

// handleCommand 命令分发
func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.replyHTML(msg.Chat.ID, fmt.Sprintf("Hi <b>%s</b>!\n\n", msg.From.FirstName)+helpText)
	case "help":
		b.replyHTML(msg.Chat.ID, helpText)
	case "queue":
		b.handleQueue(msg)
	case "canceltask":
		b.handleCancelTask(msg)
	case "cancelqueue":
		b.handleCancelQueue(msg)
	case "settings":
		b.handleSettings(msg)
	case "logout":
		b.handleLogout(msg)
	case "stats":
		b.requireAdmin(msg, b.handleStats)
	case "ban":
		b.requireAdmin(msg, b.handleBan)
	case "unban":
		b.requireAdmin(msg, b.handleUnban)
	case "banlist":
		b.requireAdmin(msg, b.handleBanList)
	case "broadcast":
		b.requireAdmin(msg, b.handleBroadcast)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

// requireAdmin 管理员命令的统一入口
func (b *Bot) requireAdmin(msg *tgbotapi.Message, handler func(*tgbotapi.Message)) {
	if !b.isAdmin(msg.From.ID) {
		b.reply(msg.Chat.ID, "This command is for admins only.")
		return
	}
	handler(msg)
}

// handleQueue 展示用户当前任务和全局负载
func (b *Bot) handleQueue(msg *tgbotapi.Message) {
	views := b.queue.UserStatus(msg.From.ID)
	stats := b.queue.GlobalStats()
	b.replyHTML(msg.Chat.ID, queueStatusText(views, stats))
}

// queueStatusText /queue 回复正文，用户自己的任务加全局活跃与排队数
func queueStatusText(views []service.UserTaskView, stats service.QueueStats) string {
	var sb strings.Builder
	if len(views) == 0 {
		sb.WriteString("You have no active or queued tasks.\n")
	} else {
		sb.WriteString("<b>Your tasks</b>\n\n")
		for _, view := range views {
			task := view.Task
			switch task.Status {
			case model.TaskStatusPending:
				fmt.Fprintf(&sb, "⏳ <code>%s</code> %s - queued (position %d)\n", task.ID, task.Request.Title, view.Position)
			case model.TaskStatusDownloading:
				fmt.Fprintf(&sb, "⏬ <code>%s</code> %s - downloading\n", task.ID, task.Request.Title)
			case model.TaskStatusUploading:
				fmt.Fprintf(&sb, "⏫ <code>%s</code> %s - uploading\n", task.ID, task.Request.Title)
			}
		}
	}
	fmt.Fprintf(&sb, "\nGlobal: %d active / %d queued", stats.Active, stats.Pending)
	return sb.String()
}

// handleLogout 删除用户存储的 cookies
func (b *Bot) handleLogout(msg *tgbotapi.Message) {
	removed, err := removeUserCookies(b.cfg.Download.CookiesPath(msg.From.ID))
	if err != nil {
		b.logger.Errorf("删除用户 %d cookies 失败: %v", msg.From.ID, err)
		b.reply(msg.Chat.ID, "Failed to remove your cookies, please try again.")
		return
	}
	if !removed {
		b.reply(msg.Chat.ID, "You don't have any cookies stored.")
		return
	}
	b.logger.Infof("用户 %d 删除了 cookies", msg.From.ID)
	b.reply(msg.Chat.ID, "✅ Cookies removed. Future downloads will run without your account.")
}

// removeUserCookies 删除 cookies 文件，返回文件先前是否存在
func removeUserCookies(path string) (bool, error) {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// handleCancelTask 取消指定任务。先做格式校验再查队列，
// 避免把格式错误提示成任务不存在。
func (b *Bot) handleCancelTask(msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		b.reply(msg.Chat.ID, "Usage: /canceltask DL-XXXX")
		return
	}

	id := strings.ToUpper(arg)
	if !validTaskIDFormat(id) {
		b.reply(msg.Chat.ID, "That doesn't look like a task ID. It should be like DL-A3X9.")
		return
	}

	task, err := b.queue.Cancel(id, msg.From.ID)
	switch {
	case err == nil:
		b.replyHTML(msg.Chat.ID, fmt.Sprintf("🚫 Task <code>%s</code> cancelled.", task.ID))
	case errors.Is(err, service.ErrTaskNotFound):
		b.reply(msg.Chat.ID, fmt.Sprintf("No task found with ID %s.", id))
	case errors.Is(err, service.ErrNotTaskOwner):
		b.reply(msg.Chat.ID, "That task belongs to another user.")
	case errors.Is(err, service.ErrTaskActive):
		b.replyHTML(msg.Chat.ID, fmt.Sprintf("Task <code>%s</code> is already %s and can't be cancelled.", task.ID, task.Status))
	case errors.Is(err, service.ErrTaskFinished):
		b.replyHTML(msg.Chat.ID, fmt.Sprintf("Task <code>%s</code> has already finished (%s).", task.ID, task.Status))
	default:
		b.reply(msg.Chat.ID, "Could not cancel the task, please try again.")
	}
}

// validTaskIDFormat 任务 ID 的格式预检，查队列前先拦住明显的输入错误
func validTaskIDFormat(id string) bool {
	if !strings.HasPrefix(id, "DL-") || len(id) != 7 {
		return false
	}
	for _, c := range id[3:] {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// handleCancelQueue 取消用户全部排队任务
func (b *Bot) handleCancelQueue(msg *tgbotapi.Message) {
	cancelled := b.queue.CancelUserPending(msg.From.ID)
	if cancelled == 0 {
		b.reply(msg.Chat.ID, "You have no queued tasks to cancel.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("🚫 Cancelled %d queued task(s). Running tasks are not affected.", cancelled))
}

// handleStats 管理员的全局统计
func (b *Bot) handleStats(msg *tgbotapi.Message) {
	stats := b.queue.GlobalStats()
	userCount, err := b.users.UserCount()
	if err != nil {
		b.logger.Errorf("统计用户数失败: %v", err)
	}

	text := fmt.Sprintf(`<b>Queue stats</b>
Pending: %d
Active: %d / %d (per user %d)
Completed: %d
Failed: %d
Cancelled: %d

Registered users: %d`,
		stats.Pending, stats.Active, stats.GlobalLimit, stats.PerUserLimit,
		stats.Completed, stats.Failed, stats.Cancelled, userCount)
	b.replyHTML(msg.Chat.ID, text)
}

// handleBan 封禁用户
func (b *Bot) handleBan(msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		b.reply(msg.Chat.ID, "Usage: /ban <user_id> [reason]")
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Invalid user ID.")
		return
	}
	if b.isAdmin(userID) {
		b.reply(msg.Chat.ID, "You can't ban an admin.")
		return
	}

	reason := strings.Join(args[1:], " ")
	if err := b.users.Ban(userID, reason, msg.From.ID); err != nil {
		b.reply(msg.Chat.ID, fmt.Sprintf("User %d is already banned.", userID))
		return
	}

	// 同时清掉该用户的排队任务
	cancelled := b.queue.CancelUserPending(userID)
	b.reply(msg.Chat.ID, fmt.Sprintf("User %d banned, %d queued task(s) removed.", userID, cancelled))
}

// handleUnban 解除封禁
func (b *Bot) handleUnban(msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	userID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Usage: /unban <user_id>")
		return
	}
	if err := b.users.Unban(userID); err != nil {
		b.reply(msg.Chat.ID, fmt.Sprintf("User %d is not in the ban list.", userID))
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("User %d unbanned.", userID))
}

// handleBanList 展示封禁名单
func (b *Bot) handleBanList(msg *tgbotapi.Message) {
	banned, err := b.users.BanList()
	if err != nil {
		b.logger.Errorf("查询封禁名单失败: %v", err)
		b.reply(msg.Chat.ID, "Failed to load the ban list.")
		return
	}
	if len(banned) == 0 {
		b.reply(msg.Chat.ID, "The ban list is empty.")
		return
	}

	var sb strings.Builder
	sb.WriteString("<b>Banned users</b>\n\n")
	for _, entry := range banned {
		fmt.Fprintf(&sb, "<code>%d</code>", entry.UserID)
		if entry.Reason != "" {
			fmt.Fprintf(&sb, " - %s", entry.Reason)
		}
		sb.WriteString("\n")
	}
	b.replyHTML(msg.Chat.ID, sb.String())
}

// handleBroadcast 向全部注册用户广播消息
func (b *Bot) handleBroadcast(msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		b.reply(msg.Chat.ID, "Usage: /broadcast <message>")
		return
	}

	ids, err := b.users.AllUserIDs()
	if err != nil {
		b.logger.Errorf("查询用户列表失败: %v", err)
		b.reply(msg.Chat.ID, "Failed to load the user list.")
		return
	}

	go func() {
		sent := 0
		for _, id := range ids {
			m := tgbotapi.NewMessage(id, text)
			if _, err := b.api.Send(m); err == nil {
				sent++
			}
		}
		b.logger.Infof("广播完成: %d/%d", sent, len(ids))
		b.reply(msg.Chat.ID, fmt.Sprintf("Broadcast delivered to %d of %d users.", sent, len(ids)))
	}()
}

// handleDocument 处理文件上传，目前只接受 Netscape cookies 文件
func (b *Bot) handleDocument(msg *tgbotapi.Message) {
	doc := msg.Document
	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".txt") {
		b.reply(msg.Chat.ID, "Send your cookies as a .txt file in Netscape format.")
		return
	}
	if doc.FileSize > 1024*1024 {
		b.reply(msg.Chat.ID, "That file is too large to be a cookies file.")
		return
	}

	url, err := b.FileURL(doc.FileID)
	if err != nil {
		b.logger.Errorf("解析 cookies 文件地址失败: %v", err)
		b.reply(msg.Chat.ID, "Failed to fetch the file, please try again.")
		return
	}

	savePath := b.cfg.Download.CookiesPath(msg.From.ID)
	if err := downloader.Fetch(url, savePath, nil); err != nil {
		b.logger.Errorf("保存用户 %d cookies 失败: %v", msg.From.ID, err)
		b.reply(msg.Chat.ID, "Failed to save the cookies file, please try again.")
		return
	}

	b.logger.Infof("用户 %d 更新了 cookies", msg.From.ID)
	b.reply(msg.Chat.ID, "✅ Cookies saved. They will be used for your next downloads.")
}

// handlePhoto 处理图片，仅在等待设置缩略图时生效
func (b *Bot) handlePhoto(msg *tgbotapi.Message) {
	session, ok := b.sessions.Get(msg.From.ID)
	if !ok || session.State != stateAwaitThumbnail {
		b.reply(msg.Chat.ID, "If you want to use this photo as a thumbnail, open /settings first.")
		return
	}

	// 取最大尺寸的一张
	photo := msg.Photo[len(msg.Photo)-1]
	if err := b.users.UpdateThumbnail(msg.From.ID, photo.FileID); err != nil {
		b.logger.Errorf("保存用户 %d 缩略图失败: %v", msg.From.ID, err)
		b.reply(msg.Chat.ID, "Failed to save the thumbnail, please try again.")
		return
	}
	b.sessions.Delete(msg.From.ID)
	b.reply(msg.Chat.ID, "✅ Thumbnail saved. It will be used for your next uploads.")
}

// handleGofileTokenInput 处理 Gofile token 输入
func (b *Bot) handleGofileTokenInput(msg *tgbotapi.Message, session *wizardSession) {
	token := strings.TrimSpace(msg.Text)
	if strings.EqualFold(token, "clear") {
		token = ""
	}
	if err := b.users.UpdateGofileToken(msg.From.ID, token); err != nil {
		b.logger.Errorf("保存用户 %d Gofile token 失败: %v", msg.From.ID, err)
		b.reply(msg.Chat.ID, "Failed to save the token, please try again.")
		return
	}
	b.sessions.Delete(msg.From.ID)
	if token == "" {
		b.reply(msg.Chat.ID, "✅ Gofile token cleared. Large files will be uploaded anonymously.")
		return
	}
	b.reply(msg.Chat.ID, "✅ Gofile token saved. Large files will be uploaded to your account.")
}
