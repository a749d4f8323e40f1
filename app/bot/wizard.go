package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stream-porter/app/model"
	"stream-porter/app/utils/pathhelper"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// startWizard 解析视频页并让用户选择画质
func (b *Bot) startWizard(msg *tgbotapi.Message, pageURL string) {
	status := tgbotapi.NewMessage(msg.Chat.ID, "🔍 Fetching video info...")
	statusMsg, err := b.api.Send(status)
	if err != nil {
		b.logger.Warnf("发送状态消息失败: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	meta, err := b.scraper.FetchMetadata(ctx, pageURL)
	if err != nil {
		b.logger.Warnf("用户 %d 页面解析失败: %v", msg.From.ID, err)
		b.editText(msg.Chat.ID, statusMsg.MessageID, "❌ Couldn't read that page. Make sure the link points to a video, or try again later.")
		return
	}

	stream, err := b.scraper.FetchStreamInfo(ctx, meta.ManifestURL)
	if err != nil {
		b.logger.Warnf("用户 %d 播放列表解析失败: %v", msg.From.ID, err)
		b.editText(msg.Chat.ID, statusMsg.MessageID, "❌ Couldn't read the video stream. The video may be unavailable in your region or need cookies.")
		return
	}

	session := &wizardSession{
		State:     stateChooseResolution,
		Meta:      meta,
		Stream:    stream,
		MessageID: statusMsg.MessageID,
	}
	b.sessions.Put(msg.From.ID, session)

	b.editHTMLWithKeyboard(msg.Chat.ID, statusMsg.MessageID,
		b.wizardTitle(session)+"\n\nChoose a quality:", resolutionKeyboard(stream.Resolutions))
}

// wizardTitle 向导消息的标题部分
func (b *Bot) wizardTitle(session *wizardSession) string {
	meta := session.Meta
	title := fmt.Sprintf("🎬 <b>%s</b>", meta.Title)
	if !meta.IsMovie {
		title += "\n" + pathhelper.EpisodeTag(meta.Season, meta.Episode)
		if meta.EpisodeTitle != "" {
			title += " " + meta.EpisodeTitle
		}
	}
	if len(session.Stream.AudioTracks) > 1 {
		title += fmt.Sprintf("\nAudio: %s", strings.Join(session.Stream.AudioTracks, ", "))
	}
	return title
}

// resolutionKeyboard 画质选择键盘，每行两个选项
func resolutionKeyboard(resolutions []int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, h := range resolutions {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%dp", h), fmt.Sprintf("res:%d", h)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⭐ Best", "res:best"),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "dl_cancel"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// confirmKeyboard 确认开始下载的键盘
func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Start", "dl_start"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Back", "dl_back"),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "dl_cancel"),
		),
	)
}

// handleCallback 处理内联键盘回调
func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			b.logger.Debugf("应答回调失败: %v", err)
		}
	}()

	if cq.Message == nil || cq.From == nil {
		return
	}
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	if b.users.IsBanned(userID) {
		return
	}

	data := cq.Data
	switch {
	case strings.HasPrefix(data, "res:"):
		b.handleResolutionChoice(userID, chatID, strings.TrimPrefix(data, "res:"))
	case data == "dl_start":
		b.handleStartDownload(cq)
	case data == "dl_back":
		b.handleBackToResolutions(userID, chatID)
	case data == "dl_cancel":
		b.handleWizardCancel(userID, chatID, cq.Message.MessageID)
	case strings.HasPrefix(data, "set_"):
		b.handleSettingsCallback(cq)
	}
}

// handleResolutionChoice 记录画质选择并进入确认页
func (b *Bot) handleResolutionChoice(userID, chatID int64, choice string) {
	session, ok := b.sessions.Get(userID)
	if !ok {
		b.reply(chatID, "This menu has expired, send the link again.")
		return
	}

	session.Resolution = choice
	session.State = stateConfirm
	b.sessions.Put(userID, session)

	settings, err := b.users.GetOrCreateSettings(userID, "", "")
	if err != nil {
		b.logger.Errorf("加载用户 %d 设置失败: %v", userID, err)
		return
	}

	quality := choice + "p"
	if choice == "best" {
		quality = "Best available"
	}
	text := fmt.Sprintf("%s\n\nQuality: <b>%s</b>\nFormat: <b>%s</b>\nUpload as: <b>%s</b>\n\nStart the download?",
		b.wizardTitle(session), quality, settings.OutputFormat, settings.UploadMode)
	b.editHTMLWithKeyboard(chatID, session.MessageID, text, confirmKeyboard())
}

// handleStartDownload 入队任务
func (b *Bot) handleStartDownload(cq *tgbotapi.CallbackQuery) {
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	session, ok := b.sessions.Get(userID)
	if !ok || session.State != stateConfirm {
		b.reply(chatID, "This menu has expired, send the link again.")
		return
	}

	settings, err := b.users.GetOrCreateSettings(userID, cq.From.UserName, cq.From.FirstName)
	if err != nil {
		b.logger.Errorf("加载用户 %d 设置失败: %v", userID, err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}

	meta := session.Meta
	req := model.DownloadRequest{
		Title:        meta.Title,
		EpisodeTitle: meta.EpisodeTitle,
		Season:       meta.Season,
		Episode:      meta.Episode,
		IsMovie:      meta.IsMovie,
		ManifestURL:  meta.ManifestURL,
		ImageURL:     meta.ImageURL,
		Duration:     meta.Duration,
		Resolution:   session.Resolution,
		AudioCount:   session.Stream.AudioCount(),
		OutputFormat: settings.OutputFormat,
		UploadMode:   settings.UploadMode,
		GofileToken:  settings.GofileToken,
		ThumbFileID:  settings.ThumbFileID,
	}
	if b.cfg.Download.HasCookies(userID) {
		req.CookiesPath = b.cfg.Download.CookiesPath(userID)
	}

	task, position, err := b.queue.Add(userID, chatID, cq.From.UserName, req)
	if err != nil {
		b.logger.Errorf("用户 %d 入队失败: %v", userID, err)
		b.reply(chatID, "The queue is not accepting tasks right now, please try again later.")
		return
	}
	b.sessions.Delete(userID)

	text := fmt.Sprintf("✅ <b>%s</b> queued.\n%s\nPosition in queue: %d\n\nUse /queue to check progress or /canceltask %s to cancel.",
		task.ID, meta.Title, position, task.ID)
	b.editHTML(chatID, session.MessageID, text)
}

// handleBackToResolutions 返回画质选择页
func (b *Bot) handleBackToResolutions(userID, chatID int64) {
	session, ok := b.sessions.Get(userID)
	if !ok {
		b.reply(chatID, "This menu has expired, send the link again.")
		return
	}

	session.State = stateChooseResolution
	session.Resolution = ""
	b.sessions.Put(userID, session)

	b.editHTMLWithKeyboard(chatID, session.MessageID,
		b.wizardTitle(session)+"\n\nChoose a quality:", resolutionKeyboard(session.Stream.Resolutions))
}

// handleWizardCancel 放弃本次下载向导
func (b *Bot) handleWizardCancel(userID, chatID int64, messageID int) {
	b.sessions.Delete(userID)
	b.editText(chatID, messageID, "Download cancelled.")
}

// editText 编辑为纯文本
func (b *Bot) editText(chatID int64, messageID int, text string) {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warnf("编辑消息失败: %v", err)
	}
}

// editHTML 编辑为 HTML 文本
func (b *Bot) editHTML(chatID int64, messageID int, text string) {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warnf("编辑消息失败: %v", err)
	}
}

// editHTMLWithKeyboard 编辑为带内联键盘的 HTML 文本
func (b *Bot) editHTMLWithKeyboard(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warnf("编辑消息失败: %v", err)
	}
}
