package bot

import (
	"fmt"

	"stream-porter/app/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleSettings 展示设置菜单
func (b *Bot) handleSettings(msg *tgbotapi.Message) {
	settings, err := b.users.GetOrCreateSettings(msg.From.ID, msg.From.UserName, msg.From.FirstName)
	if err != nil {
		b.logger.Errorf("加载用户 %d 设置失败: %v", msg.From.ID, err)
		b.reply(msg.Chat.ID, "Failed to load your settings, please try again.")
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, settingsText(settings))
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyMarkup = settingsKeyboard(settings)
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Warnf("发送设置菜单失败: %v", err)
	}
}

// settingsText 设置菜单正文
func settingsText(settings *model.UserSettings) string {
	thumb := "default (video cover)"
	if settings.ThumbFileID != "" {
		thumb = "custom"
	}
	gofileState := "not set (anonymous uploads)"
	if settings.GofileToken != "" {
		gofileState = "set"
	}
	return fmt.Sprintf(`⚙️ <b>Settings</b>

Output format: <b>%s</b>
Upload as: <b>%s</b>
Thumbnail: <b>%s</b>
Gofile token: <b>%s</b>`,
		settings.OutputFormat, settings.UploadMode, thumb, gofileState)
}

// settingsKeyboard 设置菜单键盘，按钮文案展示切换后的目标值
func settingsKeyboard(settings *model.UserSettings) tgbotapi.InlineKeyboardMarkup {
	otherFormat := model.OutputFormatMKV
	if settings.OutputFormat == model.OutputFormatMKV {
		otherFormat = model.OutputFormatMP4
	}
	otherMode := model.UploadModeDocument
	if settings.UploadMode == model.UploadModeDocument {
		otherMode = model.UploadModeVideo
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Format → "+otherFormat, "set_format:"+otherFormat),
			tgbotapi.NewInlineKeyboardButtonData("Upload → "+otherMode, "set_mode:"+otherMode),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Set thumbnail", "set_thumb"),
			tgbotapi.NewInlineKeyboardButtonData("Clear thumbnail", "set_thumb_clear"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Set Gofile token", "set_gofile"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Close", "set_close"),
		),
	)
}

// handleSettingsCallback 处理设置菜单的按钮回调
func (b *Bot) handleSettingsCallback(cq *tgbotapi.CallbackQuery) {
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID

	switch data := cq.Data; {
	case data == "set_close":
		del := tgbotapi.NewDeleteMessage(chatID, messageID)
		if _, err := b.api.Request(del); err != nil {
			b.logger.Debugf("删除设置菜单失败: %v", err)
		}
		return

	case data == "set_thumb":
		session, _ := b.sessions.Get(userID)
		if session == nil {
			session = &wizardSession{}
		}
		session.State = stateAwaitThumbnail
		b.sessions.Put(userID, session)
		b.reply(chatID, "Send me a photo to use as the thumbnail for your uploads.")
		return

	case data == "set_thumb_clear":
		if err := b.users.UpdateThumbnail(userID, ""); err != nil {
			b.logger.Errorf("清除用户 %d 缩略图失败: %v", userID, err)
			return
		}

	case data == "set_gofile":
		session, _ := b.sessions.Get(userID)
		if session == nil {
			session = &wizardSession{}
		}
		session.State = stateAwaitGofileToken
		b.sessions.Put(userID, session)
		b.reply(chatID, "Send me your Gofile API token, or \"clear\" to remove it.")
		return

	case data == "set_format:"+model.OutputFormatMP4, data == "set_format:"+model.OutputFormatMKV:
		format := data[len("set_format:"):]
		if err := b.users.UpdateOutputFormat(userID, format); err != nil {
			b.logger.Errorf("更新用户 %d 输出容器失败: %v", userID, err)
			return
		}

	case data == "set_mode:"+model.UploadModeVideo, data == "set_mode:"+model.UploadModeDocument:
		mode := data[len("set_mode:"):]
		if err := b.users.UpdateUploadMode(userID, mode); err != nil {
			b.logger.Errorf("更新用户 %d 上传方式失败: %v", userID, err)
			return
		}

	default:
		return
	}

	// 切换类操作刷新菜单
	settings, err := b.users.GetOrCreateSettings(userID, "", "")
	if err != nil {
		b.logger.Errorf("加载用户 %d 设置失败: %v", userID, err)
		return
	}
	b.editHTMLWithKeyboard(chatID, messageID, settingsText(settings), settingsKeyboard(settings))
}
