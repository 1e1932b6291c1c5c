package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-field-extractor/internal/domain/model"
)

// MenuCommands are the commands registered in the client menu.
var MenuCommands = []string{"start", "help", "settings", "set_index", "set_delimiter"}

// EventFromUpdate converts a Bot API update. Any message that is neither a
// document nor a command becomes a text event (stickers, photos, voice) so
// it still gets the upload hint. Only updates without a message or chat are
// reported with ok=false.
func EventFromUpdate(up tgbotapi.Update) (model.Event, bool) {
	msg := up.Message
	if msg == nil || msg.Chat == nil {
		return model.Event{}, false
	}

	var ev model.Event
	switch {
	case msg.Document != nil:
		ev = model.NewDocumentEvent(msg.Chat.ID, 0, model.DocumentRef{
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			Size:     int64(msg.Document.FileSize),
		})
	case msg.IsCommand():
		ev = model.NewCommandEvent(msg.Chat.ID, 0, msg.Command(), msg.CommandArguments())
	case msg.Text != "":
		ev = model.NewTextEvent(msg.Chat.ID, 0, msg.Text)
	default:
		ev = model.NewTextEvent(msg.Chat.ID, 0, msg.Caption)
	}

	ev.UpdateID = up.UpdateID
	ev.MessageID = msg.MessageID
	ev.SenderID = msg.Chat.ID
	if msg.From != nil {
		ev.SenderID = msg.From.ID
		ev.Username = msg.From.UserName
		ev.LanguageCode = msg.From.LanguageCode
	}
	return ev, true
}
