package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/application"
	"telegram-field-extractor/internal/config"
	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/ports/adapter"
	"telegram-field-extractor/internal/infra/logging"
	"telegram-field-extractor/internal/infra/worker"
)

var (
	_ adapter.Messenger = (*RealTelegramBotAdapter)(nil)
	_ adapter.Fetcher   = (*RealTelegramBotAdapter)(nil)
)

// TaskSubmitter hands work to a bounded pool. Submit blocks while the pool
// is saturated.
type TaskSubmitter interface {
	Submit(ctx context.Context, task worker.Task) error
}

// Translator provides the menu descriptions.
type Translator interface {
	T(key string, args ...interface{}) string
}

// RealTelegramBotAdapter long-polls the Bot API, hands updates to the
// worker pool and implements the outbound ports.
type RealTelegramBotAdapter struct {
	bot          *tgbotapi.BotAPI
	cfg          *config.BotConfig
	pool         TaskSubmitter
	log          *zerolog.Logger
	fileEndpoint string
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, pool TaskSubmitter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return newAdapter(bot, cfg, pool, logger)
}

func newAdapter(bot *tgbotapi.BotAPI, cfg *config.BotConfig, pool TaskSubmitter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if pool == nil {
		return nil, errors.New("worker pool is nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "TelegramBot").Logger()
	l.Info().Str("username", bot.Self.UserName).Int64("id", bot.Self.ID).Msg("telegram bot connected")
	return &RealTelegramBotAdapter{
		bot:          bot,
		cfg:          cfg,
		pool:         pool,
		log:          &l,
		fileEndpoint: tgbotapi.FileEndpoint,
	}, nil
}

// StartPolling receives updates until ctx is done and submits one task per
// event. It returns nil on a clean stop.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context, handler application.EventHandler) error {
	if handler == nil {
		return errors.New("event handler is nil")
	}
	if r.cfg.DropPendingUpdates {
		if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
			r.log.Warn().Err(err).Msg("failed to drop pending updates")
		}
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = r.cfg.PollTimeout
	updates := r.bot.GetUpdatesChan(u)
	defer r.bot.StopReceivingUpdates()
	r.log.Info().Int("timeout", u.Timeout).Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("telegram polling stopping")
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			ev, ok := EventFromUpdate(up)
			if !ok {
				continue
			}
			err := r.pool.Submit(ctx, func(ctx context.Context) error {
				ctx = logging.WithTraceID(ctx, strconv.Itoa(ev.UpdateID))
				return handler.Handle(ctx, ev)
			})
			switch {
			case err == nil:
			case ctx.Err() != nil, errors.Is(err, domain.ErrQueueClosed):
				return nil
			default:
				r.log.Error().Err(err).Int("update_id", up.UpdateID).Msg("failed to submit update")
			}
		}
	}
}

// SetMenuCommands registers the command list shown in the client menu.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context, tr Translator) error {
	cmds := make([]tgbotapi.BotCommand, 0, len(MenuCommands))
	for _, c := range MenuCommands {
		cmds = append(cmds, tgbotapi.BotCommand{Command: c, Description: tr.T("cmd_" + c)})
	}
	if _, err := r.bot.Request(tgbotapi.NewSetMyCommands(cmds...)); err != nil {
		return fmt.Errorf("set my commands: %w", err)
	}
	return nil
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) SendDocument(ctx context.Context, chatID int64, path, fileName, captionHTML string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: fileName, Reader: f})
	doc.Caption = captionHTML
	doc.ParseMode = tgbotapi.ModeHTML
	_, err = r.bot.Send(doc)
	return err
}

func (r *RealTelegramBotAdapter) SendChatAction(ctx context.Context, chatID int64, action adapter.ChatAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Request(tgbotapi.NewChatAction(chatID, string(action)))
	return err
}

// Fetch downloads the file behind fileID into w.
func (r *RealTelegramBotAdapter) Fetch(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	file, err := r.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return 0, classifyAPIError("get_file", err)
	}
	if file.FilePath == "" {
		return 0, domain.InvalidInput("get_file", fmt.Errorf("%w: file has no download path", domain.ErrNotFound))
	}

	url := fmt.Sprintf(r.fileEndpoint, r.bot.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, domain.Internal("download", err)
	}
	resp, err := r.bot.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, domain.Transient("download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, classifyStatus("download", resp.StatusCode, errors.New(resp.Status))
	}
	n, err := io.Copy(w, resp.Body)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, domain.ErrFileTooLarge):
		return n, err
	case ctx.Err() != nil:
		return n, ctx.Err()
	default:
		return n, domain.Transient("download", err)
	}
}

// classifyAPIError maps Bot API failures to processing error kinds.
func classifyAPIError(op string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "too big") {
			return domain.InvalidInput(op, fmt.Errorf("%w: %s", domain.ErrFileTooLarge, apiErr.Message))
		}
		return classifyStatus(op, apiErr.Code, err)
	}
	return domain.Transient(op, err)
}

func classifyStatus(op string, code int, err error) error {
	switch {
	case code == http.StatusTooManyRequests, code >= 500:
		return domain.Transient(op, err)
	case code >= 400:
		return domain.InvalidInput(op, err)
	default:
		return domain.Transient(op, err)
	}
}
