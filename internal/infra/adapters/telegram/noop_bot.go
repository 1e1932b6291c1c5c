package telegram

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/ports/adapter"
	"telegram-field-extractor/internal/infra/logging"
)

var (
	_ adapter.Messenger = (*NoopBotAdapter)(nil)
	_ adapter.Fetcher   = (*NoopBotAdapter)(nil)
)

// NoopBotAdapter implements the outbound ports for local/dev runs.
// It logs messages instead of sending real Telegram messages.
type NoopBotAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "NoopTelegram").Logger()
	return &NoopBotAdapter{log: &l, delay: 100 * time.Millisecond}
}

// wait simulates a little network latency and respects ctx.
func (b *NoopBotAdapter) wait(ctx context.Context) error {
	select {
	case <-time.After(b.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, html string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", html).Msg("send message")
	return nil
}

func (b *NoopBotAdapter) SendDocument(ctx context.Context, chatID int64, path, fileName, captionHTML string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("file", fileName).Str("path", path).Str("caption", captionHTML).Msg("send document")
	return nil
}

func (b *NoopBotAdapter) SendChatAction(ctx context.Context, chatID int64, action adapter.ChatAction) error {
	b.log.Debug().Int64("chat_id", chatID).Str("action", string(action)).Msg("chat action")
	return nil
}

// Fetch has nothing to download from.
func (b *NoopBotAdapter) Fetch(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	b.log.Warn().Str("file_id", fileID).Msg("download requested from noop adapter")
	return 0, domain.InvalidInput("fetch", domain.ErrNotFound)
}
