package adapter

import (
	"context"
	"fmt"
	"io"
	"time"
)

// ChatAction is a transient status shown to the user while we work.
type ChatAction string

const (
	ActionUploadDocument ChatAction = "upload_document"
)

// Messenger is the outbound side of the chat platform.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, html string) error
	SendDocument(ctx context.Context, chatID int64, path, fileName, captionHTML string) error
	SendChatAction(ctx context.Context, chatID int64, action ChatAction) error
}

// Fetcher downloads an uploaded file into w and returns the byte count.
type Fetcher interface {
	Fetch(ctx context.Context, fileID string, w io.Writer) (int64, error)
}

// RateLimiter decides whether key may proceed within window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimitKey is the limiter key for one user and one kind of action.
func RateLimitKey(userID int64, action string) string {
	return fmt.Sprintf("rate_limit:%d:%s", userID, action)
}
