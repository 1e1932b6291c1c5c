package model

import (
	"fmt"
	"strings"

	"telegram-field-extractor/internal/domain"
)

// EventKind is the closed set of inbound event kinds.
type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventText
	EventDocument
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventDocument:
		return "document"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, error) {
	for _, k := range []EventKind{EventCommand, EventText, EventDocument} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrUnknownEvent, s)
}

// DocumentRef points at a file uploaded to the chat platform.
type DocumentRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Event is one inbound unit from the chat platform. Only the fields that
// belong to Kind are meaningful.
type Event struct {
	Kind         EventKind
	UpdateID     int
	MessageID    int
	ChatID       int64
	SenderID     int64
	Username     string
	LanguageCode string

	// EventCommand
	Command string
	Args    string

	// EventText
	Text string

	// EventDocument
	Document *DocumentRef
}

func NewCommandEvent(chatID, senderID int64, command, args string) Event {
	return Event{
		Kind:     EventCommand,
		ChatID:   chatID,
		SenderID: senderID,
		Command:  strings.ToLower(strings.TrimPrefix(command, "/")),
		Args:     args,
	}
}

func NewTextEvent(chatID, senderID int64, text string) Event {
	return Event{Kind: EventText, ChatID: chatID, SenderID: senderID, Text: text}
}

func NewDocumentEvent(chatID, senderID int64, doc DocumentRef) Event {
	return Event{Kind: EventDocument, ChatID: chatID, SenderID: senderID, Document: &doc}
}

// Validate checks that the event is addressable and carries its variant payload.
func (e Event) Validate() error {
	if e.ChatID == 0 {
		return fmt.Errorf("%w: chat id is required", domain.ErrInvalidArgument)
	}
	switch e.Kind {
	case EventCommand:
		if e.Command == "" {
			return fmt.Errorf("%w: empty command", domain.ErrInvalidArgument)
		}
	case EventText:
	case EventDocument:
		if e.Document == nil || e.Document.FileID == "" {
			return fmt.Errorf("%w: document without file id", domain.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownEvent, e.Kind)
	}
	return nil
}

// MetricLabel is the label used for rate limiting and metrics.
func (e Event) MetricLabel() string {
	if e.Kind == EventCommand {
		return "/" + e.Command
	}
	return e.Kind.String()
}
