package application

import (
	"context"

	"telegram-field-extractor/internal/domain/model"
)

// EventHandler is the surface the transport adapters need from the
// application layer.
type EventHandler interface {
	Handle(ctx context.Context, ev model.Event) error
}

var _ EventHandler = (*Dispatcher)(nil)
