package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"telegram-field-extractor/internal/domain"
)

type RequestStatus string

const (
	RequestReceived   RequestStatus = "received"
	RequestStaged     RequestStatus = "staged"
	RequestProcessing RequestStatus = "processing"
	RequestCompleted  RequestStatus = "completed"
	RequestFailed     RequestStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestCompleted || s == RequestFailed
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestReceived:   {RequestStaged, RequestProcessing, RequestFailed},
	RequestStaged:     {RequestProcessing, RequestFailed},
	RequestProcessing: {RequestCompleted, RequestFailed},
}

// Request is the lifecycle record of one inbound event.
type Request struct {
	ID         string
	UpdateID   int
	MessageID  int
	ChatID     int64
	SenderID   int64
	Username   string
	Kind       EventKind
	Command    string
	Payload    *DocumentRef
	Status     RequestStatus
	Attempts   int
	LastError  string
	ErrorKind  domain.ErrorKind
	Count      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

// NewRequest builds a received Request for ev.
func NewRequest(ev Event) *Request {
	now := time.Now()
	r := &Request{
		ID:        uuid.NewString(),
		UpdateID:  ev.UpdateID,
		MessageID: ev.MessageID,
		ChatID:    ev.ChatID,
		SenderID:  ev.SenderID,
		Username:  ev.Username,
		Kind:      ev.Kind,
		Command:   ev.Command,
		Status:    RequestReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ev.Document != nil {
		doc := *ev.Document
		r.Payload = &doc
	}
	return r
}

// Advance moves the request to the next status.
func (r *Request) Advance(to RequestStatus) error {
	for _, allowed := range requestTransitions[r.Status] {
		if allowed == to {
			now := time.Now()
			r.Status = to
			r.UpdatedAt = now
			if to.IsTerminal() {
				r.FinishedAt = &now
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, r.Status, to)
}

// Complete finalizes the request with the result's outcome.
func (r *Request) Complete(res *Result) error {
	if res != nil {
		r.Count = res.Count
	}
	if r.Status == RequestReceived {
		if err := r.Advance(RequestProcessing); err != nil {
			return err
		}
	}
	return r.Advance(RequestCompleted)
}

// Fail finalizes the request with err.
func (r *Request) Fail(err error) error {
	if err != nil {
		r.LastError = err.Error()
		r.ErrorKind = domain.KindOf(err)
	}
	return r.Advance(RequestFailed)
}

// Duration is the time between creation and finalization.
func (r *Request) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.CreatedAt)
	}
	return r.FinishedAt.Sub(r.CreatedAt)
}
