package memory

import (
	"context"
	"sync"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/domain/ports/repository"
)

var _ repository.RequestLogRepository = (*RequestLog)(nil)

// RequestLog keeps the most recent finished requests in a ring buffer.
// Stats only cover what is still in the buffer.
type RequestLog struct {
	mu   sync.RWMutex
	buf  []model.Request
	next int
	full bool
	pos  map[string]int
}

func NewRequestLog(capacity int) *RequestLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RequestLog{buf: make([]model.Request, capacity), pos: map[string]int{}}
}

func (l *RequestLog) Save(ctx context.Context, req *model.Request) error {
	if req == nil {
		return domain.ErrInvalidArgument
	}
	cp := *req
	if req.Payload != nil {
		doc := *req.Payload
		cp.Payload = &doc
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.pos[req.ID]; ok {
		l.buf[i] = cp
		return nil
	}
	if l.full {
		delete(l.pos, l.buf[l.next].ID)
	}
	l.buf[l.next] = cp
	l.pos[req.ID] = l.next
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	return nil
}

// ListRecent returns up to limit requests, newest first.
func (l *RequestLog) ListRecent(ctx context.Context, limit int) ([]*model.Request, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := l.len()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*model.Request, 0, limit)
	for i := 1; i <= limit; i++ {
		r := l.buf[(l.next-i+len(l.buf))%len(l.buf)]
		out = append(out, &r)
	}
	return out, nil
}

func (l *RequestLog) Stats(ctx context.Context) (*repository.RequestStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := &repository.RequestStats{ByStatus: map[string]int64{}}
	for i := 0; i < l.len(); i++ {
		r := l.buf[i]
		st.Total++
		st.ByStatus[string(r.Status)]++
		st.Extracted += int64(r.Count)
	}
	return st, nil
}

func (l *RequestLog) len() int {
	if l.full {
		return len(l.buf)
	}
	return l.next
}
