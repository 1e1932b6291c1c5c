package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/domain/ports/repository"
)

var (
	_ repository.RequestLogRepository = (*RequestLogRepo)(nil)
	_ repository.RequestLogPurger     = (*RequestLogRepo)(nil)
)

// RequestLogRepo stores finished requests in extraction_requests.
type RequestLogRepo struct {
	db executor
}

func NewRequestLogRepo(pool *pgxpool.Pool) *RequestLogRepo {
	return &RequestLogRepo{db: pool}
}

// WithTx returns a repo bound to tx.
func (r *RequestLogRepo) WithTx(tx pgx.Tx) *RequestLogRepo {
	return &RequestLogRepo{db: tx}
}

func (r *RequestLogRepo) Save(ctx context.Context, req *model.Request) error {
	const q = `
INSERT INTO extraction_requests (
    id, update_id, message_id, chat_id, sender_id, kind, command,
    file_id, file_name, file_size, status, error_kind, last_error,
    attempts, extracted, created_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
    status      = EXCLUDED.status,
    error_kind  = EXCLUDED.error_kind,
    last_error  = EXCLUDED.last_error,
    attempts    = EXCLUDED.attempts,
    extracted   = EXCLUDED.extracted,
    finished_at = EXCLUDED.finished_at`

	var fileID, fileName string
	var fileSize int64
	if req.Payload != nil {
		fileID, fileName, fileSize = req.Payload.FileID, req.Payload.FileName, req.Payload.Size
	}
	_, err := r.db.Exec(ctx, q,
		req.ID, req.UpdateID, req.MessageID, req.ChatID, req.SenderID, req.Kind.String(), req.Command,
		fileID, fileName, fileSize, string(req.Status), string(req.ErrorKind), req.LastError,
		req.Attempts, req.Count, req.CreatedAt, req.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save request log: %w", err)
	}
	return nil
}

func (r *RequestLogRepo) ListRecent(ctx context.Context, limit int) ([]*model.Request, error) {
	const q = `
SELECT id, update_id, message_id, chat_id, sender_id, kind, command,
       file_id, file_name, file_size, status, error_kind, last_error,
       attempts, extracted, created_at, finished_at
FROM extraction_requests
ORDER BY created_at DESC
LIMIT $1`
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list request log: %w", err)
	}
	defer rows.Close()

	var out []*model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list request log: %w", err)
	}
	return out, nil
}

func (r *RequestLogRepo) Stats(ctx context.Context) (*repository.RequestStats, error) {
	const q = `
SELECT status, COUNT(*), COALESCE(SUM(extracted), 0)
FROM extraction_requests
GROUP BY status`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("request stats: %w", err)
	}
	defer rows.Close()

	st := &repository.RequestStats{ByStatus: map[string]int64{}}
	for rows.Next() {
		var status string
		var n, extracted int64
		if err := rows.Scan(&status, &n, &extracted); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		st.ByStatus[status] = n
		st.Total += n
		st.Extracted += extracted
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("request stats: %w", err)
	}
	return st, nil
}

// Purge deletes rows created before the cutoff and reports how many.
func (r *RequestLogRepo) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM extraction_requests WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge request log: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRequest(row pgx.Row) (*model.Request, error) {
	var (
		req                     model.Request
		kind, status, errorKind string
		fileID, fileName        string
		fileSize                int64
	)
	err := row.Scan(
		&req.ID, &req.UpdateID, &req.MessageID, &req.ChatID, &req.SenderID, &kind, &req.Command,
		&fileID, &fileName, &fileSize, &status, &errorKind, &req.LastError,
		&req.Attempts, &req.Count, &req.CreatedAt, &req.FinishedAt,
	)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if req.Kind, err = model.ParseEventKind(kind); err != nil {
		return nil, err
	}
	req.Status = model.RequestStatus(status)
	req.ErrorKind = domain.ErrorKind(errorKind)
	req.UpdatedAt = req.CreatedAt
	if req.FinishedAt != nil {
		req.UpdatedAt = *req.FinishedAt
	}
	if fileID != "" {
		req.Payload = &model.DocumentRef{FileID: fileID, FileName: fileName, Size: fileSize}
	}
	return &req, nil
}
