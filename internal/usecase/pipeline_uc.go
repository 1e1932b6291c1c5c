package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/domain/ports/adapter"
	"telegram-field-extractor/internal/infra/logging"
	"telegram-field-extractor/internal/infra/metrics"
	"telegram-field-extractor/internal/infra/staging"
)

// Compile-time check
var _ PipelineUseCase = (*pipelineUC)(nil)

const sniffLen = 8 << 10

// ArtifactScope hands out artifacts owned by one request.
type ArtifactScope interface {
	Acquire(role staging.Role) (*staging.Artifact, error)
}

type PipelineConfig struct {
	MaxFileBytes   int64
	MaxLineBytes   int
	MaxAttempts    int
	RetryBackoff   time.Duration
	AttemptTimeout time.Duration
}

// PipelineUseCase turns an uploaded document into an extraction result.
type PipelineUseCase interface {
	// CheckDocument rejects uploads that should never be staged.
	CheckDocument(doc *model.DocumentRef) error
	// Stage downloads the request's payload into a fresh input artifact.
	Stage(ctx context.Context, req *model.Request, scope ArtifactScope) (*staging.Artifact, error)
	// Process extracts the configured field from in into a new output
	// artifact. in is only read.
	Process(ctx context.Context, req *model.Request, scope ArtifactScope, in *staging.Artifact, s model.Settings) (*model.Result, error)
}

type pipelineUC struct {
	fetcher adapter.Fetcher
	cfg     PipelineConfig
	log     *zerolog.Logger
}

func NewPipelineUseCase(fetcher adapter.Fetcher, cfg PipelineConfig, logger *zerolog.Logger) *pipelineUC {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = time.Minute
	}
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "Pipeline").Logger()
	return &pipelineUC{fetcher: fetcher, cfg: cfg, log: &l}
}

func (p *pipelineUC) policy() RetryPolicy {
	return RetryPolicy{MaxAttempts: p.cfg.MaxAttempts, Backoff: p.cfg.RetryBackoff}
}

func (p *pipelineUC) CheckDocument(doc *model.DocumentRef) error {
	if doc == nil || doc.FileID == "" {
		return domain.InvalidInput("check", fmt.Errorf("%w: missing document", domain.ErrInvalidArgument))
	}
	if !strings.EqualFold(filepath.Ext(doc.FileName), ".txt") {
		return domain.InvalidInput("check", domain.ErrUnsupportedFormat)
	}
	if p.cfg.MaxFileBytes > 0 && doc.Size > p.cfg.MaxFileBytes {
		return domain.InvalidInput("check", domain.ErrFileTooLarge)
	}
	return nil
}

func (p *pipelineUC) Stage(ctx context.Context, req *model.Request, scope ArtifactScope) (*staging.Artifact, error) {
	defer logging.TraceDuration(p.log, "Pipeline.Stage")()

	if err := p.CheckDocument(req.Payload); err != nil {
		return nil, err
	}
	in, err := scope.Acquire(staging.RoleInput)
	if err != nil {
		return nil, domain.Internal("stage", err)
	}

	err = withRetry(ctx, p.policy(), "fetch", p.log, func() { req.Attempts++ }, func(ctx context.Context) error {
		return p.fetchOnce(ctx, req.Payload.FileID, in)
	})
	if err != nil {
		return nil, err
	}

	if err := sniffText(in); err != nil {
		return nil, err
	}
	if err := req.Advance(model.RequestStaged); err != nil {
		return nil, domain.Internal("stage", err)
	}
	return in, nil
}

func (p *pipelineUC) fetchOnce(ctx context.Context, fileID string, in *staging.Artifact) error {
	actx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
	defer cancel()

	f, err := in.OpenWrite()
	if err != nil {
		return domain.Internal("fetch", err)
	}
	_, ferr := p.fetcher.Fetch(actx, fileID, &limitWriter{w: f, max: p.cfg.MaxFileBytes})
	cerr := f.Close()

	switch {
	case ferr == nil && cerr != nil:
		return domain.Internal("fetch", cerr)
	case ferr == nil:
		return nil
	case errors.Is(ferr, domain.ErrFileTooLarge):
		return domain.InvalidInput("fetch", domain.ErrFileTooLarge)
	case errors.Is(ferr, context.DeadlineExceeded) && ctx.Err() == nil:
		return domain.Transient("fetch", ferr)
	default:
		return ferr
	}
}

func (p *pipelineUC) Process(ctx context.Context, req *model.Request, scope ArtifactScope, in *staging.Artifact, s model.Settings) (*model.Result, error) {
	defer logging.TraceDuration(p.log, "Pipeline.Process")()

	if err := s.Validate(); err != nil {
		return nil, domain.InvalidInput("process", err)
	}
	if err := req.Advance(model.RequestProcessing); err != nil {
		return nil, domain.Internal("process", err)
	}
	out, err := scope.Acquire(staging.RoleOutput)
	if err != nil {
		return nil, domain.Internal("process", err)
	}

	var count int
	err = withRetry(ctx, p.policy(), "extract", p.log, func() { req.Attempts++ }, func(ctx context.Context) error {
		n, err := p.extractOnce(ctx, in, out, s)
		count = n
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.AddExtractedLines(count)
	res := &model.Result{Count: count}
	if count > 0 {
		name := "document.txt"
		if req.Payload != nil && req.Payload.FileName != "" {
			name = req.Payload.FileName
		}
		res.Document = &model.OutputFile{Path: out.Path, FileName: OutputFileName(name)}
	}
	return res, nil
}

func (p *pipelineUC) extractOnce(ctx context.Context, in, out *staging.Artifact, s model.Settings) (int, error) {
	actx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
	defer cancel()

	src, err := in.OpenRead()
	if err != nil {
		return 0, domain.Internal("extract", err)
	}
	defer src.Close()
	dst, err := out.OpenWrite()
	if err != nil {
		return 0, domain.Internal("extract", err)
	}

	n, err := ExtractField(actx, src, dst, s, p.cfg.MaxLineBytes)
	if cerr := dst.Close(); err == nil && cerr != nil {
		err = domain.Internal("extract", cerr)
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return n, domain.Transient("extract", err)
	}
	return n, err
}

// OutputFileName names the reply document after the uploaded one.
func OutputFileName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "document.txt"
	}
	return "extracted_" + base
}

// sniffText rejects staged files that do not look like plain text.
func sniffText(a *staging.Artifact) error {
	f, err := a.OpenRead()
	if err != nil {
		return domain.Internal("sniff", err)
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.Internal("sniff", err)
	}
	buf = buf[:n]
	if n == 0 {
		return nil
	}
	if bytes.IndexByte(buf, 0) >= 0 || !strings.HasPrefix(http.DetectContentType(buf), "text/") {
		return domain.InvalidInput("sniff", domain.ErrBinaryContent)
	}
	return nil
}

// limitWriter fails once more than max bytes were written.
type limitWriter struct {
	w   io.Writer
	max int64
	n   int64
}

func (l *limitWriter) Write(b []byte) (int, error) {
	if l.max > 0 && l.n+int64(len(b)) > l.max {
		return 0, domain.ErrFileTooLarge
	}
	n, err := l.w.Write(b)
	l.n += int64(n)
	return n, err
}
