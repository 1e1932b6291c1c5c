package application

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/domain/ports/adapter"
	"telegram-field-extractor/internal/domain/ports/repository"
	"telegram-field-extractor/internal/infra/logging"
	"telegram-field-extractor/internal/infra/metrics"
	"telegram-field-extractor/internal/infra/staging"
	"telegram-field-extractor/internal/usecase"
)

const auditTimeout = 5 * time.Second

// Translator resolves reply keys to localized HTML.
type Translator interface {
	T(key string, args ...interface{}) string
}

// Deps are the collaborators of a Dispatcher. Limiter and RequestLog are
// optional.
type Deps struct {
	Messenger  adapter.Messenger
	Settings   usecase.SettingsUseCase
	Pipeline   usecase.PipelineUseCase
	Staging    *staging.Store
	Limiter    adapter.RateLimiter
	RequestLog repository.RequestLogRepository
	Translator Translator
	Logger     *zerolog.Logger
}

type DispatcherConfig struct {
	RateLimit         int
	RateWindow        time.Duration
	ReplyRetryBackoff time.Duration
	MaxFileBytes      int64
	MaxLineBytes      int
	// Dev logs user names and file names unredacted.
	Dev bool
}

// Dispatcher turns inbound events into requests and sends exactly one
// reply per request.
type Dispatcher struct {
	messenger adapter.Messenger
	settings  usecase.SettingsUseCase
	pipeline  usecase.PipelineUseCase
	store     *staging.Store
	limiter   adapter.RateLimiter
	requests  repository.RequestLogRepository
	tr        Translator
	cfg       DispatcherConfig
	log       *zerolog.Logger

	commands map[string]commandHandler
}

type commandHandler func(ctx context.Context, ev model.Event) outcome

// outcome is the single reply of a request and how the request ended.
type outcome struct {
	text    string
	doc     *model.OutputFile
	caption string
	result  *model.Result
	err     error
}

func NewDispatcher(deps Deps, cfg DispatcherConfig) (*Dispatcher, error) {
	if deps.Messenger == nil || deps.Settings == nil || deps.Pipeline == nil || deps.Staging == nil || deps.Translator == nil {
		return nil, fmt.Errorf("%w: dispatcher dependencies are incomplete", domain.ErrInvalidArgument)
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "Dispatcher").Logger()
	d := &Dispatcher{
		messenger: deps.Messenger,
		settings:  deps.Settings,
		pipeline:  deps.Pipeline,
		store:     deps.Staging,
		limiter:   deps.Limiter,
		requests:  deps.RequestLog,
		tr:        deps.Translator,
		cfg:       cfg,
		log:       &l,
	}
	d.commands = map[string]commandHandler{
		"start":         d.handleStart,
		"help":          d.handleHelp,
		"settings":      d.handleSettings,
		"set_index":     d.handleSetIndex,
		"set_delimiter": d.handleSetDelimiter,
	}
	return d, nil
}

// Handle processes one event to completion. The returned error only reports
// a reply that could not be delivered; the sender has already been answered
// or the reply was dropped.
func (d *Dispatcher) Handle(ctx context.Context, ev model.Event) error {
	req := model.NewRequest(ev)
	ctx = logging.WithRequestID(logging.WithTgID(ctx, ev.SenderID), req.ID)
	metrics.IncTelegramCommand(ev.MetricLabel())

	if err := ev.Validate(); err != nil {
		return d.finish(ctx, req, d.failure(ctx, domain.Internal("dispatch", err)))
	}
	if d.rateLimited(ctx, ev) {
		return d.finish(ctx, req, outcome{
			text: d.tr.T("error_rate_limited"),
			err:  domain.InvalidInput("dispatch", domain.ErrRateLimited),
		})
	}

	switch ev.Kind {
	case model.EventCommand:
		h, ok := d.commands[ev.Command]
		if !ok {
			return d.finish(ctx, req, outcome{text: d.tr.T("unknown_command")})
		}
		return d.finish(ctx, req, h(ctx, ev))
	case model.EventText:
		return d.finish(ctx, req, outcome{text: d.tr.T("send_txt_hint")})
	case model.EventDocument:
		return d.handleDocument(ctx, req, ev)
	default:
		return d.finish(ctx, req, d.failure(ctx, domain.Internal("dispatch", domain.ErrUnknownEvent)))
	}
}

func (d *Dispatcher) rateLimited(ctx context.Context, ev model.Event) bool {
	if d.limiter == nil || d.cfg.RateLimit <= 0 {
		return false
	}
	action := "message"
	switch ev.Kind {
	case model.EventCommand:
		action = ev.Command
	case model.EventDocument:
		action = "document"
	}
	ok, err := d.limiter.Allow(ctx, adapter.RateLimitKey(ev.SenderID, action), d.cfg.RateLimit, d.cfg.RateWindow)
	if err != nil {
		logging.With(ctx, d.log).Warn().Err(err).Msg("rate limiter unavailable; allowing")
		return false
	}
	if !ok {
		metrics.IncRateLimitTriggered()
		logging.With(ctx, d.log).Info().Str("action", action).Msg("rate limited")
	}
	return !ok
}

func (d *Dispatcher) handleDocument(ctx context.Context, req *model.Request, ev model.Event) error {
	log := logging.With(ctx, d.log)
	if err := d.pipeline.CheckDocument(ev.Document); err != nil {
		return d.finish(ctx, req, d.failure(ctx, err))
	}

	scope := d.store.Scope(req.ID)
	defer func() {
		if err := scope.Close(); err != nil {
			log.Error().Err(err).Msg("failed to release staged artifacts")
		}
	}()

	if err := d.messenger.SendChatAction(ctx, ev.ChatID, adapter.ActionUploadDocument); err != nil {
		log.Debug().Err(err).Msg("chat action failed")
	}

	s, err := d.settings.Get(ctx, ev.SenderID)
	if err != nil {
		log.Warn().Err(err).Msg("settings unavailable; using defaults")
	}

	in, err := d.pipeline.Stage(ctx, req, scope)
	if err != nil {
		return d.finish(ctx, req, d.failure(ctx, err))
	}
	res, err := d.pipeline.Process(ctx, req, scope, in, s)
	if err != nil {
		return d.finish(ctx, req, d.failure(ctx, err))
	}
	if res.Document == nil {
		return d.finish(ctx, req, outcome{text: d.tr.T("no_matches"), result: res})
	}
	return d.finish(ctx, req, outcome{
		doc:     res.Document,
		caption: d.tr.T("done_caption", res.Count, s.FieldIndex, displayDelimiter(s.Delimiter)),
		result:  res,
	})
}

func (d *Dispatcher) handleStart(ctx context.Context, ev model.Event) outcome {
	s, err := d.settings.Reset(ctx, ev.SenderID)
	if err != nil {
		logging.With(ctx, d.log).Warn().Err(err).Msg("failed to reset settings")
	}
	return outcome{text: d.tr.T("welcome", s.FieldIndex, s.Ordinal(), displayDelimiter(s.Delimiter))}
}

func (d *Dispatcher) handleHelp(ctx context.Context, ev model.Event) outcome {
	return outcome{text: d.tr.T("help")}
}

func (d *Dispatcher) handleSettings(ctx context.Context, ev model.Event) outcome {
	s, err := d.settings.Get(ctx, ev.SenderID)
	if err != nil {
		logging.With(ctx, d.log).Warn().Err(err).Msg("settings unavailable; showing defaults")
	}
	return outcome{text: d.tr.T("settings_current", s.FieldIndex, s.Ordinal(), displayDelimiter(s.Delimiter))}
}

func (d *Dispatcher) handleSetIndex(ctx context.Context, ev model.Event) outcome {
	arg := strings.TrimSpace(ev.Args)
	if arg == "" {
		return outcome{text: d.tr.T("usage_set_index"), err: domain.InvalidInput("set_index", domain.ErrInvalidArgument)}
	}
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return outcome{text: d.tr.T("error_index_not_number"), err: domain.InvalidInput("set_index", err)}
	}

	s, err := d.settings.SetFieldIndex(ctx, ev.SenderID, idx)
	switch {
	case err == nil:
		return outcome{text: d.tr.T("index_set", s.FieldIndex, s.Ordinal())}
	case errors.Is(err, usecase.ErrIndexNegative):
		return outcome{text: d.tr.T("error_index_negative"), err: domain.InvalidInput("set_index", err)}
	case errors.Is(err, usecase.ErrIndexTooLarge):
		return outcome{text: d.tr.T("error_index_too_large", d.settings.MaxFieldIndex()), err: domain.InvalidInput("set_index", err)}
	default:
		return d.failure(ctx, domain.Internal("set_index", err))
	}
}

func (d *Dispatcher) handleSetDelimiter(ctx context.Context, ev model.Event) outcome {
	if usecase.NormalizeDelimiter(ev.Args) == "" {
		return outcome{text: d.tr.T("usage_set_delimiter"), err: domain.InvalidInput("set_delimiter", domain.ErrInvalidArgument)}
	}
	s, err := d.settings.SetDelimiter(ctx, ev.SenderID, ev.Args)
	switch {
	case errors.Is(err, usecase.ErrDelimTooLong):
		return outcome{text: d.tr.T("error_delimiter_too_long", model.MaxDelimiterLen), err: domain.InvalidInput("set_delimiter", err)}
	case err != nil:
		return d.failure(ctx, domain.Internal("set_delimiter", err))
	}
	return outcome{text: d.tr.T("delimiter_set", displayDelimiter(s.Delimiter))}
}

// failure maps err to the reply the sender sees.
func (d *Dispatcher) failure(ctx context.Context, err error) outcome {
	out := outcome{err: err}
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		switch {
		case errors.Is(err, domain.ErrUnsupportedFormat):
			out.text = d.tr.T("error_not_txt")
		case errors.Is(err, domain.ErrFileTooLarge):
			out.text = d.tr.T("error_file_too_large", d.cfg.MaxFileBytes>>20)
		case errors.Is(err, domain.ErrBinaryContent):
			out.text = d.tr.T("error_binary_content")
		case errors.Is(err, domain.ErrLineTooLong):
			out.text = d.tr.T("error_line_too_long", d.cfg.MaxLineBytes>>10)
		default:
			out.text = d.tr.T("error_not_txt")
		}
	case domain.KindTransient:
		logging.With(ctx, d.log).Warn().Err(err).Msg("request failed after retries")
		out.text = d.tr.T("error_transient")
	default:
		logging.With(ctx, d.log).Error().Err(err).Msg("request failed")
		out.text = d.tr.T("error_internal")
	}
	return out
}

// finish sends the reply, finalizes the request and records it.
func (d *Dispatcher) finish(ctx context.Context, req *model.Request, out outcome) error {
	log := logging.With(ctx, d.log)

	sendErr := d.deliver(ctx, func(ctx context.Context) error {
		if out.doc != nil {
			return d.messenger.SendDocument(ctx, req.ChatID, out.doc.Path, out.doc.FileName, out.caption)
		}
		return d.messenger.SendMessage(ctx, req.ChatID, out.text)
	})

	var err error
	if out.err != nil {
		err = req.Fail(out.err)
	} else {
		err = req.Complete(out.result)
		if sendErr != nil {
			req.LastError = sendErr.Error()
		}
	}
	if err != nil {
		log.Error().Err(err).Str("status", string(req.Status)).Msg("request state not finalized")
	}

	metrics.ObserveRequest(req.Kind.String(), string(req.Status), string(req.ErrorKind), req.Duration())
	d.audit(ctx, req)

	line := log.Info().
		Str("kind", req.Kind.String()).
		Str("status", string(req.Status)).
		Str("error_kind", string(req.ErrorKind)).
		Int("attempts", req.Attempts).
		Int("count", req.Count).
		Dur("duration", req.Duration())
	if req.Username != "" {
		line = line.Str("username", logging.Redact(req.Username, d.cfg.Dev))
	}
	if req.Payload != nil {
		line = line.Str("file_name", logging.Redact(req.Payload.FileName, d.cfg.Dev))
	}
	line.Msg("request finished")
	return sendErr
}

// deliver runs send and retries it once after the configured backoff.
func (d *Dispatcher) deliver(ctx context.Context, send func(context.Context) error) error {
	err := send(ctx)
	if err == nil {
		metrics.IncReply("sent")
		return nil
	}
	log := logging.With(ctx, d.log)
	log.Warn().Err(err).Dur("backoff", d.cfg.ReplyRetryBackoff).Msg("reply failed; retrying once")
	metrics.IncReply("retried")

	t := time.NewTimer(d.cfg.ReplyRetryBackoff)
	select {
	case <-ctx.Done():
		t.Stop()
		err = ctx.Err()
	case <-t.C:
		err = send(ctx)
	}
	if err == nil {
		metrics.IncReply("sent")
		return nil
	}
	metrics.IncReply("dropped")
	log.Error().Err(err).Msg("reply dropped")
	return fmt.Errorf("deliver reply: %w", err)
}

func (d *Dispatcher) audit(ctx context.Context, req *model.Request) {
	if d.requests == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	err := d.requests.Save(actx, req)
	metrics.IncRequestLogWrite(err == nil)
	if err != nil {
		logging.With(ctx, d.log).Warn().Err(err).Msg("failed to write request log")
	}
}

// displayDelimiter shows TAB as its escape and HTML-escapes the rest.
func displayDelimiter(delim string) string {
	if delim == "\t" {
		return `\t`
	}
	return html.EscapeString(delim)
}
