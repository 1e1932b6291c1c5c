package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/domain/ports/repository"
	"telegram-field-extractor/internal/infra/logging"
	"telegram-field-extractor/internal/infra/metrics"
)

// Compile-time check
var _ SettingsUseCase = (*settingsUC)(nil)

var (
	ErrIndexNegative = errors.New("field index must be non-negative")
	ErrIndexTooLarge = errors.New("field index is too large")
	ErrEmptyDelim    = errors.New("delimiter must not be empty")
	ErrDelimTooLong  = errors.New("delimiter is too long")
)

// SettingsUseCase manages the per-user extraction settings.
type SettingsUseCase interface {
	Get(ctx context.Context, tgID int64) (model.Settings, error)
	SetFieldIndex(ctx context.Context, tgID int64, index int) (model.Settings, error)
	SetDelimiter(ctx context.Context, tgID int64, delimiter string) (model.Settings, error)
	Reset(ctx context.Context, tgID int64) (model.Settings, error)
	MaxFieldIndex() int
}

type settingsUC struct {
	repo      repository.SettingsRepository
	storeName string
	maxIndex  int
	log       *zerolog.Logger
}

func NewSettingsUseCase(repo repository.SettingsRepository, storeName string, maxIndex int, logger *zerolog.Logger) *settingsUC {
	if logger == nil {
		logger = logging.Nop()
	}
	return &settingsUC{repo: repo, storeName: storeName, maxIndex: maxIndex, log: logger}
}

func (u *settingsUC) MaxFieldIndex() int { return u.maxIndex }

// Get returns the stored settings or the defaults. On a storage error the
// defaults are returned together with the error.
func (u *settingsUC) Get(ctx context.Context, tgID int64) (model.Settings, error) {
	s, err := u.repo.GetSettings(ctx, tgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncSettingsLookup(u.storeName, "default")
			return model.DefaultSettings(), nil
		}
		metrics.IncSettingsLookup(u.storeName, "error")
		return model.DefaultSettings(), fmt.Errorf("get settings: %w", err)
	}
	if s == nil || s.Validate() != nil {
		u.log.Warn().Int64("tg_id", tgID).Msg("stored settings invalid; using defaults")
		metrics.IncSettingsLookup(u.storeName, "default")
		return model.DefaultSettings(), nil
	}
	metrics.IncSettingsLookup(u.storeName, "hit")
	return *s, nil
}

func (u *settingsUC) SetFieldIndex(ctx context.Context, tgID int64, index int) (model.Settings, error) {
	if index < 0 {
		return model.Settings{}, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, ErrIndexNegative)
	}
	if u.maxIndex > 0 && index > u.maxIndex {
		return model.Settings{}, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, ErrIndexTooLarge)
	}
	return u.update(ctx, tgID, func(s *model.Settings) { s.FieldIndex = index })
}

func (u *settingsUC) SetDelimiter(ctx context.Context, tgID int64, delimiter string) (model.Settings, error) {
	delimiter = NormalizeDelimiter(delimiter)
	if delimiter == "" {
		return model.Settings{}, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, ErrEmptyDelim)
	}
	if utf8.RuneCountInString(delimiter) > model.MaxDelimiterLen {
		return model.Settings{}, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, ErrDelimTooLong)
	}
	return u.update(ctx, tgID, func(s *model.Settings) { s.Delimiter = delimiter })
}

// Reset drops the stored settings so the defaults apply again.
func (u *settingsUC) Reset(ctx context.Context, tgID int64) (model.Settings, error) {
	if err := u.repo.ClearSettings(ctx, tgID); err != nil {
		return model.DefaultSettings(), fmt.Errorf("reset settings: %w", err)
	}
	return model.DefaultSettings(), nil
}

func (u *settingsUC) update(ctx context.Context, tgID int64, mutate func(*model.Settings)) (model.Settings, error) {
	s, err := u.Get(ctx, tgID)
	if err != nil {
		return model.Settings{}, err
	}
	mutate(&s)
	if err := u.repo.SaveSettings(ctx, tgID, &s); err != nil {
		return model.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return s, nil
}

// NormalizeDelimiter turns the command argument into a delimiter. Only a
// leading space separating it from the command is dropped, and the escape
// \t stands for TAB.
func NormalizeDelimiter(arg string) string {
	arg = strings.TrimLeft(arg, " ")
	arg = strings.TrimRight(arg, "\r\n")
	if arg == `\t` {
		return "\t"
	}
	return arg
}
