package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/infra/memory"
)

type failingRepo struct{ err error }

func (r failingRepo) GetSettings(context.Context, int64) (*model.Settings, error) { return nil, r.err }
func (r failingRepo) SaveSettings(context.Context, int64, *model.Settings) error  { return r.err }
func (r failingRepo) ClearSettings(context.Context, int64) error                  { return r.err }

func TestSettingsDefaultsForUnknownUser(t *testing.T) {
	uc := NewSettingsUseCase(memory.NewSettingsRepo(), "memory", 100, nil)
	s, err := uc.Get(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if s != model.DefaultSettings() {
		t.Fatalf("settings = %+v", s)
	}
}

func TestSettingsUpdatesAreIndependent(t *testing.T) {
	ctx := context.Background()
	uc := NewSettingsUseCase(memory.NewSettingsRepo(), "memory", 100, nil)

	if _, err := uc.SetFieldIndex(ctx, 1, 2); err != nil {
		t.Fatal(err)
	}
	s, err := uc.SetDelimiter(ctx, 1, " ;")
	if err != nil {
		t.Fatal(err)
	}
	if s.FieldIndex != 2 || s.Delimiter != ";" {
		t.Fatalf("settings = %+v", s)
	}
	other, _ := uc.Get(ctx, 2)
	if other != model.DefaultSettings() {
		t.Errorf("user 2 sees %+v", other)
	}

	s, err = uc.Reset(ctx, 1)
	if err != nil || s != model.DefaultSettings() {
		t.Fatalf("Reset = %+v, %v", s, err)
	}
	if got, _ := uc.Get(ctx, 1); got != model.DefaultSettings() {
		t.Errorf("after reset %+v", got)
	}
}

func TestResetClearsStoredSettings(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSettingsRepo()
	uc := NewSettingsUseCase(repo, "memory", 100, nil)

	if _, err := uc.SetDelimiter(ctx, 1, "|"); err != nil {
		t.Fatal(err)
	}
	if _, err := uc.Reset(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetSettings(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("stored settings survived reset: %v", err)
	}

	s, err := NewSettingsUseCase(failingRepo{err: errors.New("redis down")}, "redis", 10, nil).Reset(ctx, 1)
	if err == nil || s != model.DefaultSettings() {
		t.Fatalf("Reset on failing repo = %+v, %v", s, err)
	}
}

func TestSetFieldIndexValidation(t *testing.T) {
	uc := NewSettingsUseCase(memory.NewSettingsRepo(), "memory", 10, nil)
	ctx := context.Background()

	if _, err := uc.SetFieldIndex(ctx, 1, -1); !errors.Is(err, ErrIndexNegative) || !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("negative: %v", err)
	}
	if _, err := uc.SetFieldIndex(ctx, 1, 11); !errors.Is(err, ErrIndexTooLarge) {
		t.Errorf("too large: %v", err)
	}
	if _, err := uc.SetFieldIndex(ctx, 1, 10); err != nil {
		t.Errorf("max index rejected: %v", err)
	}
	if _, err := uc.SetFieldIndex(ctx, 1, 0); err != nil {
		t.Errorf("zero rejected: %v", err)
	}
}

func TestSetDelimiterRejectsEmpty(t *testing.T) {
	uc := NewSettingsUseCase(memory.NewSettingsRepo(), "memory", 10, nil)
	for _, arg := range []string{"", "   ", "\r\n"} {
		if _, err := uc.SetDelimiter(context.Background(), 1, arg); !errors.Is(err, ErrEmptyDelim) {
			t.Errorf("SetDelimiter(%q) = %v", arg, err)
		}
	}
}

func TestSetDelimiterRejectsTooLong(t *testing.T) {
	uc := NewSettingsUseCase(memory.NewSettingsRepo(), "memory", 10, nil)
	ctx := context.Background()

	if _, err := uc.SetDelimiter(ctx, 1, strings.Repeat("-", model.MaxDelimiterLen+1)); !errors.Is(err, ErrDelimTooLong) || !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("over-long delimiter: %v", err)
	}
	// the limit counts runes, not bytes
	s, err := uc.SetDelimiter(ctx, 1, strings.Repeat("→", model.MaxDelimiterLen))
	if err != nil {
		t.Fatalf("delimiter at the limit rejected: %v", err)
	}
	if got, _ := uc.Get(ctx, 1); got != s {
		t.Errorf("stored %+v, want %+v", got, s)
	}
}

func TestSettingsStorageErrorFallsBackToDefaults(t *testing.T) {
	uc := NewSettingsUseCase(failingRepo{err: errors.New("redis down")}, "redis", 10, nil)
	s, err := uc.Get(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if s != model.DefaultSettings() {
		t.Errorf("settings = %+v", s)
	}
	if _, err := uc.SetDelimiter(context.Background(), 1, ","); err == nil {
		t.Error("expected save error")
	}
}

func TestNormalizeDelimiter(t *testing.T) {
	cases := map[string]string{
		":":      ":",
		" ;":     ";",
		`\t`:     "\t",
		" \\t":   "\t",
		"a b":    "a b",
		" , ":    ", ",
		"|\r\n":  "|",
		"":       "",
		"\t":     "\t",
		`\t\t`:   `\t\t`,
		"  ::  ": "::  ",
	}
	for in, want := range cases {
		if got := NormalizeDelimiter(in); got != want {
			t.Errorf("NormalizeDelimiter(%q) = %q, want %q", in, got, want)
		}
	}
}
