package i18n

import (
	"testing"
)

func TestTranslator(t *testing.T) {
	translator, err := newTranslatorFromBytes([]byte("greeting: Привет\nwelcome_user: Привет %s"))
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("should translate a simple key", func(t *testing.T) {
		got := translator.T("greeting")
		want := "Привет"
		if got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		got := translator.T("nonexistent_key")
		want := "nonexistent_key"
		if got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		got := translator.T("welcome_user", "Ali")
		want := "Привет Ali"
		if got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})
}

// Both embedded catalogues must define the same keys.
func TestEmbeddedLocalesAreComplete(t *testing.T) {
	en, err := NewTranslator(LocalesFS, "en")
	if err != nil {
		t.Fatalf("load en: %v", err)
	}
	ru, err := NewTranslator(LocalesFS, "ru")
	if err != nil {
		t.Fatalf("load ru: %v", err)
	}
	for key := range en.translations {
		if _, ok := ru.translations[key]; !ok {
			t.Errorf("ru is missing %q", key)
		}
	}
	for key := range ru.translations {
		if _, ok := en.translations[key]; !ok {
			t.Errorf("en is missing %q", key)
		}
	}
}

func TestNewTranslatorUnknownLanguage(t *testing.T) {
	if _, err := NewTranslator(LocalesFS, "xx"); err == nil {
		t.Fatal("expected error for missing catalogue")
	}
}
