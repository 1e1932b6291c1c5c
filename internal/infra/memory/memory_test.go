package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/model"
)

func TestSettingsRepo(t *testing.T) {
	ctx := context.Background()
	r := NewSettingsRepo()
	if _, err := r.GetSettings(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	in := model.Settings{FieldIndex: 1, Delimiter: ","}
	if err := r.SaveSettings(ctx, 1, &in); err != nil {
		t.Fatal(err)
	}
	in.Delimiter = "mutated"
	got, err := r.GetSettings(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Delimiter != "," {
		t.Errorf("stored value aliased caller's struct: %+v", got)
	}
	_ = r.ClearSettings(ctx, 1)
	if _, err := r.GetSettings(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter()
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow(ctx, "k", 3, time.Minute); !ok {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if ok, _ := rl.Allow(ctx, "k", 3, time.Minute); ok {
		t.Fatal("burst exhausted; call should be denied")
	}
	if ok, _ := rl.Allow(ctx, "other", 3, time.Minute); !ok {
		t.Fatal("keys must not share buckets")
	}

	now = now.Add(20 * time.Second)
	if ok, _ := rl.Allow(ctx, "k", 3, time.Minute); !ok {
		t.Fatal("one token should have refilled after window/limit")
	}
}

func TestRequestLogRing(t *testing.T) {
	ctx := context.Background()
	l := NewRequestLog(3)

	var ids []string
	for i := 0; i < 5; i++ {
		req := model.NewRequest(model.NewTextEvent(1, 1, "x"))
		req.Count = i
		_ = req.Complete(nil)
		if err := l.Save(ctx, req); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, req.ID)
	}

	got, _ := l.ListRecent(ctx, 0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{ids[4], ids[3], ids[2]} {
		if got[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, want)
		}
	}
	if got, _ := l.ListRecent(ctx, 1); len(got) != 1 || got[0].ID != ids[4] {
		t.Errorf("limit 1 = %+v", got)
	}

	st, _ := l.Stats(ctx)
	if st.Total != 3 || st.ByStatus["completed"] != 3 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRequestLogSaveUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	l := NewRequestLog(4)
	req := model.NewRequest(model.NewTextEvent(1, 1, "x"))
	_ = l.Save(ctx, req)
	_ = req.Complete(&model.Result{Count: 2})
	_ = l.Save(ctx, req)

	got, _ := l.ListRecent(ctx, 10)
	if len(got) != 1 || got[0].Status != model.RequestCompleted || got[0].Count != 2 {
		t.Fatalf("got %+v", got)
	}
}
