package usecase

import (
	"context"
	"testing"

	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/domain/ports/repository"
	"telegram-field-extractor/internal/infra/logging"
)

type recordingLog struct {
	limit int
	stats *repository.RequestStats
}

func (r *recordingLog) Save(context.Context, *model.Request) error { return nil }
func (r *recordingLog) ListRecent(_ context.Context, limit int) ([]*model.Request, error) {
	r.limit = limit
	return nil, nil
}
func (r *recordingLog) Stats(context.Context) (*repository.RequestStats, error) {
	return r.stats, nil
}

func TestStatsRecentClampsLimit(t *testing.T) {
	rl := &recordingLog{}
	uc := NewStatsUseCase(rl, logging.Nop())

	for _, tc := range []struct{ in, want int }{
		{0, 50},
		{-3, 50},
		{10, 10},
		{10_000, 500},
	} {
		if _, err := uc.Recent(context.Background(), tc.in); err != nil {
			t.Fatal(err)
		}
		if rl.limit != tc.want {
			t.Errorf("Recent(%d) asked repo for %d, want %d", tc.in, rl.limit, tc.want)
		}
	}
}

func TestStatsTotalsNeverReturnsNilMap(t *testing.T) {
	uc := NewStatsUseCase(&recordingLog{stats: &repository.RequestStats{Total: 2}}, logging.Nop())
	st, err := uc.Totals(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.ByStatus == nil || st.Total != 2 {
		t.Fatalf("stats = %+v", st)
	}
}
