//go:build !integration

package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/domain/ports/repository"
	adminhttp "telegram-field-extractor/internal/infra/http"
	"telegram-field-extractor/internal/infra/memory"
	"telegram-field-extractor/internal/usecase"
)

const testKey = "test-admin-key"

type failingLog struct{}

func (failingLog) Save(context.Context, *model.Request) error { return errors.New("down") }
func (failingLog) ListRecent(context.Context, int) ([]*model.Request, error) {
	return nil, errors.New("down")
}
func (failingLog) Stats(context.Context) (*repository.RequestStats, error) {
	return nil, errors.New("down")
}

func newServer(t *testing.T, requests repository.RequestLogRepository, key string) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	return adminhttp.NewServer(usecase.NewStatsUseCase(requests, &logger), key, &logger).Handler()
}

func seededLog(t *testing.T, n int) *memory.RequestLog {
	t.Helper()
	log := memory.NewRequestLog(10)
	for i := 0; i < n; i++ {
		req := model.NewRequest(model.NewTextEvent(int64(i), int64(i), "hello"))
		if err := req.Complete(&model.Result{Count: i}); err != nil {
			t.Fatal(err)
		}
		if err := log.Save(context.Background(), req); err != nil {
			t.Fatal(err)
		}
	}
	return log
}

func do(h http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	h := newServer(t, memory.NewRequestLog(1), testKey)

	rec := do(h, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
	if rec := do(h, "/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	h := newServer(t, memory.NewRequestLog(1), testKey)

	tests := []struct {
		name string
		auth string
		want int
	}{
		{"no credentials", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusForbidden},
		{"valid", "Bearer " + testKey, http.StatusOK},
		{"scheme is case insensitive", "bearer " + testKey, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(h, "/api/v1/stats", tc.auth); rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}

	noKey := newServer(t, memory.NewRequestLog(1), "")
	if rec := do(noKey, "/api/v1/stats", "Bearer "); rec.Code != http.StatusForbidden {
		t.Fatalf("unconfigured key: status = %d", rec.Code)
	}
}

func TestListRequests(t *testing.T) {
	h := newServer(t, seededLog(t, 3), testKey)

	rec := do(h, "/api/v1/requests?limit=2", "Bearer "+testKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d requests, want 2", len(got))
	}
	if got[0]["status"] != "completed" || got[0]["kind"] != "text" {
		t.Errorf("unexpected first entry %v", got[0])
	}
	// newest first
	if got[0]["count"].(float64) != 2 {
		t.Errorf("first count = %v, want 2", got[0]["count"])
	}

	for _, bad := range []string{"0", "-1", "x"} {
		if rec := do(h, "/api/v1/requests?limit="+bad, "Bearer "+testKey); rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d", bad, rec.Code)
		}
	}
}

func TestStats(t *testing.T) {
	h := newServer(t, seededLog(t, 4), testKey)

	rec := do(h, "/api/v1/stats", "Bearer "+testKey)
	var st repository.RequestStats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Total != 4 || st.ByStatus["completed"] != 4 || st.Extracted != 6 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRepositoryErrorsAre500(t *testing.T) {
	h := newServer(t, failingLog{}, testKey)
	for _, path := range []string{"/api/v1/stats", "/api/v1/requests"} {
		if rec := do(h, path, "Bearer "+testKey); rec.Code != http.StatusInternalServerError {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}
}
