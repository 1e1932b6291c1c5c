package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-field-extractor/internal/config"
	"telegram-field-extractor/internal/domain"
	"telegram-field-extractor/internal/domain/model"
	"telegram-field-extractor/internal/infra/worker"
)

const testToken = "123:test"

// fakeBotAPI serves the few Bot API methods the adapter uses.
type fakeBotAPI struct {
	mu        sync.Mutex
	fileBody  string
	fileCode  int
	getFile   string
	sent      []http.Header
	forms     []map[string]string
	updatesAt int
}

func (f *fakeBotAPI) handler() http.Handler {
	mux := http.NewServeMux()
	api := "/bot" + testToken + "/"
	mux.HandleFunc(api+"getMe", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Bot","username":"field_bot"}}`)
	})
	mux.HandleFunc(api+"getFile", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body := f.getFile
		f.mu.Unlock()
		if body == "" {
			body = `{"ok":true,"result":{"file_id":"f1","file_path":"documents/a.txt"}}`
		}
		fmt.Fprint(w, body)
	})
	mux.HandleFunc(api+"sendMessage", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.forms = append(f.forms, map[string]string{
			"chat_id":    r.FormValue("chat_id"),
			"text":       r.FormValue("text"),
			"parse_mode": r.FormValue("parse_mode"),
		})
		f.mu.Unlock()
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	})
	mux.HandleFunc(api+"getUpdates", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		offset, _ := strconv.Atoi(r.FormValue("offset"))
		if offset <= 7 {
			fmt.Fprint(w, `{"ok":true,"result":[{"update_id":7,"message":{"message_id":3,"date":0,`+
				`"chat":{"id":42,"type":"private"},"from":{"id":9,"is_bot":false,"first_name":"A","username":"a"},"text":"hello"}}]}`)
			return
		}
		time.Sleep(10 * time.Millisecond)
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	})
	mux.HandleFunc("/file/bot"+testToken+"/documents/a.txt", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		code, body := f.fileCode, f.fileBody
		f.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			return
		}
		fmt.Fprint(w, body)
	})
	return mux
}

type recordingPool struct {
	mu    sync.Mutex
	tasks []worker.Task
	got   chan struct{}
}

func (p *recordingPool) Submit(ctx context.Context, task worker.Task) error {
	p.mu.Lock()
	p.tasks = append(p.tasks, task)
	p.mu.Unlock()
	select {
	case p.got <- struct{}{}:
	default:
	}
	return nil
}

type handlerFunc func(ctx context.Context, ev model.Event) error

func (f handlerFunc) Handle(ctx context.Context, ev model.Event) error { return f(ctx, ev) }

func newTestAdapter(t *testing.T, api *fakeBotAPI, pool TaskSubmitter) *RealTelegramBotAdapter {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	bot, err := tgbotapi.NewBotAPIWithClient(testToken, srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatalf("NewBotAPIWithClient: %v", err)
	}
	if pool == nil {
		pool = &recordingPool{got: make(chan struct{}, 1)}
	}
	a, err := newAdapter(bot, &config.BotConfig{PollTimeout: 0}, pool, nil)
	if err != nil {
		t.Fatal(err)
	}
	a.fileEndpoint = srv.URL + "/file/bot%s/%s"
	return a
}

func TestFetchDownloadsFile(t *testing.T) {
	api := &fakeBotAPI{fileBody: "a:b\n"}
	a := newTestAdapter(t, api, nil)

	var buf bytes.Buffer
	n, err := a.Fetch(context.Background(), "f1", &buf)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != 4 || buf.String() != "a:b\n" {
		t.Errorf("got %d bytes %q", n, buf.String())
	}
}

func TestFetchClassifiesFailures(t *testing.T) {
	cases := []struct {
		name     string
		getFile  string
		fileCode int
		kind     domain.ErrorKind
		sentinel error
	}{
		{"file too big", `{"ok":false,"error_code":400,"description":"Bad Request: file is too big"}`, 0, domain.KindInvalidInput, domain.ErrFileTooLarge},
		{"bad file id", `{"ok":false,"error_code":400,"description":"Bad Request: invalid file_id"}`, 0, domain.KindInvalidInput, nil},
		{"flood", `{"ok":false,"error_code":429,"description":"Too Many Requests"}`, 0, domain.KindTransient, nil},
		{"download 502", "", http.StatusBadGateway, domain.KindTransient, nil},
		{"download 404", "", http.StatusNotFound, domain.KindInvalidInput, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeBotAPI{getFile: tc.getFile, fileCode: tc.fileCode}
			a := newTestAdapter(t, api, nil)
			_, err := a.Fetch(context.Background(), "f1", &bytes.Buffer{})
			if domain.KindOf(err) != tc.kind {
				t.Fatalf("kind = %s (%v), want %s", domain.KindOf(err), err, tc.kind)
			}
			if tc.sentinel != nil && !errors.Is(err, tc.sentinel) {
				t.Errorf("err = %v, want %v", err, tc.sentinel)
			}
		})
	}
}

func TestSendMessageUsesHTML(t *testing.T) {
	api := &fakeBotAPI{}
	a := newTestAdapter(t, api, nil)
	if err := a.SendMessage(context.Background(), 42, "<b>hi</b>"); err != nil {
		t.Fatal(err)
	}
	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.forms) != 1 {
		t.Fatalf("sent %d messages", len(api.forms))
	}
	got := api.forms[0]
	if got["chat_id"] != "42" || got["text"] != "<b>hi</b>" || got["parse_mode"] != "HTML" {
		t.Errorf("form = %v", got)
	}
}

func TestStartPollingSubmitsEvents(t *testing.T) {
	pool := &recordingPool{got: make(chan struct{}, 1)}
	a := newTestAdapter(t, &fakeBotAPI{}, pool)

	var (
		mu   sync.Mutex
		seen []model.Event
	)
	h := handlerFunc(func(ctx context.Context, ev model.Event) error {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.StartPolling(ctx, h) }()

	select {
	case <-pool.got:
	case <-time.After(5 * time.Second):
		t.Fatal("no update submitted")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("StartPolling: %v", err)
	}

	pool.mu.Lock()
	task := pool.tasks[0]
	pool.mu.Unlock()
	if err := task(context.Background()); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0].Kind != model.EventText || seen[0].SenderID != 9 || seen[0].UpdateID != 7 {
		t.Errorf("seen = %+v", seen)
	}
}
