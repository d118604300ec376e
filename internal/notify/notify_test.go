package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gopkg.in/gomail.v2"

	"tapfarm/internal/config"
	"tapfarm/internal/logbus"
	"tapfarm/internal/model"
)

func samplePass() model.PassSummary {
	start := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	return model.PassSummary{
		ID:         "p1",
		Seq:        4,
		StartedAt:  start,
		FinishedAt: start.Add(95 * time.Second),
		Completed:  1,
		Aborted:    1,
		Gold:       900,
		Outcomes: []model.AccountOutcome{
			{Label: "#1 …aaaaaa", Status: model.OutcomeCompleted, Taps: 3, Gold: 900, LastBar: model.BarAmount{AvailableAmount: 40, MaxAmount: 1000}},
			{Label: "#2 …bbbbbb", Status: model.OutcomeAborted, Error: "tap: max retries reached"},
		},
	}
}

func TestPassText(t *testing.T) {
	text := passText(samplePass())
	for _, want := range []string{
		"Pass #4 finished in 1m35s",
		"Accounts: 1 completed, 1 aborted. Gold: 900",
		"#1 …aaaaaa  completed  taps=3 gold=900 bar=40/1000",
		"error=tap: max retries reached",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

type recordingNotifier struct{ n int }

func (r *recordingNotifier) NotifyPassCompleted(context.Context, model.PassSummary) { r.n++ }

func TestMultiSkipsNil(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	Multi{a, nil, b}.NotifyPassCompleted(context.Background(), samplePass())
	if a.n != 1 || b.n != 1 {
		t.Fatalf("fanout = %d, %d", a.n, b.n)
	}
}

func TestEmailNotifierSendsQueuedReport(t *testing.T) {
	var mu sync.Mutex
	var sent []*gomail.Message
	send := func(msgs ...*gomail.Message) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, msgs...)
		return nil
	}
	bus := logbus.New(20)
	n := newEmailNotifier(config.EmailConfig{Host: "smtp.example.com", To: "ops@example.com"}, bus, send)
	n.NotifyPassCompleted(context.Background(), samplePass())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 1 {
		t.Fatalf("sent = %d", len(sent))
	}
	if got := sent[0].GetHeader("Subject"); len(got) != 1 || got[0] != "tapfarm pass #4: 1 completed, 1 aborted" {
		t.Fatalf("subject = %v", got)
	}
	var raw bytes.Buffer
	if _, err := sent[0].WriteTo(&raw); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if !strings.Contains(raw.String(), "ops@example.com") {
		t.Fatalf("recipient missing from message")
	}
}

func TestEmailNotifierLogsFailure(t *testing.T) {
	bus := logbus.New(20)
	n := newEmailNotifier(config.EmailConfig{Host: "smtp.example.com", To: "ops@example.com"}, bus, func(...*gomail.Message) error {
		return errors.New("connection refused")
	})
	n.NotifyPassCompleted(context.Background(), samplePass())
	_ = n.Close(context.Background())

	found := false
	for _, msg := range bus.Snapshot() {
		if d, ok := msg.Data.(logbus.LogData); ok && d.Msg == "email report failed" {
			found = true
		}
	}
	if !found {
		t.Fatal("failure was not logged")
	}
}

func TestBuildPassEmailRejectsBadRecipient(t *testing.T) {
	if _, err := buildPassEmail(config.EmailConfig{Host: "smtp.example.com", To: "not an address"}, samplePass()); err == nil {
		t.Fatal("expected error")
	}
}

func TestTelegramNotifierSendsToChat(t *testing.T) {
	var mu sync.Mutex
	var chatID, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"farm","username":"farm_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			mu.Lock()
			chatID, text = r.Form.Get("chat_id"), r.Form.Get("text")
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":5,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	bot, err := tgbotapi.NewBotAPIWithClient("123:abc", srv.URL+"/bot%s/%s", srv.Client())
	if err != nil {
		t.Fatalf("NewBotAPIWithClient: %v", err)
	}
	n := newTelegramNotifierWithBot(bot, 42, logbus.New(10))
	n.NotifyPassCompleted(context.Background(), samplePass())

	mu.Lock()
	defer mu.Unlock()
	if chatID != "42" {
		t.Fatalf("chat_id = %q", chatID)
	}
	if !strings.HasPrefix(text, "tapfarm pass #4") || !strings.Contains(text, "#2 …bbbbbb") {
		t.Fatalf("text = %q", text)
	}
}
