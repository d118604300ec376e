package djdog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tapfarm/internal/config"
	"tapfarm/internal/logbus"
	"tapfarm/internal/mockapi"
	"tapfarm/internal/model"
)

func newTestProvider(t *testing.T, h http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.ProviderConfig{BaseURL: srv.URL + "/mock", TimeoutMs: 2000}, config.ProxyConfig{}, logbus.New(10))
}

func TestProviderAgainstMock(t *testing.T) {
	mock := mockapi.New(mockapi.Options{Prefix: "/mock", MaxBar: 500, LevelUpCost: 100})
	p := newTestProvider(t, mock)
	ctx := context.Background()
	acc := model.Account{ID: "a1", Credential: "query_id=abc"}

	tap, err := p.Tap(ctx, acc, 200)
	if err != nil {
		t.Fatalf("Tap: %v", err)
	}
	if tap.GoldAmount != 200 {
		t.Fatalf("gold = %d", tap.GoldAmount)
	}

	bar, err := p.BarAmount(ctx, acc)
	if err != nil {
		t.Fatalf("BarAmount: %v", err)
	}
	if bar.AvailableAmount != 300 || bar.MaxAmount != 500 {
		t.Fatalf("bar = %+v", bar)
	}

	box, err := p.BoxMall(ctx, acc)
	if err != nil {
		t.Fatalf("BoxMall: %v", err)
	}
	if box.Level != 1 || box.AvailableAmount != 200 {
		t.Fatalf("box = %+v", box)
	}

	tasks, err := p.Tasks(ctx, acc)
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 3 || tasks[0].TaskID != 1 || tasks[0].Finished || !tasks[2].Finished {
		t.Fatalf("tasks = %+v", tasks)
	}

	res, err := p.FinishTask(ctx, acc, 1)
	if err != nil || !res.OK() {
		t.Fatalf("FinishTask = %+v, %v", res, err)
	}
	res, err = p.FinishTask(ctx, acc, 99)
	if err != nil || res.OK() {
		t.Fatalf("FinishTask unknown = %+v, %v", res, err)
	}

	res, err = p.LevelUp(ctx, acc)
	if err != nil || !res.OK() {
		t.Fatalf("LevelUp = %+v, %v", res, err)
	}
	res, err = p.LevelUp(ctx, acc)
	if err != nil || res.OK() {
		t.Fatalf("second LevelUp should fail for lack of gold: %+v, %v", res, err)
	}

	calls := mock.Calls()
	want := []string{
		"POST /pet/tap", "GET /pet/barAmount", "GET /pet/boxMall", "GET /task/list",
		"POST /task/finish", "POST /task/finish", "POST /pet/levelUp/1", "POST /pet/levelUp/1",
	}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v", calls)
	}
}

func TestProviderSendsCredentialAndClicks(t *testing.T) {
	var gotAuth, gotClicks, gotUA string
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotClicks = r.URL.Query().Get("clicks")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"returnCode":200,"data":{"goldAmount":7}}`))
	}))

	if _, err := p.Tap(context.Background(), model.Account{Credential: "raw-token"}, 131); err != nil {
		t.Fatalf("Tap: %v", err)
	}
	if gotAuth != "raw-token" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotClicks != "131" {
		t.Fatalf("clicks = %q", gotClicks)
	}
	if !strings.Contains(gotUA, "Telegram") {
		t.Fatalf("User-Agent = %q", gotUA)
	}
}

func TestProviderHTTPErrorIsError(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	_, err := p.BarAmount(context.Background(), model.Account{Credential: "x"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v", err)
	}
}

func TestProviderRejectedEnvelopeIsError(t *testing.T) {
	bodies := map[string]string{
		"rejected": `{"returnCode":401,"returnDesc":"token invalid","data":null}`,
		"no data":  `{"returnCode":200,"returnDesc":"success"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			ctx := context.Background()
			acc := model.Account{Credential: "stale"}

			if _, err := p.Tap(ctx, acc, 131); err == nil {
				t.Error("Tap: expected error")
			}
			if bar, err := p.BarAmount(ctx, acc); err == nil {
				t.Errorf("BarAmount = %+v, expected error", bar)
			}
			if _, err := p.BoxMall(ctx, acc); err == nil {
				t.Error("BoxMall: expected error")
			}
			if _, err := p.Tasks(ctx, acc); err == nil {
				t.Error("Tasks: expected error")
			}
		})
	}
}

func TestProviderActionReturnCodeIsNotError(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"returnCode":500,"returnDesc":"not enough gold","data":null}`))
	}))
	res, err := p.LevelUp(context.Background(), model.Account{Credential: "x"})
	if err != nil || res.OK() || res.ReturnCode != 500 {
		t.Fatalf("LevelUp = %+v, %v", res, err)
	}
}
