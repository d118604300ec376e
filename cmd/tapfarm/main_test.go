package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tapfarm/internal/config"
	"tapfarm/internal/mockapi"
	"tapfarm/internal/prompt"
	"tapfarm/internal/store/sqlite"
)

func writeFixture(t *testing.T, baseURL string) (configPath string, cfg config.Config) {
	t.Helper()
	dir := t.TempDir()
	hashFile := filepath.Join(dir, "hash.txt")
	if err := os.WriteFile(hashFile, []byte("query_id=first-aaaaaa\n\n# paused\nquery_id=second-bbbbbb\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	dbPath := filepath.Join(dir, "data", "tapfarm.db")
	configPath = filepath.Join(dir, "config.yaml")
	yml := fmt.Sprintf(`
storage:
  sqlitePath: %q
provider:
  baseURL: %q
  timeoutMs: 2000
limits:
  globalQPS: 1000
  globalBurst: 100
workflow:
  pacingMs: 1
  retryWaitMs: 1
  autoClearTasks: true
  autoLevelUp: false
accounts:
  file: %q
log:
  level: error
`, dbPath, baseURL, hashFile)
	if err := os.WriteFile(configPath, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return configPath, cfg
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAccountsCommandMasksCredentials(t *testing.T) {
	configPath, _ := writeFixture(t, "http://127.0.0.1:1")
	out, err := execute(t, "--config", configPath, "accounts")
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if strings.Contains(out, "query_id=first") {
		t.Fatalf("credential leaked:\n%s", out)
	}
	if !strings.Contains(out, "#1 …aaaaaa") || !strings.Contains(out, "#4 …bbbbbb") || !strings.Contains(out, "2 account(s)") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestHistoryCommandEmpty(t *testing.T) {
	configPath, _ := writeFixture(t, "http://127.0.0.1:1")
	out, err := execute(t, "--config", configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "no passes recorded") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestAskOptionsUsesPresetsBeforePrompting(t *testing.T) {
	yes := true
	var out bytes.Buffer
	asker := prompt.New(strings.NewReader("n\n"), &out, true)
	opts, err := askOptions(asker, config.WorkflowConfig{AutoClearTasks: &yes})
	if err != nil {
		t.Fatalf("askOptions: %v", err)
	}
	if !opts.AutoClearTasks || opts.AutoLevelUp {
		t.Fatalf("opts = %+v", opts)
	}
	if out.String() != "Auto Max Level Up (y/n)? " {
		t.Fatalf("prompts = %q", out.String())
	}
}

func TestAskOptionsReadsPipedAnswers(t *testing.T) {
	asker := prompt.New(strings.NewReader("y\ny\n"), &bytes.Buffer{}, false)
	opts, err := askOptions(asker, config.WorkflowConfig{})
	if err != nil {
		t.Fatalf("askOptions: %v", err)
	}
	if !opts.AutoClearTasks || !opts.AutoLevelUp {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestRunFarmerRecordsPassesUntilCancelled(t *testing.T) {
	mock := mockapi.New(mockapi.Options{Prefix: "/mock", MaxBar: 300})
	srv := httptest.NewServer(mock)
	defer srv.Close()
	configPath, cfg := writeFixture(t, srv.URL+"/mock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runFarmer(ctx, cfg, prompt.New(strings.NewReader(""), &bytes.Buffer{}, false))
	}()

	deadline := time.Now().Add(10 * time.Second)
	for {
		st, err := sqlite.Open(context.Background(), cfg.Storage.SQLitePath)
		if err == nil {
			passes, _ := st.ListPasses(context.Background(), 1)
			_ = st.Close()
			if len(passes) == 1 {
				break
			}
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("no pass recorded")
		}
		time.Sleep(50 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runFarmer: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runFarmer did not stop")
	}

	if mock.Gold("query_id=first-aaaaaa") == 0 || mock.Gold("query_id=second-bbbbbb") == 0 {
		t.Fatal("accounts not farmed")
	}

	out, err := execute(t, "--config", configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 || !strings.HasPrefix(lines[0], "SEQ") {
		t.Fatalf("history output:\n%s", out)
	}
}
