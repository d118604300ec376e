package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tapfarm/internal/accounts"
	"tapfarm/internal/config"
	"tapfarm/internal/engine"
	"tapfarm/internal/httpapi"
	"tapfarm/internal/logbus"
	"tapfarm/internal/metrics"
	"tapfarm/internal/model"
	"tapfarm/internal/notify"
	"tapfarm/internal/prompt"
	"tapfarm/internal/provider/djdog"
	"tapfarm/internal/store/sqlite"
)

func newRunCmd(configPath *string) *cobra.Command {
	var clearTasks, levelUp bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Farm every account until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("auto-clear-tasks") {
				cfg.Workflow.AutoClearTasks = &clearTasks
			}
			if cmd.Flags().Changed("auto-level-up") {
				cfg.Workflow.AutoLevelUp = &levelUp
			}
			return runFarmer(cmd.Context(), cfg, prompt.Stdio())
		},
	}

	cmd.Flags().BoolVar(&clearTasks, "auto-clear-tasks", false, "finish open tasks for every account (skips the prompt)")
	cmd.Flags().BoolVar(&levelUp, "auto-level-up", false, "level up every account before tapping (skips the prompt)")
	return cmd
}

func runFarmer(ctx context.Context, cfg config.Config, asker *prompt.Asker) error {
	bus := logbus.New(500)
	defer bus.Close()
	bus.AddSink(logbus.ConsoleSink(os.Stdout, cfg.Log.Level))

	accs, err := accounts.LoadFile(cfg.Accounts.File)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer store.Close()

	accs, err = store.SyncAccounts(ctx, accs)
	if err != nil {
		return fmt.Errorf("sync accounts: %w", err)
	}

	opts, err := askOptions(asker, cfg.Workflow)
	if err != nil {
		return err
	}

	notifier, email := buildNotifiers(cfg.Notify, bus)
	m := metrics.New()
	eng := engine.New(engine.Options{
		Provider: djdog.New(cfg.Provider, cfg.Proxy, bus),
		Bus:      bus,
		Recorder: store,
		Notifier: notifier,
		Metrics:  m,
		Limits:   cfg.Limits,
		Workflow: cfg.Workflow,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var server *http.Server
	if cfg.Server.Addr != "" {
		api := httpapi.New(httpapi.Options{
			Cfg:     cfg,
			Bus:     bus,
			Store:   store,
			Engine:  eng,
			Metrics: m,
		})
		server = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				bus.Log("error", "http server error", map[string]any{"error": err.Error()})
			}
		}()
		bus.Log("info", "status api listening", map[string]any{"addr": cfg.Server.Addr})
	}

	runErr := eng.Run(ctx, accs, opts)
	if errors.Is(runErr, context.Canceled) {
		bus.Log("info", "shutdown signal received", nil)
		runErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	if email != nil {
		_ = email.Close(shutdownCtx)
	}
	bus.Log("info", "farmer stopped", nil)
	return runErr
}

// askOptions resolves both workflow switches once, before the first pass.
func askOptions(asker *prompt.Asker, wf config.WorkflowConfig) (model.Options, error) {
	clearTasks, err := asker.YesNo("Auto Clear Task (y/n)? ", wf.AutoClearTasks)
	if err != nil {
		return model.Options{}, fmt.Errorf("read answer: %w", err)
	}
	levelUp, err := asker.YesNo("Auto Max Level Up (y/n)? ", wf.AutoLevelUp)
	if err != nil {
		return model.Options{}, fmt.Errorf("read answer: %w", err)
	}
	return model.Options{AutoClearTasks: clearTasks, AutoLevelUp: levelUp}, nil
}

// buildNotifiers returns the enabled pass notifiers. The email notifier is
// also returned on its own so its queue can be drained on shutdown.
func buildNotifiers(cfg config.NotifyConfig, bus *logbus.Bus) (notify.Multi, *notify.EmailNotifier) {
	var out notify.Multi
	var email *notify.EmailNotifier
	if cfg.Email.Enabled {
		email = notify.NewEmailNotifier(cfg.Email, bus)
		out = append(out, email)
	}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram, bus)
		if err != nil {
			bus.Log("warn", "telegram notifier disabled", map[string]any{"error": err.Error()})
		} else {
			out = append(out, tg)
		}
	}
	return out, email
}
