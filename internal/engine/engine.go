package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tapfarm/internal/config"
	"tapfarm/internal/logbus"
	"tapfarm/internal/metrics"
	"tapfarm/internal/model"
	"tapfarm/internal/notify"
	"tapfarm/internal/provider"
)

// Recorder persists finished passes for the history API.
type Recorder interface {
	SavePass(ctx context.Context, pass model.PassSummary) error
}

type Options struct {
	Provider provider.Provider
	Bus      *logbus.Bus
	Recorder Recorder
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Limits   config.LimitsConfig
	Workflow config.WorkflowConfig

	// Sleep and Intn replace the real clock and random source in tests.
	Sleep SleepFunc
	Intn  func(n int) int
}

// Engine runs every account through the farming workflow, one account at a
// time, and repeats the pass forever with an idle cooldown in between.
type Engine struct {
	provider provider.Provider
	bus      *logbus.Bus
	recorder Recorder
	notifier notify.Notifier
	metrics  *metrics.Metrics

	workflow config.WorkflowConfig
	retrier  *Retrier
	limiter  *rate.Limiter
	sleep    SleepFunc
	intn     func(n int) int
	now      func() time.Time

	mu    sync.Mutex
	state model.EngineState
}

func New(opts Options) *Engine {
	globalQPS := opts.Limits.GlobalQPS
	if globalQPS <= 0 {
		globalQPS = 5
	}
	globalBurst := opts.Limits.GlobalBurst
	if globalBurst <= 0 {
		globalBurst = 5
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	intn := opts.Intn
	if intn == nil {
		intn = rand.IntN
	}

	wf := opts.Workflow
	if wf.MinClicks <= 0 {
		wf.MinClicks = 131
	}
	if wf.MaxClicks < wf.MinClicks {
		wf.MaxClicks = 432
	}
	if wf.BarThreshold <= 0 {
		wf.BarThreshold = 50
	}

	e := &Engine{
		provider: opts.Provider,
		bus:      opts.Bus,
		recorder: opts.Recorder,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		workflow: wf,
		limiter:  rate.NewLimiter(rate.Limit(globalQPS), globalBurst),
		sleep:    sleep,
		intn:     intn,
		now:      time.Now,
	}
	e.retrier = NewRetrier(RetryPolicy{
		Attempts: wf.RetryAttempts,
		Wait:     wf.RetryWait(),
	}, sleep, opts.Bus, opts.Metrics).withGate(e.limiter.Wait)
	return e
}

// Run loops forever: one pass over accounts, then the idle cooldown. It only
// returns when ctx is cancelled or when there is nothing to farm.
func (e *Engine) Run(ctx context.Context, accounts []model.Account, opts model.Options) error {
	if len(accounts) == 0 {
		return errors.New("no accounts to farm")
	}

	e.mu.Lock()
	if e.state.Running {
		e.mu.Unlock()
		return errors.New("engine already running")
	}
	e.state.Running = true
	e.state.Options = opts
	e.publishStateLocked()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.state.Running = false
		e.state.CurrentAccount = ""
		e.state.Phase = ""
		e.state.NextPassAtMs = 0
		e.publishStateLocked()
		e.mu.Unlock()
	}()

	if e.bus != nil {
		e.bus.Log("info", "farmer started", map[string]any{
			"provider":       e.provider.Name(),
			"accounts":       len(accounts),
			"autoClearTasks": opts.AutoClearTasks,
			"autoLevelUp":    opts.AutoLevelUp,
		})
	}

	idle := e.workflow.Idle()
	for seq := 1; ; seq++ {
		e.RunPass(ctx, seq, accounts, opts)
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.bus != nil {
			e.bus.Log("info", "all accounts processed, waiting", map[string]any{
				"pass": seq,
				"idle": idle.String(),
			})
		}
		e.mu.Lock()
		e.state.CurrentAccount = ""
		e.state.Phase = model.PhaseIdle
		e.state.NextPassAtMs = e.now().Add(idle).UnixMilli()
		e.publishStateLocked()
		e.mu.Unlock()

		if !e.sleep(ctx, idle) {
			return ctx.Err()
		}
	}
}

// RunPass runs each account once, in order. An aborted account never
// prevents the next one from starting.
func (e *Engine) RunPass(ctx context.Context, seq int, accounts []model.Account, opts model.Options) model.PassSummary {
	pass := model.PassSummary{
		ID:        uuid.NewString(),
		Seq:       seq,
		StartedAt: e.now(),
	}

	e.mu.Lock()
	e.state.Pass = seq
	e.state.NextPassAtMs = 0
	e.publishStateLocked()
	e.mu.Unlock()

	for _, acc := range accounts {
		if ctx.Err() != nil {
			break
		}
		out := e.processAccount(ctx, pass.ID, acc, opts)
		pass.Outcomes = append(pass.Outcomes, out)
		pass.Gold += out.Gold
		if out.Status == model.OutcomeCompleted {
			pass.Completed++
		} else {
			pass.Aborted++
		}
	}
	pass.FinishedAt = e.now()

	e.finishPass(ctx, pass)
	return pass
}

func (e *Engine) finishPass(ctx context.Context, pass model.PassSummary) {
	e.metrics.PassDone(pass.FinishedAt.Sub(pass.StartedAt).Seconds())

	e.mu.Lock()
	last := pass
	e.state.LastPass = &last
	e.publishStateLocked()
	e.mu.Unlock()

	if e.bus != nil {
		e.bus.Publish("pass", pass)
	}

	// Side channels still run when shutdown interrupted the pass.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if e.recorder != nil {
		if err := e.recorder.SavePass(sideCtx, pass); err != nil && e.bus != nil {
			e.bus.Log("warn", "save pass failed", map[string]any{
				"passId": pass.ID,
				"error":  err.Error(),
			})
		}
	}
	if e.notifier != nil {
		e.notifier.NotifyPassCompleted(sideCtx, pass)
	}
}

func (e *Engine) State() model.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.state
	if out.LastPass != nil {
		last := *out.LastPass
		out.LastPass = &last
	}
	return out
}

func (e *Engine) setProgress(accountLabel string, phase model.Phase) {
	e.mu.Lock()
	e.state.CurrentAccount = accountLabel
	e.state.Phase = phase
	e.publishStateLocked()
	e.mu.Unlock()
}

func (e *Engine) publishStateLocked() {
	if e.bus != nil {
		st := e.state
		st.LastPass = nil
		e.bus.Publish("state", st)
	}
}

// pace is the fixed politeness delay after each remote call.
func (e *Engine) pace(ctx context.Context) error {
	if !e.sleep(ctx, e.workflow.Pacing()) {
		return ctx.Err()
	}
	return nil
}
