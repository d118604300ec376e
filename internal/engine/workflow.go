package engine

import (
	"context"
	"fmt"

	"tapfarm/internal/model"
)

// AccountError is the terminal failure of one account's workflow. It stops
// that account for the rest of the pass and nothing else.
type AccountError struct {
	AccountID string
	Label     string
	Phase     model.Phase
	Err       error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("account %s (%s): %v", e.Label, e.Phase, e.Err)
}

func (e *AccountError) Unwrap() error { return e.Err }

func (e *Engine) processAccount(ctx context.Context, passID string, acc model.Account, opts model.Options) model.AccountOutcome {
	out := model.AccountOutcome{
		PassID:    passID,
		AccountID: acc.ID,
		Label:     acc.Label,
		Phase:     model.PhaseInit,
		LevelUp:   model.LevelUpSkipped,
		StartedAt: e.now(),
	}

	err := e.runWorkflow(ctx, acc, opts, &out)
	out.FinishedAt = e.now()
	if err != nil {
		aerr := &AccountError{AccountID: acc.ID, Label: acc.Label, Phase: out.Phase, Err: err}
		out.Status = model.OutcomeAborted
		out.Error = aerr.Error()
		if e.bus != nil {
			e.bus.Log("error", "error processing account", map[string]any{
				"account": acc.Label,
				"phase":   string(out.Phase),
				"error":   err.Error(),
			})
		}
	} else {
		out.Status = model.OutcomeCompleted
		out.Phase = model.PhaseDone
	}
	e.metrics.AccountDone(string(out.Status))
	return out
}

func (e *Engine) runWorkflow(ctx context.Context, acc model.Account, opts model.Options, out *model.AccountOutcome) error {
	e.enter(acc, out, model.PhaseInit)
	if e.bus != nil {
		e.bus.Log("info", "processing account", map[string]any{"account": acc.Label})
	}
	if err := e.pace(ctx); err != nil {
		return err
	}

	if opts.AutoLevelUp {
		e.enter(acc, out, model.PhaseLevelUp)
		if err := e.levelUp(ctx, acc, out); err != nil {
			return err
		}
	}

	if opts.AutoClearTasks {
		e.enter(acc, out, model.PhaseClearTasks)
		if err := e.clearTasks(ctx, acc, out); err != nil {
			return err
		}
	}

	e.enter(acc, out, model.PhaseTapLoop)
	return e.tapLoop(ctx, acc, out)
}

func (e *Engine) enter(acc model.Account, out *model.AccountOutcome, phase model.Phase) {
	out.Phase = phase
	e.setProgress(acc.Label, phase)
}

// levelUp records a non-200 answer as failed and moves on. A call that
// exhausts its retries aborts the account.
func (e *Engine) levelUp(ctx context.Context, acc model.Account, out *model.AccountOutcome) error {
	res, err := Do(ctx, e.retrier, "levelUp", func(ctx context.Context) (model.ActionResult, error) {
		return e.provider.LevelUp(ctx, acc)
	})
	if err != nil {
		out.LevelUp = model.LevelUpFailed
		return fmt.Errorf("level up: %w", err)
	}
	out.LevelUp = model.LevelUpFailed
	if res.OK() {
		out.LevelUp = model.LevelUpSuccess
	}
	if e.bus != nil {
		e.bus.Log("info", "level up status: "+res.Status(), map[string]any{
			"account":    acc.Label,
			"returnCode": res.ReturnCode,
		})
	}
	return e.pace(ctx)
}

// clearTasks finishes every unfinished task. A failed task is logged and
// skipped; only a failed task list aborts the account.
func (e *Engine) clearTasks(ctx context.Context, acc model.Account, out *model.AccountOutcome) error {
	tasks, err := Do(ctx, e.retrier, "checkTasks", func(ctx context.Context) ([]model.Task, error) {
		return e.provider.Tasks(ctx, acc)
	})
	if err != nil {
		return fmt.Errorf("check tasks: %w", err)
	}

	for _, task := range tasks {
		if task.Finished {
			continue
		}
		res, err := Do(ctx, e.retrier, "finishTask", func(ctx context.Context) (model.ActionResult, error) {
			return e.provider.FinishTask(ctx, acc, task.TaskID)
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		switch {
		case err != nil:
			out.TasksFailed++
			e.metrics.TaskFinished(false)
			if e.bus != nil {
				e.bus.Log("warn", fmt.Sprintf("error finishing task %d", task.TaskID), map[string]any{
					"account":  acc.Label,
					"taskId":   task.TaskID,
					"taskName": task.TaskName,
					"error":    err.Error(),
				})
			}
		default:
			if res.OK() {
				out.TasksFinished++
			} else {
				out.TasksFailed++
			}
			e.metrics.TaskFinished(res.OK())
			if e.bus != nil {
				e.bus.Log("info", fmt.Sprintf("Task %d (%s) - %s", task.TaskID, task.TaskName, res.Status()), map[string]any{
					"account":    acc.Label,
					"returnCode": res.ReturnCode,
				})
			}
		}
		if err := e.pace(ctx); err != nil {
			return err
		}
	}
	return nil
}

// tapLoop taps until the bar drops below the threshold.
func (e *Engine) tapLoop(ctx context.Context, acc model.Account, out *model.AccountOutcome) error {
	for {
		clicks := e.drawClicks()
		tap, err := Do(ctx, e.retrier, "tap", func(ctx context.Context) (model.TapResult, error) {
			return e.provider.Tap(ctx, acc, clicks)
		})
		if err != nil {
			return fmt.Errorf("tap: %w", err)
		}
		if err := e.pace(ctx); err != nil {
			return err
		}

		bar, err := Do(ctx, e.retrier, "barAmount", func(ctx context.Context) (model.BarAmount, error) {
			return e.provider.BarAmount(ctx, acc)
		})
		if err != nil {
			return fmt.Errorf("bar amount: %w", err)
		}
		if err := e.pace(ctx); err != nil {
			return err
		}

		box, err := Do(ctx, e.retrier, "boxMall", func(ctx context.Context) (model.BoxMall, error) {
			return e.provider.BoxMall(ctx, acc)
		})
		if err != nil {
			return fmt.Errorf("box mall: %w", err)
		}
		if err := e.pace(ctx); err != nil {
			return err
		}

		out.Taps++
		out.Clicks += int64(clicks)
		out.Gold += tap.GoldAmount
		out.LastBar = bar
		e.metrics.ObserveTap(acc.ID, int64(clicks), tap.GoldAmount, bar.AvailableAmount)
		if e.bus != nil {
			e.bus.Log("info", "tap result", map[string]any{
				"account":          acc.Label,
				"clicks":           clicks,
				"gold":             tap.GoldAmount,
				"boxMallLevel":     box.Level,
				"boxMallAvailable": box.AvailableAmount,
				"bar":              fmt.Sprintf("%d/%d", bar.AvailableAmount, bar.MaxAmount),
			})
		}

		if bar.AvailableAmount < e.workflow.BarThreshold {
			return nil
		}
	}
}

// drawClicks picks a click count uniformly from [MinClicks, MaxClicks].
func (e *Engine) drawClicks() int {
	lo, hi := e.workflow.MinClicks, e.workflow.MaxClicks
	return lo + e.intn(hi-lo+1)
}
