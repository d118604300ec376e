package provider

import (
	"context"

	"tapfarm/internal/model"
)

// Provider is the remote game service. Every call is authorized by the
// account's credential alone.
type Provider interface {
	Name() string

	Tap(ctx context.Context, account model.Account, clicks int) (model.TapResult, error)
	BarAmount(ctx context.Context, account model.Account) (model.BarAmount, error)
	BoxMall(ctx context.Context, account model.Account) (model.BoxMall, error)
	Tasks(ctx context.Context, account model.Account) ([]model.Task, error)
	FinishTask(ctx context.Context, account model.Account, taskID int64) (model.ActionResult, error)
	LevelUp(ctx context.Context, account model.Account) (model.ActionResult, error)
}
