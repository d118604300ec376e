package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tapfarm/internal/model"
)

type Notifier interface {
	NotifyPassCompleted(ctx context.Context, pass model.PassSummary)
}

// Multi fans one event out to every configured channel.
type Multi []Notifier

func (m Multi) NotifyPassCompleted(ctx context.Context, pass model.PassSummary) {
	for _, n := range m {
		if n != nil {
			n.NotifyPassCompleted(ctx, pass)
		}
	}
}

func passSubject(pass model.PassSummary) string {
	return fmt.Sprintf("tapfarm pass #%d: %d completed, %d aborted", pass.Seq, pass.Completed, pass.Aborted)
}

// passText renders a plain-text pass report, one line per account.
func passText(pass model.PassSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pass #%d finished in %s\n", pass.Seq, pass.FinishedAt.Sub(pass.StartedAt).Round(time.Second))
	fmt.Fprintf(&sb, "Accounts: %d completed, %d aborted. Gold: %d\n", pass.Completed, pass.Aborted, pass.Gold)
	for _, o := range pass.Outcomes {
		fmt.Fprintf(&sb, "%s  %s  taps=%d gold=%d bar=%d/%d", o.Label, o.Status, o.Taps, o.Gold, o.LastBar.AvailableAmount, o.LastBar.MaxAmount)
		if o.Error != "" {
			fmt.Fprintf(&sb, "  error=%s", o.Error)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
