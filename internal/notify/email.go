package notify

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/mail"
	"strings"
	"sync"
	"time"

	"gopkg.in/gomail.v2"

	"tapfarm/internal/config"
	"tapfarm/internal/logbus"
	"tapfarm/internal/model"
)

// EmailNotifier sends pass reports from a background queue so a slow SMTP
// server never holds up the scheduler.
type EmailNotifier struct {
	cfg  config.EmailConfig
	bus  *logbus.Bus
	send func(*gomail.Message) error

	mu     sync.Mutex
	queue  chan model.PassSummary
	ctx    context.Context
	cancel func()
	wg     sync.WaitGroup
}

func NewEmailNotifier(cfg config.EmailConfig, bus *logbus.Bus) *EmailNotifier {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Port == 465
	return newEmailNotifier(cfg, bus, d.DialAndSend)
}

func newEmailNotifier(cfg config.EmailConfig, bus *logbus.Bus, send func(...*gomail.Message) error) *EmailNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &EmailNotifier{
		cfg:    cfg,
		bus:    bus,
		send:   func(m *gomail.Message) error { return send(m) },
		queue:  make(chan model.PassSummary, 16),
		ctx:    ctx,
		cancel: cancel,
	}
	n.wg.Add(1)
	go n.loop()
	return n
}

// Close drains queued reports, then stops the sender.
func (n *EmailNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *EmailNotifier) NotifyPassCompleted(_ context.Context, pass model.PassSummary) {
	select {
	case n.queue <- pass:
	default:
		if n.bus != nil {
			n.bus.Log("warn", "email report dropped: queue full", map[string]any{"pass": pass.Seq})
		}
	}
}

func (n *EmailNotifier) loop() {
	defer n.wg.Done()
	for {
		select {
		case pass := <-n.queue:
			n.deliver(pass)
		case <-n.ctx.Done():
			for {
				select {
				case pass := <-n.queue:
					n.deliver(pass)
				default:
					return
				}
			}
		}
	}
}

func (n *EmailNotifier) deliver(pass model.PassSummary) {
	msg, err := buildPassEmail(n.cfg, pass)
	if err == nil {
		err = n.send(msg)
	}
	if n.bus == nil {
		return
	}
	if err != nil {
		n.bus.Log("warn", "email report failed", map[string]any{
			"pass":  pass.Seq,
			"error": err.Error(),
		})
		return
	}
	n.bus.Log("info", "email report sent", map[string]any{
		"pass": pass.Seq,
		"to":   strings.TrimSpace(n.cfg.To),
	})
}

func validateEmailConfig(c config.EmailConfig) error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.New("smtp host is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(c.To)); err != nil {
		return errors.New("invalid recipient address")
	}
	return nil
}

func buildPassEmail(c config.EmailConfig, pass model.PassSummary) (*gomail.Message, error) {
	if err := validateEmailConfig(c); err != nil {
		return nil, err
	}
	from := strings.TrimSpace(c.From)
	if from == "" {
		from = strings.TrimSpace(c.Username)
	}
	if from == "" {
		from = strings.TrimSpace(c.To)
	}

	var html bytes.Buffer
	if err := passHTMLTpl.Execute(&html, pass); err != nil {
		return nil, err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(from, "tapfarm"))
	msg.SetHeader("To", strings.TrimSpace(c.To))
	msg.SetHeader("Subject", passSubject(pass))
	msg.SetBody("text/plain", passText(pass))
	msg.AddAlternative("text/html", html.String())
	return msg, nil
}

var passHTMLTpl = template.Must(template.New("pass").Funcs(template.FuncMap{
	"dur": func(a, b time.Time) string { return b.Sub(a).Round(time.Second).String() },
}).Parse(`<!doctype html>
<html lang="en">
  <head><meta charset="utf-8" /><title>Pass #{{ .Seq }}</title></head>
  <body style="font-family:-apple-system,'Segoe UI',Roboto,Arial,sans-serif;background:#f6f8fb;padding:24px;">
    <div style="max-width:720px;margin:0 auto;background:#fff;border:1px solid #e6e8ef;border-radius:12px;padding:20px;">
      <div style="font-size:16px;font-weight:700;">Pass #{{ .Seq }}</div>
      <div style="color:#6b7280;font-size:12px;margin-top:4px;">
        {{ .Completed }} completed, {{ .Aborted }} aborted, {{ .Gold }} gold in {{ dur .StartedAt .FinishedAt }}
      </div>
      <table style="width:100%;border-collapse:collapse;margin-top:14px;font-size:12px;">
        <tr style="background:#fafbff;color:#6b7280;">
          <td style="padding:8px;">Account</td><td>Status</td><td>Taps</td><td>Gold</td><td>Bar</td><td>Error</td>
        </tr>
        {{ range .Outcomes }}
        <tr style="border-top:1px solid #eef0f6;">
          <td style="padding:8px;">{{ .Label }}</td><td>{{ .Status }}</td><td>{{ .Taps }}</td><td>{{ .Gold }}</td>
          <td>{{ .LastBar.AvailableAmount }}/{{ .LastBar.MaxAmount }}</td><td>{{ .Error }}</td>
        </tr>
        {{ end }}
      </table>
    </div>
  </body>
</html>
`))
