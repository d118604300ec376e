package djdog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"tapfarm/internal/config"
	"tapfarm/internal/logbus"
	"tapfarm/internal/model"
	"tapfarm/internal/utils"
)

type Provider struct {
	cfg      config.ProviderConfig
	proxyCfg config.ProxyConfig
	bus      *logbus.Bus
	client   *resty.Client
}

// New builds a client for the DJDog pet API. resty's own retry is disabled;
// callers wrap each call with the engine's retry policy.
func New(cfg config.ProviderConfig, proxyCfg config.ProxyConfig, bus *logbus.Bus) *Provider {
	p := &Provider{
		cfg:      cfg,
		proxyCfg: proxyCfg,
		bus:      bus,
	}
	p.client = p.newClient()
	return p
}

func (p *Provider) Name() string { return "djdog" }

type apiEnvelope[T any] struct {
	ReturnCode int    `json:"returnCode"`
	ReturnDesc string `json:"returnDesc,omitempty"`
	Data       *T     `json:"data"`
}

type taskListData struct {
	TaskDetails []model.Task `json:"taskDetails"`
}

// fetch runs a data read. A rejected envelope or a missing data object is an
// error, never a zero snapshot.
func fetch[T any](p *Provider, req *resty.Request, method, path string) (T, error) {
	var zero T
	var resp apiEnvelope[T]
	if err := p.do(req.SetResult(&resp), method, path); err != nil {
		return zero, err
	}
	if resp.ReturnCode != model.ReturnCodeOK {
		return zero, fmt.Errorf("%s %s: returnCode %d: %s", method, path, resp.ReturnCode, resp.ReturnDesc)
	}
	if resp.Data == nil {
		return zero, fmt.Errorf("%s %s: response has no data", method, path)
	}
	return *resp.Data, nil
}

func (p *Provider) Tap(ctx context.Context, account model.Account, clicks int) (model.TapResult, error) {
	req := p.request(ctx, account).SetQueryParam("clicks", strconv.Itoa(clicks))
	return fetch[model.TapResult](p, req, "POST", "/pet/tap")
}

func (p *Provider) BarAmount(ctx context.Context, account model.Account) (model.BarAmount, error) {
	return fetch[model.BarAmount](p, p.request(ctx, account), "GET", "/pet/barAmount")
}

func (p *Provider) BoxMall(ctx context.Context, account model.Account) (model.BoxMall, error) {
	return fetch[model.BoxMall](p, p.request(ctx, account), "GET", "/pet/boxMall")
}

func (p *Provider) Tasks(ctx context.Context, account model.Account) ([]model.Task, error) {
	data, err := fetch[taskListData](p, p.request(ctx, account), "GET", "/task/list")
	if err != nil {
		return nil, err
	}
	return data.TaskDetails, nil
}

func (p *Provider) FinishTask(ctx context.Context, account model.Account, taskID int64) (model.ActionResult, error) {
	var resp apiEnvelope[any]
	err := p.do(p.request(ctx, account).
		SetQueryParam("taskIds", strconv.FormatInt(taskID, 10)).
		SetResult(&resp), "POST", "/task/finish")
	if err != nil {
		return model.ActionResult{}, err
	}
	return model.ActionResult{ReturnCode: resp.ReturnCode, ReturnDesc: resp.ReturnDesc}, nil
}

func (p *Provider) LevelUp(ctx context.Context, account model.Account) (model.ActionResult, error) {
	var resp apiEnvelope[any]
	if err := p.do(p.request(ctx, account).SetResult(&resp), "POST", "/pet/levelUp/1"); err != nil {
		return model.ActionResult{}, err
	}
	return model.ActionResult{ReturnCode: resp.ReturnCode, ReturnDesc: resp.ReturnDesc}, nil
}

func (p *Provider) request(ctx context.Context, account model.Account) *resty.Request {
	return p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", account.Credential)
}

// do executes the request and turns transport failures and HTTP error
// statuses into errors.
func (p *Provider) do(req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode())
	}
	return nil
}

func (p *Provider) newClient() *resty.Client {
	client := resty.New().
		SetBaseURL(p.cfg.BaseURL).
		SetTimeout(p.cfg.Timeout()).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", utils.NormalizeMobileUserAgent(p.cfg.UserAgent))

	if p.proxyCfg.Global != "" {
		client.SetProxy(p.proxyCfg.Global)
	}

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if p.bus != nil {
			p.bus.Log("debug", "http request", map[string]any{
				"method": req.Method,
				"url":    req.URL,
			})
		}
		return nil
	})

	return client
}
