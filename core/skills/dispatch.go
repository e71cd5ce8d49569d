package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	coreerrors "github.com/adalundhe/parley/core/errors"
)

const (
	DefaultRemoteTimeout = 10 * time.Second
	workflowKeyHeader    = "X-API-Key"
)

// WorkflowSettings is the process-wide webhook integration.
type WorkflowSettings struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Enabled reports whether both endpoint and key are configured.
func (w WorkflowSettings) Enabled() bool {
	return w.APIURL != "" && w.APIKey != ""
}

// DispatcherConfig configures network dispatch.
type DispatcherConfig struct {
	Client        *resty.Client
	RemoteTimeout time.Duration
	RetryCount    int
	Workflow      WorkflowSettings
	Logger        *slog.Logger
}

// Dispatcher performs the network side of RemoteAPI and ExternalWorkflow
// skills.
type Dispatcher struct {
	client   *resty.Client
	timeout  time.Duration
	workflow WorkflowSettings
	logger   *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}
	if cfg.Workflow.Timeout <= 0 {
		cfg.Workflow.Timeout = cfg.RemoteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		client = resty.New().
			SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(50 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second)
		client.AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	}
	return &Dispatcher{
		client:   client,
		timeout:  cfg.RemoteTimeout,
		workflow: cfg.Workflow,
		logger:   cfg.Logger,
	}
}

// WorkflowEnabled reports whether workflow skills can run.
func (d *Dispatcher) WorkflowEnabled() bool {
	return d.workflow.Enabled()
}

// CallRemote issues the HTTP request described by opts. Non-2xx responses
// become RemoteAPI errors carrying the status.
func (d *Dispatcher) CallRemote(ctx context.Context, opts *RemoteOptions, params Params) (any, error) {
	if opts == nil || opts.Endpoint == "" {
		return nil, coreerrors.New(coreerrors.KindConfiguration, "remote skill has no endpoint")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodPost
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := d.client.R().SetContext(ctx).SetHeaders(opts.Headers)
	switch {
	case method == http.MethodGet || method == http.MethodDelete:
		req.SetQueryParams(stringParams(params))
	case opts.UseFormData:
		req.SetFormData(stringParams(params))
	default:
		req.SetHeader("Content-Type", "application/json").SetBody(params)
	}

	resp, err := req.Execute(method, opts.Endpoint)
	if err != nil {
		return nil, transportError(ctx, err, opts.Endpoint)
	}
	return decodeResponse(resp)
}

// TriggerWorkflow posts params to the configured webhook for workflowID.
// With the integration disabled it fails immediately without network I/O.
func (d *Dispatcher) TriggerWorkflow(ctx context.Context, workflowID string, params Params, ec ExecContext) (any, error) {
	if !d.workflow.Enabled() {
		return nil, coreerrors.New(coreerrors.KindConfiguration, "workflow integration is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, d.workflow.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(d.workflow.APIURL, "/") + "/webhook/" + url.PathEscape(workflowID)
	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader(workflowKeyHeader, d.workflow.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"workflowId": workflowID,
			"data":       params,
			"context":    ec,
		}).
		Post(endpoint)
	if err != nil {
		return nil, transportError(ctx, err, endpoint)
	}
	return decodeResponse(resp)
}

func transportError(ctx context.Context, err error, endpoint string) error {
	if ctx.Err() != nil {
		return coreerrors.Wrap(coreerrors.KindTimeout, "request to "+endpoint+" abandoned", err)
	}
	te := coreerrors.Wrap(coreerrors.KindRemoteAPI, "request to "+endpoint+" failed", err)
	te.Tier = coreerrors.TierTransient
	return te
}

func decodeResponse(resp *resty.Response) (any, error) {
	if !resp.IsSuccess() {
		return nil, coreerrors.NewRemoteAPIError(resp.StatusCode(),
			fmt.Sprintf("%s returned %s", resp.Request.URL, resp.Status()))
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		return decoded, nil
	}
	return string(body), nil
}

func stringParams(params Params) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
			out[k] = ""
		default:
			if b, err := json.Marshal(t); err == nil {
				out[k] = strings.Trim(string(b), `"`)
			} else {
				out[k] = fmt.Sprint(t)
			}
		}
	}
	return out
}
