package generate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cgast/gigsmith/pkg/task"
	"github.com/cgast/gigsmith/pkg/verify"
)

var ErrDomainNotAllowed = errors.New("domain is not in the allowed list")

// HTTPConfig points at a remote generation service.
type HTTPConfig struct {
	Endpoint       string   `yaml:"endpoint" json:"endpoint"`
	APIKey         string   `yaml:"api_key" json:"-"`
	AllowedDomains []string `yaml:"allowed_domains" json:"allowed_domains,omitempty"`
	// ResultPath is the gjson path of the candidate inside the response.
	ResultPath string `yaml:"result_path" json:"result_path,omitempty"`
}

// HTTP posts each request as JSON to a remote service and decodes the
// candidate from its response. Retries are left to the task runner.
type HTTP struct {
	client     *resty.Client
	endpoint   string
	resultPath string
}

// NewHTTP creates an HTTP backend. The endpoint must be in the allowed
// domains when any are configured.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if err := checkAllowedDomain(cfg.Endpoint, cfg.AllowedDomains); err != nil {
		return nil, fmt.Errorf("http backend: %w", err)
	}
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(2 * time.Minute).
		SetRetryCount(0)
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	path := cfg.ResultPath
	if path == "" {
		path = "output"
	}
	return &HTTP{client: client, endpoint: cfg.Endpoint, resultPath: path}, nil
}

type httpRequest struct {
	TaskID   string       `json:"task_id"`
	Prompt   string       `json:"prompt"`
	Contract string       `json:"contract"`
	Fields   []task.Field `json:"fields"`
}

func (g *HTTP) Generate(ctx context.Context, req task.Request) (verify.Document, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(httpRequest{
			TaskID:   req.TaskID,
			Prompt:   req.Prompt,
			Contract: Contract(req),
			Fields:   req.Fields,
		}).
		Post(g.endpoint)
	if err != nil {
		return nil, fmt.Errorf("http %s: %w", req.TaskID, err)
	}

	code := resp.StatusCode()
	switch {
	case code == 429 || code == 408 || code >= 500:
		return nil, fmt.Errorf("http %s: status %d", req.TaskID, code)
	case code >= 400:
		// Client errors do not go away on retry.
		return nil, fmt.Errorf("http %s: status %d: %w", req.TaskID, code, task.ErrUnavailable)
	}

	doc, err := DecodeAt(resp.String(), g.resultPath, req.Fields)
	if err != nil {
		return nil, fmt.Errorf("http %s: %w", req.TaskID, err)
	}
	return doc, nil
}

// checkAllowedDomain verifies the URL's host is in the allowlist. If no
// allowed domains are configured, all hosts are permitted.
func checkAllowedDomain(rawURL string, allowedDomains []string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid endpoint %q", rawURL)
	}
	if len(allowedDomains) == 0 {
		return nil
	}
	host := parsed.Hostname()
	for _, d := range allowedDomains {
		if host == d {
			return nil
		}
	}
	return fmt.Errorf("%q: %w", host, ErrDomainNotAllowed)
}
