// Package clients provides typed HTTP clients for the UniProt and InterPro
// REST APIs. Every outbound request passes through the shared governance
// chain: response cache, then retry controller, then rate limiter, then the
// HTTP transport. Failures are mapped onto the errs taxonomy so the retry
// controller can classify them.
package clients

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"biocollect/internal/errs"
	"biocollect/internal/models"
	"biocollect/internal/ratelimit"
	"biocollect/internal/respcache"
	"biocollect/internal/retry"
)

// Deps bundles the shared governance components injected into every client.
type Deps struct {
	RateLimits *ratelimit.Manager
	Retrier    *retry.Controller
	Cache      *respcache.Cache
	Logger     *slog.Logger
}

// apiClient is the transport shared by the typed clients. It owns the cached
// client wrapping the rate-limited, retried HTTP fetch for one API.
type apiClient struct {
	apiName string
	baseURL string
	http    *http.Client
	deps    Deps
	cached  *respcache.CachedClient
}

func newAPIClient(apiName, baseURL string, cfg models.APIConfig, deps Deps) *apiClient {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &apiClient{
		apiName: apiName,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		deps:    deps,
	}
	c.cached = respcache.NewCachedClient(deps.Cache, respcache.FetcherFunc(c.fetch), deps.Logger)

	return c
}

// get performs a governed GET request and returns the response body.
func (c *apiClient) get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	return c.cached.Do(ctx, c.apiName, endpoint, params, 0)
}

// fetch is the cache-miss path: rate limit, then retry around the raw HTTP
// request.
func (c *apiClient) fetch(ctx context.Context, apiName, endpoint string, params map[string]string) ([]byte, error) {
	result, err := c.deps.Retrier.Execute(ctx, func(ctx context.Context) (any, error) {
		if c.deps.RateLimits != nil {
			if _, err := c.deps.RateLimits.Acquire(ctx, apiName, 1); err != nil {
				return nil, err
			}
		}
		return c.doRequest(ctx, endpoint, params)
	}, apiName, endpoint)
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

// doRequest executes one HTTP GET and maps failures onto the error taxonomy.
func (c *apiClient) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &errs.ValidationError{Message: fmt.Sprintf("invalid request URL %s", u), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &errs.NetworkError{Message: fmt.Sprintf("request to %s failed", c.apiName), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.NetworkError{Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &errs.APIError{
			Message:    fmt.Sprintf("%s %s returned %s", c.apiName, endpoint, resp.Status),
			StatusCode: resp.StatusCode,
		}
	}

	return body, nil
}

// Times exposes the cached/upstream latency split for this client.
func (c *apiClient) Times() respcache.ResponseTimes {
	return c.cached.Times()
}
