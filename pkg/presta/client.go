package presta

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// APIPath is the entry point of the prestasynch module, relative to the shop root.
const APIPath = "modules/prestasynch/api.php"

// Module actions
const (
	ActionPing                   = "ping"
	ActionProducts               = "products"
	ActionProductsWithAttributes = "products_with_attributes"
	ActionStats                  = "stats"
	ActionPriceHistory           = "price_history"
)

// Target is everything needed to reach one store.
type Target struct {
	URL          string
	APIKey       string
	BasicUser    string
	BasicPass    string
	BasicEnabled bool
}

func (t Target) useBasicAuth() bool {
	return t.BasicEnabled && t.BasicUser != "" && t.BasicPass != ""
}

// Options configures the shared HTTP client.
type Options struct {
	Timeout time.Duration
	// Stores are frequently staging or self-signed; certificate checks are
	// off unless explicitly re-enabled.
	InsecureSkipVerify bool
	UserAgent          string
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:            30 * time.Second,
		InsecureSkipVerify: true,
		UserAgent:          "prestadash-sync/1.0",
	}
}

// Client is the Remote Store Client. It never retries; callers own retry policy.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient builds a client shared by every store.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rc := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetLogger(logger.Sugar()).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.InsecureSkipVerify {
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // self-signed stores
	}

	return &Client{http: rc, logger: logger}
}

// JoinURL concatenates base and endpoint with exactly one "/" between them.
func JoinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// ActionEndpoint builds the module path for an action plus extra query params.
func ActionEndpoint(action string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("action", action)
	return APIPath + "?" + q.Encode()
}

// Request sends one call to the store and returns the validated JSON body.
func (c *Client) Request(ctx context.Context, target Target, endpoint, method string, body interface{}) (json.RawMessage, error) {
	if strings.TrimSpace(target.URL) == "" {
		return nil, ErrEmptyTarget
	}
	if method == "" {
		method = http.MethodGet
	}
	fullURL := JoinURL(target.URL, endpoint)

	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", target.APIKey)
	if target.useBasicAuth() {
		req.SetBasicAuth(target.BasicUser, target.BasicPass)
	}
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, fullURL)
	if err != nil {
		c.logger.Warn("store request failed",
			zap.String("method", method),
			zap.String("url", redactURL(fullURL)),
			zap.Error(err))
		return nil, &NetworkError{URL: redactURL(fullURL), Err: err}
	}

	c.logger.Debug("store request",
		zap.String("method", method),
		zap.String("url", redactURL(fullURL)),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)))

	if !resp.IsSuccess() {
		return nil, newHTTPStatusError(resp.StatusCode(), resp.Header().Get("Content-Type"), resp.Body())
	}

	raw := resp.Body()
	if !json.Valid(raw) {
		return nil, &MalformedResponseError{Reason: "body is not valid JSON"}
	}
	if err := envelopeError(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Ping checks that the module answers with {"status": "ok"}.
func (c *Client) Ping(ctx context.Context, target Target) (*PingResp, error) {
	raw, err := c.Request(ctx, target, ActionEndpoint(ActionPing, nil), http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var res PingResp
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &MalformedResponseError{Reason: "ping", Err: err}
	}
	if !strings.EqualFold(res.Status.String(), "ok") {
		msg := res.Message.String()
		if msg == "" {
			msg = fmt.Sprintf("unexpected ping status %q", res.Status.String())
		}
		return &res, &APIError{Message: msg}
	}
	return &res, nil
}

// Products returns the raw principal product records.
func (c *Client) Products(ctx context.Context, target Target) ([]json.RawMessage, error) {
	return c.productList(ctx, target, ActionProducts)
}

// ProductsWithAttributes returns the raw attribute (variant) records.
func (c *Client) ProductsWithAttributes(ctx context.Context, target Target) ([]json.RawMessage, error) {
	return c.productList(ctx, target, ActionProductsWithAttributes)
}

func (c *Client) productList(ctx context.Context, target Target, action string) ([]json.RawMessage, error) {
	raw, err := c.Request(ctx, target, ActionEndpoint(action, nil), http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var res ProductsResp
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &MalformedResponseError{Reason: action, Err: err}
	}
	if res.Products == nil {
		return nil, &MalformedResponseError{Reason: "missing products array"}
	}
	return *res.Products, nil
}

// Stats returns the aggregate counters of the store.
func (c *Client) Stats(ctx context.Context, target Target) (*StatsPayload, error) {
	raw, err := c.Request(ctx, target, ActionEndpoint(ActionStats, nil), http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var res StatsResp
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &MalformedResponseError{Reason: "stats", Err: err}
	}
	if res.Stats == nil {
		return nil, &MalformedResponseError{Reason: "missing stats object"}
	}
	return res.Stats, nil
}

// PriceHistory returns the authoritative price timeline of one product.
func (c *Client) PriceHistory(ctx context.Context, target Target, idProduct int64) (*PriceHistoryResp, error) {
	params := url.Values{"id_product": {strconv.FormatInt(idProduct, 10)}}
	raw, err := c.Request(ctx, target, ActionEndpoint(ActionPriceHistory, params), http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var res PriceHistoryResp
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &MalformedResponseError{Reason: "price_history", Err: err}
	}
	if res.History == nil {
		return nil, &MalformedResponseError{Reason: "missing history object"}
	}
	return &res, nil
}

// envelopeError turns {"success": false, "error": "..."} into an APIError.
func envelopeError(raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// a field of unexpected type is the caller's problem, not an envelope
		return nil
	}
	refused := env.Success != nil && !*env.Success
	if !refused && env.Error == "" {
		return nil
	}
	msg := env.Error.String()
	if msg == "" {
		msg = env.Message.String()
	}
	if msg == "" {
		msg = "unknown error"
	}
	return &APIError{Message: msg}
}

// redactURL drops credentials and the query string from logged URLs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	action := u.Query().Get("action")
	u.RawQuery = ""
	if action != "" {
		u.RawQuery = "action=" + url.QueryEscape(action)
	}
	return u.String()
}

// ErrEmptyTarget is returned when a site has no URL configured.
var ErrEmptyTarget = errors.New("store url is empty")
