// Package webpay is the protocol client for the Webpay Plus REST API.  It
// creates transactions and commits them; it holds no state beyond its
// credentials and never panics or leaks transport errors untyped.
package webpay

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/altamontana/booking-api/internal/config"
)

// maxBodyBytes bounds what is read from a provider response.
const maxBodyBytes = 1 << 20

// HTTPClient is the subset of *http.Client the adapter needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one Webpay environment with one set of credentials.
type Client struct {
	baseURL      string
	commerceCode string
	apiSecret    string
	userAgent    string
	httpClient   HTTPClient
	logger       *zap.Logger
}

// NewClient builds a Client.  httpClient should come from NewHTTPClient in
// production so the HTTP/1.1 pin and the timeout apply.
func NewClient(cfg config.WebpayConfig, httpClient HTTPClient, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		commerceCode: cfg.CommerceCode,
		apiSecret:    cfg.APISecret,
		userAgent:    cfg.UserAgent,
		httpClient:   httpClient,
		logger:       logger.Named("webpay"),
	}
}

// Create opens a transaction and returns the redirect handle.  The amount is
// rounded to an integer (the provider works in whole pesos).
func (c *Client) Create(ctx context.Context, req CreateRequest) (TransactionHandle, error) {
	amount := req.Amount.Round(0).IntPart()
	if amount <= 0 {
		return TransactionHandle{}, ErrInvalidAmount
	}

	body, err := json.Marshal(createPayload{
		BuyOrder:  req.BuyOrder,
		SessionID: req.SessionID,
		Amount:    amount,
		ReturnURL: req.ReturnURL,
	})
	if err != nil {
		return TransactionHandle{}, err
	}

	status, raw, err := c.do(ctx, "create", http.MethodPost, c.baseURL+"/transactions", body)
	if err != nil {
		c.logger.Error("create transaction unreachable",
			zap.String("buy_order", req.BuyOrder),
			zap.Error(err),
		)
		return TransactionHandle{}, err
	}
	if !isSuccess(status) {
		c.logger.Warn("create transaction rejected",
			zap.String("buy_order", req.BuyOrder),
			zap.Int("status", status),
			zap.ByteString("body", raw),
		)
		return TransactionHandle{}, &ProviderError{Op: "create", Kind: KindRejected, Status: status, Body: string(raw)}
	}

	var handle TransactionHandle
	if err := json.Unmarshal(raw, &handle); err != nil || handle.Token == "" || handle.URL == "" {
		c.logger.Warn("create transaction returned an unusable body",
			zap.String("buy_order", req.BuyOrder),
			zap.ByteString("body", raw),
		)
		return TransactionHandle{}, &ProviderError{Op: "create", Kind: KindRejected, Status: status, Body: string(raw), Err: err}
	}

	c.logger.Info("transaction created",
		zap.String("buy_order", req.BuyOrder),
		zap.Int64("amount", amount),
	)
	return handle, nil
}

// Commit confirms a transaction and returns the provider's result.  A 2xx
// answer always yields a CommitResult, approved or not; callers must check
// Approved.  A 2xx body that cannot be parsed is reported as KindAmbiguous
// because the provider may have settled the payment.
func (c *Client) Commit(ctx context.Context, token string) (CommitResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return CommitResult{}, ErrEmptyToken
	}

	endpoint := c.baseURL + "/transactions/" + url.PathEscape(token)
	status, raw, err := c.do(ctx, "commit", http.MethodPut, endpoint, nil)
	if err != nil {
		c.logger.Error("commit unreachable", zap.Error(err))
		return CommitResult{}, err
	}
	if !isSuccess(status) {
		kind := classifyCommitFailure(status, raw)
		c.logger.Warn("commit refused",
			zap.Int("status", status),
			zap.Stringer("kind", kind),
			zap.ByteString("body", raw),
		)
		return CommitResult{}, &ProviderError{Op: "commit", Kind: kind, Status: status, Body: string(raw)}
	}

	var result CommitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Error("commit body unparseable", zap.ByteString("body", raw), zap.Error(err))
		return CommitResult{}, &ProviderError{Op: "commit", Kind: KindAmbiguous, Status: status, Body: string(raw), Err: err}
	}
	result.Raw = append(json.RawMessage(nil), raw...)

	c.logger.Info("transaction committed",
		zap.String("buy_order", result.BuyOrder),
		zap.Int("response_code", result.ResponseCode),
		zap.String("status", result.Status),
	)
	return result, nil
}

// do sends one request with the provider headers.  Transport failures come
// back as KindUnreachable; any HTTP answer is returned as status + body.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte) (int, []byte, error) {
	if body == nil {
		body = []byte{}
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, &ProviderError{Op: op, Kind: KindUnreachable, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Tbk-Api-Key-Id", c.commerceCode)
	req.Header.Set("Tbk-Api-Key-Secret", c.apiSecret)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &ProviderError{Op: op, Kind: KindUnreachable, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, &ProviderError{Op: op, Kind: KindUnreachable, Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, raw, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
