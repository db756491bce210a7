package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/creatorsats/creatorsats-backend/pkg/config"
	pkgerrors "github.com/creatorsats/creatorsats-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

// Client talks to a REST chain indexer. It implements Gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// GetTransaction fetches a transaction by chain-native id.
func (c *Client) GetTransaction(ctx context.Context, txid string) (*Tx, error) {
	trimmed := strings.TrimSpace(txid)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "txid is required")
	}

	endpoint := fmt.Sprintf("%s/tx/%s", c.baseURL, url.PathEscape(trimmed))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build get transaction request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute get transaction request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("get transaction %s: %w", trimmed, ErrTxNotFound)
	case resp.StatusCode >= 500:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, statusError(resp), "get transaction failed")
	case resp.StatusCode != http.StatusOK:
		// 4xx other than 404 means the request itself is bad; retrying
		// the same call cannot help.
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, statusError(resp), "get transaction rejected")
	}

	var tx Tx
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode transaction response")
	}

	return &tx, nil
}

// BroadcastTransaction submits raw transaction bytes and returns the txid.
func (c *Client) BroadcastTransaction(ctx context.Context, rawHex string) (string, error) {
	trimmed := strings.TrimSpace(rawHex)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "raw transaction hex is required")
	}

	payload, err := json.Marshal(map[string]string{"raw": trimmed})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal broadcast request")
	}

	endpoint := c.baseURL + "/tx/broadcast"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build broadcast request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute broadcast request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, statusError(resp), "broadcast failed")
	case resp.StatusCode != http.StatusOK:
		// Node rejected the transaction itself; fatal.
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, statusError(resp), "broadcast rejected")
	}

	var apiResp struct {
		TxID string `json:"txid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode broadcast response")
	}
	if apiResp.TxID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "broadcast response missing txid")
	}

	return apiResp.TxID, nil
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}
