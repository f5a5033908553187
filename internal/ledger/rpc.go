package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"

	"github.com/i474232898/weather-oracle/internal/logging"
)

// RPCError is a JSON-RPC error object returned by the full node.
type RPCError struct {
	Method  string
	Code    int64
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s: code %d: %s", e.Method, e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcTransport posts JSON-RPC 2.0 requests. Transport failures and 5xx
// responses are retried by retryablehttp; RPC error objects are not.
type rpcTransport struct {
	url    string
	client *retryablehttp.Client
	nextID atomic.Uint64
}

func newRPCTransport(url string, httpClient *http.Client, retryMax int) *rpcTransport {
	rc := retryablehttp.NewClient()
	if httpClient != nil {
		rc.HTTPClient = httpClient
	}
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 3 * time.Second
	rc.Logger = logging.NewLeveledLogger(logging.WithComponent("ledger-rpc"))

	return &rpcTransport{url: url, client: rc}
}

// call performs method and returns the "result" member of the response.
func (t *rpcTransport) call(ctx context.Context, method string, params ...interface{}) (gjson.Result, error) {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      t.nextID.Inc(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("rpc %s: encode request: %w", method, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("rpc %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("rpc %s: read response: %w", method, err)
	}
	if resp.StatusCode/100 != 2 {
		return gjson.Result{}, fmt.Errorf("rpc %s: unexpected status %d", method, resp.StatusCode)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("rpc %s: malformed response", method)
	}

	doc := gjson.ParseBytes(raw)
	if rpcErr := doc.Get("error"); rpcErr.Exists() {
		return gjson.Result{}, &RPCError{
			Method:  method,
			Code:    rpcErr.Get("code").Int(),
			Message: rpcErr.Get("message").String(),
		}
	}
	result := doc.Get("result")
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("rpc %s: response has no result", method)
	}
	return result, nil
}
