// Package queryexec executes single PromQL instant queries against a remote
// Prometheus-compatible endpoint.
package queryexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/node-watchdog/internal/config"
	"github.com/and161185/node-watchdog/model"
	"go.uber.org/zap"
)

// ErrorKind classifies a query failure so the caller can decide on retries.
type ErrorKind string

const (
	Network           ErrorKind = "network"
	Timeout           ErrorKind = "timeout"
	AuthFailure       ErrorKind = "auth_failure"
	MalformedResponse ErrorKind = "malformed_response"
)

// Error is a typed query failure.
type Error struct {
	Kind ErrorKind
	Key  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("query %s: %s: %v", e.Key, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retriable reports whether err is a query failure worth one more attempt.
// Only network and timeout failures qualify.
func Retriable(err error) bool {
	var qe *Error
	if !errors.As(err, &qe) {
		return false
	}
	return qe.Kind == Network || qe.Kind == Timeout
}

// retryDelay is the bounded backoff before the single retry of a
// network/timeout failure.
var retryDelay = 500 * time.Millisecond

// Executor runs instant queries with basic auth. It keeps no state between
// invocations.
type Executor struct {
	baseURL    string
	instanceID string
	apiKey     string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// New creates an executor from the run configuration.
func New(cfg *config.Config) *Executor {
	return &Executor{
		baseURL:    cfg.PromURL,
		instanceID: cfg.InstanceID,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: time.Duration(cfg.ClientTimeout) * time.Second},
		logger:     cfg.Logger,
	}
}

// Execute runs one instant query. Network and timeout failures are retried
// once after a short backoff; auth and malformed-response failures are
// surfaced immediately.
func (e *Executor) Execute(ctx context.Context, q model.MetricQuery) (model.RawResult, error) {
	if q.Expr == "" {
		return model.RawResult{}, &Error{Kind: MalformedResponse, Key: q.Key, Err: errors.New("empty expression")}
	}

	res, err := e.query(ctx, q)
	if err != nil && Retriable(err) {
		select {
		case <-ctx.Done():
			return model.RawResult{}, err
		case <-time.After(retryDelay):
		}
		e.logger.Infof("retrying query %s after %v", q.Key, err)
		res, err = e.query(ctx, q)
	}
	return res, err
}

// promResponse mirrors the Prometheus HTTP API envelope for instant queries.
type promResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  [2]json.RawMessage `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

func (e *Executor) query(ctx context.Context, q model.MetricQuery) (model.RawResult, error) {
	params := url.Values{}
	params.Set("query", q.Expr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/v1/query?"+params.Encode(), nil)
	if err != nil {
		return model.RawResult{}, &Error{Kind: Network, Key: q.Key, Err: err}
	}
	req.SetBasicAuth(e.instanceID, e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return model.RawResult{}, &Error{Kind: classifyTransport(ctx, err), Key: q.Key, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.RawResult{}, &Error{Kind: AuthFailure, Key: q.Key, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return model.RawResult{}, &Error{Kind: Network, Key: q.Key, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return model.RawResult{}, &Error{Kind: MalformedResponse, Key: q.Key, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var pr promResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return model.RawResult{}, &Error{Kind: MalformedResponse, Key: q.Key, Err: fmt.Errorf("decode: %w", err)}
	}
	if pr.Status != "success" {
		return model.RawResult{}, &Error{Kind: MalformedResponse, Key: q.Key, Err: fmt.Errorf("api status %q: %s", pr.Status, pr.Error)}
	}

	raw := model.RawResult{Points: make([]model.Point, 0, len(pr.Data.Result))}
	for _, item := range pr.Data.Result {
		v, err := parseSampleValue(item.Value[1])
		if err != nil {
			return model.RawResult{}, &Error{Kind: MalformedResponse, Key: q.Key, Err: err}
		}
		raw.Points = append(raw.Points, model.Point{Labels: item.Metric, Value: v})
	}
	return raw, nil
}

// parseSampleValue decodes the value half of a Prometheus [ts, "value"] pair.
func parseSampleValue(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("sample value: %w", err)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("sample value %q: %w", s, err)
	}
	return v, nil
}

func classifyTransport(ctx context.Context, err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Timeout
	}
	if os.IsTimeout(err) || strings.Contains(err.Error(), "Client.Timeout") {
		return Timeout
	}
	return Network
}
