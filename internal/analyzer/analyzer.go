// Package analyzer produces a narrative assessment of a finished run by
// sending the snapshots and anomaly list to a chat-completions endpoint.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/and161185/node-watchdog/internal/config"
	"github.com/and161185/node-watchdog/model"
	"go.uber.org/zap"
)

// Analyzer turns run data into a free-text narrative.
type Analyzer interface {
	Analyze(ctx context.Context, summary, detail *model.Snapshot, anomalies []model.AnomalyEvent) (string, error)
}

// Noop is used when no analysis endpoint is configured.
type Noop struct{}

func (Noop) Analyze(ctx context.Context, summary, detail *model.Snapshot, anomalies []model.AnomalyEvent) (string, error) {
	return "", nil
}

// Client calls an OpenAI-compatible chat-completions API.
type Client struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

// New creates a client from the run configuration.
func New(cfg *config.Config) *Client {
	return &Client{
		url:        cfg.LLMURL,
		apiKey:     cfg.LLMAPIKey,
		model:      cfg.LLMModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     cfg.Logger,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze builds the appropriate prompt (summary-only or detailed) and
// returns the model's narrative.
func (c *Client) Analyze(ctx context.Context, summary, detail *model.Snapshot, anomalies []model.AnomalyEvent) (string, error) {
	prompt, err := buildPrompt(summary, detail, anomalies)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	c.logger.Infow("narrative analysis finished", "model", c.model)
	return cr.Choices[0].Message.Content, nil
}
