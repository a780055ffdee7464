// Package llm provides an optional OpenAI-compatible chat client used to
// attach a free-form narrative to analysis results. The model output is
// passed through opaquely.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/genbatech/chie/internal/models"
)

// Config configures the chat client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewClient returns a chat client for cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 25 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Narrative asks the model for an analysis narrative of the failure report.
// The returned text is not interpreted.
func (c *Client) Narrative(ctx context.Context, report *models.FailureReport, ranked []models.DocumentRelevance) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "機械ID: %s\n症状: %s\n", report.MachineID, report.SymptomText)
	if report.Diagnostics.PrimaryProblem != "" {
		fmt.Fprintf(&prompt, "主要問題: %s\n", report.Diagnostics.PrimaryProblem)
	}
	if len(report.Diagnostics.Components) > 0 {
		fmt.Fprintf(&prompt, "関連部位: %s\n", strings.Join(report.Diagnostics.Components, "、"))
	}
	if len(ranked) > 0 {
		fmt.Fprintf(&prompt, "関連資料ID: ")
		for i, r := range ranked {
			if i >= 3 {
				break
			}
			if i > 0 {
				prompt.WriteString(", ")
			}
			fmt.Fprintf(&prompt, "%s (%.2f)", r.DocumentID, r.Score)
		}
		prompt.WriteString("\n")
	}

	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": "あなたは産業機械の保全エンジニアです。故障報告を簡潔に分析してください。"},
			{"role": "user", "content": prompt.String()},
		},
		"temperature": 0.2,
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat request failed: %s", resp.Status)
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
