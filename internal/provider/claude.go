// Package provider holds the Anthropic dialogue model client.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"agribot/internal/domain"
)

const (
	claudeAPIURL       = "https://api.anthropic.com/v1/messages"
	claudeAPIVersion   = "2023-06-01"
	claudeDefaultModel = "claude-3-haiku-20240307"
	defaultMaxTokens   = 500
	defaultTemperature = 0.7
)

// Claude implements domain.DialogueModel against the Anthropic messages API.
type Claude struct {
	apiKey    string
	apiURL    string
	model     string
	maxTokens int
	client    *http.Client
	logger    *slog.Logger
}

type ClaudeConfig struct {
	APIKey    string
	APIURL    string // defaults to the public Anthropic endpoint
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Logger    *slog.Logger
}

func NewClaude(cfg ClaudeConfig) *Claude {
	if cfg.Model == "" {
		cfg.Model = claudeDefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.APIURL == "" {
		cfg.APIURL = claudeAPIURL
	}
	return &Claude{
		apiKey:    cfg.APIKey,
		apiURL:    cfg.APIURL,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    cfg.Logger,
	}
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) Healthy(ctx context.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("claude: no API key configured")
	}
	return nil
}

type claudeRequest struct {
	Model       string      `json:"model"`
	MaxTokens   int         `json:"max_tokens"`
	Temperature float64     `json:"temperature"`
	System      string      `json:"system,omitempty"`
	Messages    []claudeMsg `json:"messages"`
}

type claudeMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
	Usage   claudeUsage     `json:"usage"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Respond sends the system prompt and conversation to the model and returns
// the reply text.
func (c *Claude) Respond(ctx context.Context, system string, messages []domain.ChatMessage) (string, error) {
	msgs := make([]claudeMsg, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, claudeMsg{Role: m.Role, Content: m.Content})
	}

	body := claudeRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: defaultTemperature,
		System:      system,
		Messages:    msgs,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	buildReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", claudeAPIVersion)
		return req, nil
	}

	resp, err := doWithRetry(ctx, c.client, buildReq, c.logger)
	if err != nil {
		return "", fmt.Errorf("claude request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("claude %d: %s", resp.StatusCode, string(respBody))
	}

	var claudeResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&claudeResp); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	var textParts []string
	for _, block := range claudeResp.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}
	text := strings.Join(textParts, "")
	if text == "" {
		return "", fmt.Errorf("claude: empty response")
	}

	c.logger.Debug("model response",
		"tokens_in", claudeResp.Usage.InputTokens,
		"tokens_out", claudeResp.Usage.OutputTokens)

	return text, nil
}
