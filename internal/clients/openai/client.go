// Package openai is a chat-completions client used as the trade decision
// oracle. Responses are constrained to a JSON object and decoded into a
// normalized verdict.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/domain"
)

const defaultBaseURL = "https://api.openai.com"

const systemPrompt = `You are a cryptocurrency trading analyst. Given a numeric market summary for one symbol, respond with a single JSON object:
{"action": "BUY"|"SELL"|"HOLD", "confidence": 0.0-1.0, "potential_profit": 0.0-1.0, "reason": "<one sentence>"}
Be conservative: prefer HOLD unless the data clearly supports a trade.`

// Config holds client configuration. BaseURL exists for tests.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
}

// Client calls the chat completions endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// NewClient creates an oracle client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log.With().Str("client", "openai").Logger(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat formatSpec    `json:"response_format"`
	Messages       []chatMessage `json:"messages"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type rawVerdict struct {
	Action          string  `json:"action"`
	Confidence      float64 `json:"confidence"`
	PotentialProfit float64 `json:"potential_profit"`
	Reason          string  `json:"reason"`
}

// Decide asks the oracle for a verdict on one symbol.
func (c *Client) Decide(
	ctx context.Context,
	symbol string,
	md domain.MarketData,
	analysis domain.MarketContext,
) (domain.OracleDecision, error) {
	summary, err := json.Marshal(map[string]any{
		"symbol":           symbol,
		"price":            md.Price,
		"change_24h_pct":   md.Change24h,
		"volume_24h":       md.Volume24h,
		"volatility_score": analysis.VolatilityScore,
		"volume_score":     analysis.VolumeScore,
		"rsi_14":           analysis.RSI14,
	})
	if err != nil {
		return domain.OracleDecision{}, fmt.Errorf("failed to encode market summary: %w", err)
	}

	payload, err := json.Marshal(chatRequest{
		Model:          c.cfg.Model,
		Temperature:    c.cfg.Temperature,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: formatSpec{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(summary)},
		},
	})
	if err != nil {
		return domain.OracleDecision{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return domain.OracleDecision{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.OracleDecision{}, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OracleDecision{}, fmt.Errorf("failed to read oracle response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.OracleDecision{}, fmt.Errorf("failed to decode oracle response: %w", err)
	}
	if parsed.Error != nil {
		return domain.OracleDecision{}, fmt.Errorf("oracle error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return domain.OracleDecision{}, fmt.Errorf("oracle returned no choices")
	}

	var verdict rawVerdict
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &verdict); err != nil {
		return domain.OracleDecision{}, fmt.Errorf("oracle returned malformed verdict: %w", err)
	}

	return normalize(verdict), nil
}

// normalize coerces the verdict into the domain's invariants: a known
// action and scores clamped to [0, 1]. Unknown actions become HOLD.
func normalize(v rawVerdict) domain.OracleDecision {
	action := domain.Action(strings.ToUpper(strings.TrimSpace(v.Action)))
	switch action {
	case domain.ActionBuy, domain.ActionSell, domain.ActionHold:
	default:
		action = domain.ActionHold
	}

	return domain.OracleDecision{
		Action:          action,
		Confidence:      clamp01(v.Confidence),
		PotentialProfit: clamp01(v.PotentialProfit),
		Reason:          v.Reason,
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
