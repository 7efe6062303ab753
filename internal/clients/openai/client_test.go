package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrov/neurotrader/internal/domain"
)

func newTestOracle(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{
		APIKey:      "test-key",
		Model:       "gpt-4o-mini",
		Temperature: 0.2,
		MaxTokens:   256,
		BaseURL:     server.URL,
	}, zerolog.Nop())
}

func chatReply(content string) string {
	reply := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	raw, _ := json.Marshal(reply)
	return string(raw)
}

func TestDecide(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "BTCUSDT")

		_, _ = w.Write([]byte(chatReply(
			`{"action":"buy","confidence":0.85,"potential_profit":0.2,"reason":"strong momentum"}`,
		)))
	})

	verdict, err := oracle.Decide(context.Background(), "BTCUSDT",
		domain.MarketData{Symbol: "BTCUSDT", Price: 50000, Change24h: 3},
		domain.MarketContext{VolatilityScore: 0.15, VolumeScore: 0.8},
	)
	require.NoError(t, err)

	assert.Equal(t, domain.ActionBuy, verdict.Action, "lowercase action is normalized")
	assert.Equal(t, 0.85, verdict.Confidence)
	assert.Equal(t, 0.2, verdict.PotentialProfit)
	assert.Equal(t, "strong momentum", verdict.Reason)
}

func TestDecide_UnknownActionBecomesHold(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatReply(
			`{"action":"ACCUMULATE","confidence":1.8,"potential_profit":-0.5,"reason":"?"}`,
		)))
	})

	verdict, err := oracle.Decide(context.Background(), "BTCUSDT",
		domain.MarketData{}, domain.MarketContext{})
	require.NoError(t, err)

	assert.Equal(t, domain.ActionHold, verdict.Action)
	assert.Equal(t, 1.0, verdict.Confidence, "clamped to [0, 1]")
	assert.Equal(t, 0.0, verdict.PotentialProfit, "clamped to [0, 1]")
}

func TestDecide_MalformedVerdict(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatReply(`I think you should buy.`)))
	})

	_, err := oracle.Decide(context.Background(), "BTCUSDT",
		domain.MarketData{}, domain.MarketContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed verdict")
}

func TestDecide_APIError(t *testing.T) {
	oracle := newTestOracle(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	})

	_, err := oracle.Decide(context.Background(), "BTCUSDT",
		domain.MarketData{}, domain.MarketContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}
