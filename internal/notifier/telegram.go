// Package notifier delivers fire-and-forget alerts via Telegram.
package notifier

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Telegram sends messages through the bot API. With empty credentials it
// degrades to logging only, which keeps local runs quiet.
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	http     *http.Client
	log      zerolog.Logger
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(botToken, chatID string, log zerolog.Logger) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  "https://api.telegram.org",
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log.With().Str("client", "telegram").Logger(),
	}
}

// Alert sends a message. Delivery failures are logged, never propagated:
// a down notifier must not affect trading.
func (t *Telegram) Alert(message string) {
	if t.botToken == "" || t.chatID == "" {
		t.log.Debug().Str("message", message).Msg("Telegram not configured, alert logged only")
		return
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    message,
	})
	if err != nil {
		t.log.Error().Err(err).Msg("Failed to encode alert")
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	resp, err := t.http.Post(url, "application/json", strings.NewReader(string(payload)))
	if err != nil {
		t.log.Error().Err(err).Msg("Failed to deliver alert")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.log.Error().Int("status", resp.StatusCode).Msg("Telegram rejected alert")
	}
}
