// Package bybit is a REST client for the Bybit v5 spot API, covering the
// market data and order endpoints the trader needs.
package bybit

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/domain"
)

const (
	mainnetURL = "https://api.bybit.com"
	testnetURL = "https://api-testnet.bybit.com"
	recvWindow = "5000"

	// Ranking filters: minimum 24h volume and minimum absolute 24h
	// change (percent) for a pair to be tradeable.
	minRankVolume = 100.0
	minRankChange = 0.1
)

// fallbackPairs are used when the ranking filter leaves nothing.
var fallbackPairs = []string{"BTCUSDT", "ETHUSDT"}

// Config holds client configuration. BaseURL overrides the network
// selection and exists for tests.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	BaseURL   string
}

// Client is a Bybit v5 REST client.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	log       zerolog.Logger
}

// NewClient creates a Bybit client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = mainnetURL
		if cfg.Testnet {
			baseURL = testnetURL
		}
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log.With().Str("client", "bybit").Logger(),
	}
}

// GetMarketData fetches the spot ticker for one symbol.
func (c *Client) GetMarketData(symbol string) (domain.MarketData, error) {
	var result tickersResult
	query := url.Values{"category": {"spot"}, "symbol": {symbol}}
	if err := c.get("/v5/market/tickers", query, &result); err != nil {
		return domain.MarketData{}, err
	}
	if len(result.List) == 0 {
		return domain.MarketData{}, fmt.Errorf("no ticker returned for %s", symbol)
	}

	md, err := result.List[0].toMarketData()
	if err != nil {
		return domain.MarketData{}, fmt.Errorf("bad ticker for %s: %w", symbol, err)
	}
	return md, nil
}

// RankSymbols returns up to limit spot pairs ordered by 24h volume,
// filtered to pairs with meaningful volume and movement. Falls back to
// the major pairs when the filter leaves nothing.
func (c *Client) RankSymbols(limit int) ([]string, error) {
	var result tickersResult
	query := url.Values{"category": {"spot"}}
	if err := c.get("/v5/market/tickers", query, &result); err != nil {
		return nil, err
	}

	type candidate struct {
		symbol string
		volume float64
	}
	var candidates []candidate
	for _, t := range result.List {
		md, err := t.toMarketData()
		if err != nil {
			continue
		}
		if md.Volume24h > minRankVolume && abs(md.Change24h) > minRankChange {
			candidates = append(candidates, candidate{t.Symbol, md.Volume24h})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].volume > candidates[j].volume
	})

	symbols := make([]string, 0, limit)
	for _, cand := range candidates {
		if len(symbols) == limit {
			break
		}
		symbols = append(symbols, cand.symbol)
	}

	if len(symbols) == 0 {
		c.log.Warn().Msg("No pairs passed the ranking filter, using fallback pairs")
		for _, s := range fallbackPairs {
			if len(symbols) == limit {
				break
			}
			symbols = append(symbols, s)
		}
	}
	return symbols, nil
}

// GetKlineCloses returns close prices in chronological order.
// Interval follows the v5 API convention ("60" is hourly).
func (c *Client) GetKlineCloses(symbol, interval string, limit int) ([]float64, error) {
	var result klineResult
	query := url.Values{
		"category": {"spot"},
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}
	if err := c.get("/v5/market/kline", query, &result); err != nil {
		return nil, err
	}

	// The API returns newest first.
	closes := make([]float64, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		row := result.List[i]
		if len(row) < 5 {
			return nil, fmt.Errorf("malformed kline row for %s", symbol)
		}
		closePrice, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("bad close price for %s: %w", symbol, err)
		}
		closes = append(closes, closePrice)
	}
	return closes, nil
}

// PlaceMarketOrder submits a signed spot market order.
// Side is "BUY" or "SELL"; qty is in base units.
func (c *Client) PlaceMarketOrder(symbol, side string, qty float64) error {
	venueSide := "Buy"
	if side == "SELL" {
		venueSide = "Sell"
	}

	body := orderRequest{
		Category:    "spot",
		Symbol:      symbol,
		Side:        venueSide,
		OrderType:   "Market",
		Qty:         strconv.FormatFloat(qty, 'f', 6, 64),
		OrderLinkID: uuid.NewString(),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/v5/order/create", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", c.sign(timestamp+c.apiKey+recvWindow+string(payload)))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("order request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode order response: %w", err)
	}
	if envelope.RetCode != 0 {
		return fmt.Errorf("order rejected (retCode %d): %s", envelope.RetCode, envelope.RetMsg)
	}

	c.log.Info().
		Str("symbol", symbol).
		Str("side", venueSide).
		Float64("qty", qty).
		Msg("Order placed")
	return nil
}

func (c *Client) get(path string, query url.Values, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	if envelope.RetCode != 0 {
		return fmt.Errorf("%s returned retCode %d: %s", path, envelope.RetCode, envelope.RetMsg)
	}

	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("failed to decode result from %s: %w", path, err)
	}
	return nil
}

func (c *Client) sign(message string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func (t ticker) toMarketData() (domain.MarketData, error) {
	price, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil {
		return domain.MarketData{}, fmt.Errorf("bad price %q: %w", t.LastPrice, err)
	}
	volume, err := strconv.ParseFloat(t.Volume24h, 64)
	if err != nil {
		return domain.MarketData{}, fmt.Errorf("bad volume %q: %w", t.Volume24h, err)
	}
	pcnt, err := strconv.ParseFloat(t.Price24hPcnt, 64)
	if err != nil {
		return domain.MarketData{}, fmt.Errorf("bad change %q: %w", t.Price24hPcnt, err)
	}

	return domain.MarketData{
		Symbol:    t.Symbol,
		Price:     price,
		Volume24h: volume,
		Change24h: pcnt * 100,
	}, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
