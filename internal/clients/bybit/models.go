package bybit

import "encoding/json"

// apiResponse is the v5 REST envelope.
type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

type tickersResult struct {
	List []ticker `json:"list"`
}

// ticker carries the v5 spot ticker fields used here. All numbers arrive
// as strings; Price24hPcnt is a fraction, not a percent.
type ticker struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	Volume24h    string `json:"volume24h"`
	Price24hPcnt string `json:"price24hPcnt"`
}

type klineResult struct {
	// Each row: [startTime, open, high, low, close, volume, turnover],
	// newest first.
	List [][]string `json:"list"`
}

type orderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	OrderLinkID string `json:"orderLinkId"`
}
