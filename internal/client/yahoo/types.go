package yahoo

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one normalized daily price bar. Date is a UTC calendar date
// (midnight); entries the API reported with null OHLC values never make it
// into a Bar.
type Bar struct {
	Date     time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	AdjClose decimal.Decimal
	Volume   int64
}

// chartResponse mirrors the v8 chart API payload. Quote arrays use pointers
// so that JSON nulls (non-trading slots, halted days) stay distinguishable
// from real zeroes.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol         string `json:"symbol"`
		FirstTradeDate int64  `json:"firstTradeDate"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
		Adjclose []struct {
			Adjclose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
