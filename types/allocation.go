package types

import "time"

// Allocation is a target split in whole percent. The three values sum to 100.
type Allocation struct {
	Stock     int       `json:"stock_pct"`
	Etf       int       `json:"etf_pct"`
	Crypto    int       `json:"crypto_pct"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a Allocation) Sum() int { return a.Stock + a.Etf + a.Crypto }

func (a Allocation) Pct(c AssetClass) int {
	switch c {
	case AssetClassStock:
		return a.Stock
	case AssetClassEtf:
		return a.Etf
	case AssetClassCrypto:
		return a.Crypto
	}
	return 0
}
