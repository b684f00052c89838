package types

import (
	"regexp"
	"strings"
)

type AssetClass string

const (
	AssetClassStock  AssetClass = "stock"
	AssetClassEtf    AssetClass = "etf"
	AssetClassCrypto AssetClass = "crypto"
)

// AssetClasses is the fixed order used in allocation reports.
var AssetClasses = []AssetClass{AssetClassStock, AssetClassEtf, AssetClassCrypto}

var ConvertAssetClass = map[string]AssetClass{
	"stock":  AssetClassStock,
	"stocks": AssetClassStock,
	"etf":    AssetClassEtf,
	"etfs":   AssetClassEtf,
	"crypto": AssetClassCrypto,
}

// ParseAssetClass is case insensitive. An empty or unknown class is not ok.
func ParseAssetClass(s string) (AssetClass, bool) {
	c, ok := ConvertAssetClass[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-:^=_]{1,32}$`)

// NormalizeSymbol upper-cases s and reports whether it is a valid ticker.
func NormalizeSymbol(s string) (string, bool) {
	sym := strings.ToUpper(strings.TrimSpace(s))
	return sym, symbolPattern.MatchString(sym)
}
