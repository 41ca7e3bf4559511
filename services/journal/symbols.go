package journal

import (
	"regexp"
	"strconv"
	"strings"
)

// NSE monthly option symbols look like NIFTY25NOV26500CE: root, two-digit
// year plus month tag, five-digit strike, CE/PE suffix.
var (
	strikePattern = regexp.MustCompile(`(\d{5})(CE|PE)$`)
	expiryPattern = regexp.MustCompile(`\d{2}[A-Z]{3}`)
)

// parseSymbol pulls instrument type, strike and expiry tag out of a trading
// symbol. Unparseable symbols yield zero values, never an error — a trade is
// still worth journaling when its symbol looks unusual.
func parseSymbol(symbol string) (instrumentType string, strike float64, expiryTag string) {
	switch {
	case strings.HasSuffix(symbol, "CE"):
		instrumentType = "CE"
	case strings.HasSuffix(symbol, "PE"):
		instrumentType = "PE"
	}

	if m := strikePattern.FindStringSubmatch(symbol); m != nil {
		strike, _ = strconv.ParseFloat(m[1], 64)
	}
	expiryTag = expiryPattern.FindString(symbol)

	return instrumentType, strike, expiryTag
}
