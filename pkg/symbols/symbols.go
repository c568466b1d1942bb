package symbols

import (
	"regexp"
	"strings"
)

const quoteSuffix = "-USD"

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]+(-USD)?$`)

// NormalizeToUSD 将交易对规范化为 BASE-USD 形式，例如 btc -> BTC-USD。
// 对已规范化的输入是幂等的。
func NormalizeToUSD(symbol string) string {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if !strings.HasSuffix(normalized, quoteSuffix) {
		normalized += quoteSuffix
	}
	return normalized
}

// Validate 校验交易对格式是否合法，允许 BTC 或 BTC-USD 两种写法。
func Validate(symbol string) bool {
	if symbol == "" {
		return false
	}
	return symbolPattern.MatchString(strings.ToUpper(strings.TrimSpace(symbol)))
}

// AssetCode 返回交易对的资产代码，例如 BTC-USD -> BTC。
func AssetCode(symbol string) string {
	return strings.TrimSuffix(NormalizeToUSD(symbol), quoteSuffix)
}
