package xe

import "github.com/go-orz/orz"

var (
	ErrInvalidParams      = orz.NewError(10400, "参数无效")
	ErrInvalidSymbol      = orz.NewError(10401, "交易对格式不正确")
	ErrInvalidAmount      = orz.NewError(10402, "金额必须大于 0")
	ErrInsufficientFunds  = orz.NewError(10403, "可用资金不足")
	ErrInsufficientAsset  = orz.NewError(10404, "持仓数量不足")
	ErrNoHoldings         = orz.NewError(10405, "没有持仓数据")
	ErrStrategyNotFound   = orz.NewError(10406, "策略不存在")
	ErrStrategyRunning    = orz.NewError(10407, "策略引擎已在运行")
	ErrMissingCredentials = orz.NewError(10001, "缺少 API 凭证")
	ErrInvalidConfig      = orz.NewError(10002, "配置文件不合法")
)
