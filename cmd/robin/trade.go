package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/xe"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "查看账户持仓与购买力",
	RunE: func(cmd *cobra.Command, args []string) error {
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		out, err := components.TradingService.FormatPortfolio(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var pricesCmd = &cobra.Command{
	Use:   "prices SYMBOL...",
	Short: "查询交易对最优买卖价",
	Args:  usageArgs(cobra.MinimumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		out, err := components.TradingService.FormatPrices(cmd.Context(), args)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

var buyCmd = &cobra.Command{
	Use:   "buy SYMBOL AMOUNT_USD",
	Short: "按美元金额市价买入",
	Args:  usageArgs(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		order, err := components.TradingService.Buy(cmd.Context(), args[0], amount)
		if err != nil {
			return err
		}
		fmt.Printf("Buy order placed: %s %s $%s (order %s, state %s)\n",
			order.Side, order.Symbol, amount.StringFixed(2), order.ID, order.State)
		return nil
	},
}

var sellCmd = &cobra.Command{
	Use:   "sell SYMBOL AMOUNT_USD",
	Short: "按美元金额市价卖出",
	Args:  usageArgs(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		order, err := components.TradingService.Sell(cmd.Context(), args[0], amount)
		if err != nil {
			return err
		}
		fmt.Printf("Sell order placed: %s %s $%s (order %s, state %s)\n",
			order.Side, order.Symbol, amount.StringFixed(2), order.ID, order.State)
		return nil
	},
}

var performanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "查看持仓表现概览",
	RunE: func(cmd *cobra.Command, args []string) error {
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		out, err := components.TradingService.FormatPerformance(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", xe.ErrInvalidAmount, raw)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", xe.ErrInvalidAmount, raw)
	}
	return amount, nil
}
