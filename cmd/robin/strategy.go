package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/models"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/xe"
)

var (
	strategySymbol        string
	strategyCheckInterval int
	strategyDisabled      bool

	stopLossPct     float64
	profitTargetPct float64
	positionSizeUSD float64

	dcaAmount       float64
	dcaFrequency    int
	dcaMaxPurchases int

	trailingPct   float64
	activationPct float64
)

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "管理自动交易策略",
}

var strategyAddStopLossCmd = &cobra.Command{
	Use:   "add-stop-loss",
	Short: "添加止损止盈策略",
	RunE: func(cmd *cobra.Command, args []string) error {
		config := models.StopLossConfig{
			BaseConfig:             baseConfig(),
			StopLossPercentage:     stopLossPct,
			ProfitTargetPercentage: profitTargetPct,
			PositionSizeUSD:        positionSizeUSD,
		}
		return addStrategy(config)
	},
}

var strategyAddDCACmd = &cobra.Command{
	Use:   "add-dca",
	Short: "添加定投策略",
	RunE: func(cmd *cobra.Command, args []string) error {
		config := models.DCAConfig{
			BaseConfig:        baseConfig(),
			AmountPerPurchase: dcaAmount,
			FrequencyDays:     dcaFrequency,
			MaxPurchases:      dcaMaxPurchases,
		}
		return addStrategy(config)
	},
}

var strategyAddTrailingStopCmd = &cobra.Command{
	Use:   "add-trailing-stop",
	Short: "添加移动止损策略（目前仅观察，不会下单）",
	RunE: func(cmd *cobra.Command, args []string) error {
		config := models.TrailingStopConfig{
			BaseConfig:           baseConfig(),
			TrailingPercentage:   trailingPct,
			ActivationPercentage: activationPct,
			PositionSizeUSD:      positionSizeUSD,
		}
		return addStrategy(config)
	},
}

var strategyListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出已登记的策略",
	RunE: func(cmd *cobra.Command, args []string) error {
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		configs := components.Engine.Strategies()
		if len(configs) == 0 {
			fmt.Println("No strategies configured.")
			return nil
		}

		var sb strings.Builder
		w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tSYMBOL\tENABLED\tINTERVAL\tDETAILS")
		for _, config := range configs {
			base := config.Base()
			fmt.Fprintf(w, "%s\t%s\t%t\t%ds\t%s\n",
				config.Type(), base.Symbol, base.Enabled, base.CheckInterval, describeStrategy(config))
		}
		_ = w.Flush()
		fmt.Print(sb.String())
		return nil
	},
}

var strategyRemoveCmd = &cobra.Command{
	Use:   "remove TYPE SYMBOL",
	Short: "删除策略",
	Args:  usageArgs(cobra.ExactArgs(2)),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategyType, err := parseStrategyType(args[0])
		if err != nil {
			return err
		}
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		key := models.StrategyKey{Type: strategyType, Symbol: args[1]}
		if err := components.Engine.RemoveStrategy(key); err != nil {
			return err
		}
		fmt.Printf("Strategy removed: %s %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	strategyCmd.PersistentFlags().StringVar(&strategySymbol, "symbol", "", "交易对，如 BTC 或 BTC-USD")
	strategyCmd.PersistentFlags().IntVar(&strategyCheckInterval, "interval", 300, "检查间隔（秒）")
	strategyCmd.PersistentFlags().BoolVar(&strategyDisabled, "disabled", false, "添加后暂不启用")

	strategyAddStopLossCmd.Flags().Float64Var(&stopLossPct, "stop-loss", 5, "止损百分比")
	strategyAddStopLossCmd.Flags().Float64Var(&profitTargetPct, "profit-target", 0, "止盈百分比，0 为不设止盈")
	strategyAddStopLossCmd.Flags().Float64Var(&positionSizeUSD, "size", 100, "建仓金额（美元）")

	strategyAddDCACmd.Flags().Float64Var(&dcaAmount, "amount", 50, "每次定投金额（美元）")
	strategyAddDCACmd.Flags().IntVar(&dcaFrequency, "frequency", 7, "定投周期（天）")
	strategyAddDCACmd.Flags().IntVar(&dcaMaxPurchases, "max-purchases", 0, "定投次数上限，0 为不限")

	strategyAddTrailingStopCmd.Flags().Float64Var(&trailingPct, "trailing", 5, "回撤百分比")
	strategyAddTrailingStopCmd.Flags().Float64Var(&activationPct, "activation", 0, "激活涨幅百分比")
	strategyAddTrailingStopCmd.Flags().Float64Var(&positionSizeUSD, "size", 100, "建仓金额（美元）")

	strategyCmd.AddCommand(
		strategyAddStopLossCmd,
		strategyAddDCACmd,
		strategyAddTrailingStopCmd,
		strategyListCmd,
		strategyRemoveCmd,
	)
}

func baseConfig() models.BaseConfig {
	return models.BaseConfig{
		Symbol:        strategySymbol,
		Enabled:       !strategyDisabled,
		CheckInterval: strategyCheckInterval,
	}
}

func addStrategy(config models.StrategyConfig) error {
	components, _, err := bootstrap()
	if err != nil {
		return err
	}
	if err := components.Engine.AddStrategy(config); err != nil {
		return err
	}
	fmt.Printf("Strategy added: %s\n", config.Key())
	return nil
}

func describeStrategy(config models.StrategyConfig) string {
	switch c := config.(type) {
	case models.StopLossConfig:
		return fmt.Sprintf("stop %.1f%% target %.1f%% size $%.2f",
			c.StopLossPercentage, c.ProfitTargetPercentage, c.PositionSizeUSD)
	case models.DCAConfig:
		limit := "unlimited"
		if c.MaxPurchases > 0 {
			limit = fmt.Sprintf("%d", c.MaxPurchases)
		}
		return fmt.Sprintf("$%.2f every %dd, max %s", c.AmountPerPurchase, c.FrequencyDays, limit)
	case models.TrailingStopConfig:
		return fmt.Sprintf("trail %.1f%% activation %.1f%% size $%.2f",
			c.TrailingPercentage, c.ActivationPercentage, c.PositionSizeUSD)
	default:
		return ""
	}
}

func parseStrategyType(raw string) (models.StrategyType, error) {
	switch models.StrategyType(strings.ToLower(raw)) {
	case models.StrategyStopLoss:
		return models.StrategyStopLoss, nil
	case models.StrategyDCA:
		return models.StrategyDCA, nil
	case models.StrategyTrailingStop:
		return models.StrategyTrailingStop, nil
	default:
		return "", fmt.Errorf("%w: unknown strategy type %q", xe.ErrInvalidParams, raw)
	}
}
