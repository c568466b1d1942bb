package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/xe"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/robinhood"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/symbols"
)

var (
	orderTimeInForce string

	ordersSide  string
	ordersState string
	ordersType  string
	ordersLimit int
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "提交高级订单（限价、止损、止损限价）",
}

var orderLimitCmd = &cobra.Command{
	Use:   "limit SYMBOL SIDE QUANTITY LIMIT_PRICE",
	Short: "提交限价单",
	Args:  usageArgs(cobra.ExactArgs(4)),
	RunE: func(cmd *cobra.Command, args []string) error {
		side, err := parseSide(args[1])
		if err != nil {
			return err
		}
		quantity, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		limitPrice, err := parseAmount(args[3])
		if err != nil {
			return err
		}
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		order, err := components.Client.PlaceLimitOrder(cmd.Context(), args[0], side, quantity, limitPrice, orderTimeInForce)
		if err != nil {
			return err
		}
		printOrder(order)
		return nil
	},
}

var orderStopLossCmd = &cobra.Command{
	Use:   "stop-loss SYMBOL SIDE QUANTITY STOP_PRICE",
	Short: "提交止损单",
	Args:  usageArgs(cobra.ExactArgs(4)),
	RunE: func(cmd *cobra.Command, args []string) error {
		side, err := parseSide(args[1])
		if err != nil {
			return err
		}
		quantity, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		stopPrice, err := parseAmount(args[3])
		if err != nil {
			return err
		}
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		order, err := components.Client.PlaceStopLossOrder(cmd.Context(), args[0], side, quantity, stopPrice, orderTimeInForce)
		if err != nil {
			return err
		}
		printOrder(order)
		return nil
	},
}

var orderStopLimitCmd = &cobra.Command{
	Use:   "stop-limit SYMBOL SIDE QUANTITY LIMIT_PRICE STOP_PRICE",
	Short: "提交止损限价单",
	Args:  usageArgs(cobra.ExactArgs(5)),
	RunE: func(cmd *cobra.Command, args []string) error {
		side, err := parseSide(args[1])
		if err != nil {
			return err
		}
		quantity, err := parseAmount(args[2])
		if err != nil {
			return err
		}
		limitPrice, err := parseAmount(args[3])
		if err != nil {
			return err
		}
		stopPrice, err := parseAmount(args[4])
		if err != nil {
			return err
		}
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		order, err := components.Client.PlaceStopLimitOrder(cmd.Context(), args[0], side, quantity, limitPrice, stopPrice, orderTimeInForce)
		if err != nil {
			return err
		}
		printOrder(order)
		return nil
	},
}

var ordersCmd = &cobra.Command{
	Use:   "orders [SYMBOL]",
	Short: "查询历史订单",
	Args:  usageArgs(cobra.MaximumNArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := robinhood.OrderFilter{
			Side:  ordersSide,
			State: ordersState,
			Type:  ordersType,
			Limit: ordersLimit,
		}
		if len(args) == 1 {
			if !symbols.Validate(args[0]) {
				return fmt.Errorf("%w: %s", xe.ErrInvalidSymbol, args[0])
			}
			filter.Symbol = symbols.NormalizeToUSD(args[0])
		}

		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		orders, err := components.Client.ListOrders(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			fmt.Println("No orders found.")
			return nil
		}

		var sb strings.Builder
		w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSYMBOL\tSIDE\tTYPE\tSTATE\tFILLED\tAVG PRICE\tCREATED")
		for _, order := range orders {
			avgPrice := "-"
			if order.AveragePrice != nil {
				avgPrice = "$" + order.AveragePrice.StringFixed(2)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				order.ID, order.Symbol, order.Side, order.Type, order.State,
				order.FilledAssetQuantity.String(), avgPrice, order.CreatedAt)
		}
		_ = w.Flush()
		fmt.Print(sb.String())
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel ORDER_ID",
	Short: "撤销未成交的订单",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE: func(cmd *cobra.Command, args []string) error {
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		if err := components.Client.CancelOrder(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Cancel requested for order %s\n", args[0])
		return nil
	},
}

var pairsCmd = &cobra.Command{
	Use:   "pairs [SYMBOL...]",
	Short: "查询可交易的交易对",
	RunE: func(cmd *cobra.Command, args []string) error {
		components, _, err := bootstrap()
		if err != nil {
			return err
		}
		pairs, err := components.Client.ListTradingPairs(cmd.Context(), args...)
		if err != nil {
			return err
		}
		if len(pairs) == 0 {
			fmt.Println("No trading pairs found.")
			return nil
		}

		var sb strings.Builder
		w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tSTATUS\tMIN ORDER\tMAX ORDER\tASSET INCREMENT")
		for _, pair := range pairs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				pair.Symbol, pair.Status,
				pair.MinOrderSize.String(), pair.MaxOrderSize.String(), pair.AssetIncrement.String())
		}
		_ = w.Flush()
		fmt.Print(sb.String())
		return nil
	},
}

func init() {
	orderCmd.PersistentFlags().StringVar(&orderTimeInForce, "time-in-force", "gtc", "订单有效期 (gtc/ioc/fok)")
	orderCmd.AddCommand(orderLimitCmd, orderStopLossCmd, orderStopLimitCmd)

	ordersCmd.Flags().StringVar(&ordersSide, "side", "", "按方向过滤 (buy/sell)")
	ordersCmd.Flags().StringVar(&ordersState, "state", "", "按状态过滤 (open/filled/canceled...)")
	ordersCmd.Flags().StringVar(&ordersType, "type", "", "按类型过滤 (market/limit...)")
	ordersCmd.Flags().IntVar(&ordersLimit, "limit", 0, "返回条数上限，0 为服务端默认")
}

func parseSide(raw string) (string, error) {
	side := strings.ToLower(raw)
	if side != "buy" && side != "sell" {
		return "", fmt.Errorf("%w: side must be buy or sell, got %q", xe.ErrInvalidParams, raw)
	}
	return side, nil
}

func printOrder(order *robinhood.Order) {
	fmt.Printf("Order placed: %s %s %s (order %s, state %s)\n",
		order.Side, order.Type, order.Symbol, order.ID, order.State)
}
