package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-orz/orz"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sachinchhetri202/robinhood-api-trading/internal"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/config"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/xe"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/robinhood"
)

var (
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:           "robin",
	Short:         "Robin - Robinhood 加密货币交易终端",
	Long:          ``,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// 全局配置文件标志
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.json", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "输出调试日志")

	// 标志解析失败属于参数错误，统一归到参数错误码
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", xe.ErrInvalidParams, err)
	})

	rootCmd.AddCommand(
		portfolioCmd,
		pricesCmd,
		buyCmd,
		sellCmd,
		performanceCmd,
		orderCmd,
		ordersCmd,
		cancelCmd,
		pairsCmd,
		strategyCmd,
		runCmd,
	)
}

// usageArgs 包装 cobra 的位置参数校验，把数量不符归到参数错误码。
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", xe.ErrInvalidParams, err)
		}
		return nil
	}
}

// bootstrap 为单次命令加载配置并组装组件。
func bootstrap() (*internal.AppComponents, *zap.Logger, error) {
	conf, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	logger := config.NewLogger(conf.Log, debug)

	components, err := internal.InitializeApp(logger, conf)
	if err != nil {
		return nil, nil, err
	}
	return components, logger, nil
}

// exitCode 区分用户可修正的错误（参数、凭证）与运行时失败。
func exitCode(err error) int {
	var oe *orz.Error
	if errors.As(err, &oe) {
		return 1
	}
	if errors.Is(err, robinhood.ErrUnauthorized) {
		return 1
	}
	return 2
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
