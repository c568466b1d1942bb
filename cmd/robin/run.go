package main

import (
	"github.com/spf13/cobra"

	"github.com/sachinchhetri202/robinhood-api-trading/internal"
	"github.com/sachinchhetri202/robinhood-api-trading/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "启动策略引擎，持续执行已登记的策略",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(configFile)
		if err != nil {
			return err
		}
		logger := config.NewLogger(conf.Log, debug)
		return internal.Run(logger, conf)
	},
}
