package main

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/sachinchhetri202/robinhood-api-trading/internal/xe"
	"github.com/sachinchhetri202/robinhood-api-trading/pkg/robinhood"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(xe.ErrInvalidAmount))
	assert.Equal(t, 1, exitCode(robinhood.ErrUnauthorized))
	assert.Equal(t, 2, exitCode(errors.New("connection refused")))
}

// 参数数量不符和标志解析失败都是用户可修正的错误，退出码应为 1
func TestUsageErrorsExitAsUserErrors(t *testing.T) {
	check := usageArgs(cobra.ExactArgs(2))

	err := check(buyCmd, []string{"BTC"})
	assert.ErrorIs(t, err, xe.ErrInvalidParams)
	assert.Equal(t, 1, exitCode(err))

	assert.NoError(t, check(buyCmd, []string{"BTC", "100"}))

	flagErr := rootCmd.FlagErrorFunc()(rootCmd, errors.New("unknown flag: --nope"))
	assert.ErrorIs(t, flagErr, xe.ErrInvalidParams)
	assert.Equal(t, 1, exitCode(flagErr))
}
