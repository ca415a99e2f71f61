package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/lexiqai/session-recorder/internal/cli"
	"github.com/lexiqai/session-recorder/internal/config"
	"github.com/lexiqai/session-recorder/internal/observability"
	"github.com/lexiqai/session-recorder/internal/output"
)

func main() {
	logCfg, err := config.LoadLogConfig()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(logCfg.LogLevel, logCfg.LogPretty)

	deps := &cli.Dependencies{
		LoadConfig: sync.OnceValues(config.Load),
		Stdout:     os.Stdout,
	}

	if err := cli.NewRootCmd(deps).Execute(); err != nil {
		output.NewFormatter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}
