package main

import (
	"github.com/gide-search/backend/internal/server"
	"github.com/gide-search/backend/internal/util"
	"github.com/gide-search/backend/pkg/logger"
	"github.com/gide-search/backend/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
