package main

import (
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"assetmigration/api"
	"assetmigration/pkg/app"
	"assetmigration/pkg/config"
)

func main() {
	configFile := pflag.String("config", "", "path to YAML config file")
	addr := pflag.String("addr", "", "listen address (overrides config)")
	pflag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	a, err := app.New(cfg)
	if err != nil {
		os.Stderr.WriteString("failed to initialize: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer a.Close()

	if a.Scheduler != nil {
		a.Scheduler.Start()
	}

	server := api.NewServer(a.Controller, a.Locator, a.Store, cfg, a.Log)
	router := api.SetupRouter(server, a.Metrics, cfg.Server.AllowedOrigins)

	a.Log.Info("asset migration server listening", zap.String("addr", cfg.Server.Addr))
	if err := router.Run(cfg.Server.Addr); err != nil {
		a.Log.Fatal("server stopped", zap.Error(err))
	}
}
