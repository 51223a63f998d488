package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"synthnet/config"
	"synthnet/core"
	"synthnet/observability/logging"
	"synthnet/rpc"
	"synthnet/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memory := flag.Bool("memory", false, "DEV ONLY: run with an in-memory store instead of LevelDB")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("SYNTHNET_ENV"))
	logger := logging.Setup("synthd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	var db storage.Database
	if *memory {
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			panic(fmt.Sprintf("Failed to open database: %v", err))
		}
		db = ldb
	}
	defer db.Close()

	node, err := core.NewNode(cfg, db, logger)
	if err != nil {
		logger.Error("Failed to construct node", slog.Any("error", err))
		os.Exit(1)
	}

	info := node.Info()
	for _, mkt := range info.Markets {
		logger.Info("market online", "name", mkt.Name, "collateral", mkt.CollateralSymbol,
			"synthetic", mkt.SyntheticSymbol, "price", mkt.Price, "module", mkt.ModuleAddress)
	}
	logger.Info("exchange online", "module", info.ExchangeAddress)

	server := rpc.NewServer(node)
	logger.Info("starting JSON-RPC server", "addr", cfg.RPCAddress)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}
