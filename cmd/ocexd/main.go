package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ocex/config"
	"ocex/core"
	"ocex/crypto"
	"ocex/observability/logging"
	"ocex/rpc"
	"ocex/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("ocexd", cfg.Env, cfg.LogFile)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	owner, err := cfg.Owner()
	if err != nil {
		logger.Error("Failed to decode owner address", slog.Any("error", err))
		os.Exit(1)
	}

	node, err := core.NewNode(db, owner)
	if err != nil {
		logger.Error("Failed to create vault node", slog.Any("error", err))
		os.Exit(1)
	}

	instance, err := node.InstanceID()
	if err != nil {
		logger.Error("Failed to load instance id", slog.Any("error", err))
		os.Exit(1)
	}
	stored, err := node.Owner()
	if err != nil {
		logger.Error("Failed to load owner", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("vault ready",
		slog.String("owner", crypto.NewAddress(crypto.OcexPrefix, stored[:]).String()),
		slog.String("instance", fmt.Sprintf("0x%x", instance)),
	)

	authToken := cfg.AuthToken()
	if authToken == "" {
		logger.Warn("no RPC auth token configured, owner methods disabled",
			slog.String("env_var", cfg.AuthTokenEnv))
	}

	go serveMetrics(cfg.MetricsAddress, logger)

	server := rpc.NewServer(node, authToken, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("starting metrics server", slog.String("addr", addr))
	if err := server.ListenAndServe(); err != nil {
		logger.Error("metrics server stopped", slog.Any("error", err))
	}
}
