package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/astatarinov/calc/pkg/api"
	grpcapi "github.com/astatarinov/calc/pkg/api/grpc"
	"github.com/astatarinov/calc/pkg/config"
	"github.com/astatarinov/calc/pkg/runner"
	"github.com/astatarinov/calc/pkg/service"
	"github.com/astatarinov/calc/pkg/store"
	"github.com/astatarinov/calc/web"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, web UI and gRPC service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	cmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env GRPC_PORT)")
	cmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	cmd.Flags().String("batches-dir", "", "Directory of batch YAML/JSON files to load (env BATCHES_DIR)")
	cmd.Flags().Bool("access-log", false, "Log every HTTP request")
	return cmd
}

// serveConfig applies the serve flags that were set on top of cfg.
func serveConfig(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("grpc-port") {
		cfg.GRPCPort, _ = flags.GetInt("grpc-port")
	}
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("batches-dir") {
		cfg.BatchesDir, _ = flags.GetString("batches-dir")
	}
	if flags.Changed("access-log") {
		cfg.AccessLog, _ = flags.GetBool("access-log")
	}
	return cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := serveConfig(cmd, cfg); err != nil {
		return err
	}

	svc := service.New(store.New(), runner.New(cfg.Workers, cfg.StopOnFatal))
	server := api.New(svc, api.Options{AccessLog: cfg.AccessLog})

	if cfg.BatchesDir != "" {
		log.Printf("Watching batches directory: %s", cfg.BatchesDir)
		if err := server.WatchDir(cmd.Context(), cfg.BatchesDir); err != nil {
			log.Printf("Warning: failed to watch batches directory: %v", err)
		}
	}

	// Register the web UI (non-fatal if template parsing fails)
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Warning: web UI disabled due to template error: %v", r)
			}
		}()
		web.New(svc).Register(server.App())
	}()

	grpcServer := grpcapi.New(svc)
	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr())
		if err := grpcServer.Serve(cfg.GRPCAddr()); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down calculator server...")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("Calculator listening on %s (workers=%d, stopOnFatal=%t)", cfg.Addr(), cfg.Workers, cfg.StopOnFatal)
	return server.Listen(cfg.Addr())
}
