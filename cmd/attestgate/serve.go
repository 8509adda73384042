package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/attestgate/attestgate/config"
	"github.com/attestgate/attestgate/internal/logger"
	"github.com/attestgate/attestgate/internal/metrics"
	"github.com/attestgate/attestgate/tunnel/handshake"
	"github.com/attestgate/attestgate/tunnel/httpmux"
	"github.com/attestgate/attestgate/tunnel/server"
	"github.com/attestgate/attestgate/tunnel/wsmux"
)

var (
	serveConfigDir   string
	serveEnvironment string
	serveQuoteFile   string
	serveRuntimeFile string
	serveMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the attestgate tunnel server",
	Long: `serve starts the tunnel control-channel server: it upgrades the
reserved control path, announces a quote to every connecting client,
and multiplexes HTTP and WebSocket traffic over the resulting encrypted
channel once the handshake completes.`,
	Example: `  attestgate serve --quote quote.bin --config-dir ./config`,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveConfigDir, "config-dir", "config", "Configuration directory")
	serveCmd.Flags().StringVar(&serveEnvironment, "environment", "", "Environment name (overrides ATTESTGATE_ENV detection)")
	serveCmd.Flags().StringVar(&serveQuoteFile, "quote", "", "Path to the TDX/SGX quote announced to clients (required)")
	serveCmd.Flags().StringVar(&serveRuntimeFile, "runtime-data", "", "Path to the quote's runtime_data, if any")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Standalone metrics listen address (defaults to config's metrics.port)")
	serveCmd.MarkFlagRequired("quote")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: serveConfigDir, Environment: serveEnvironment})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.NewLogger(os.Stdout, logger.InfoLevel)
	log.Info("starting attestgate tunnel server", logger.String("listen_addr", cfg.Tunnel.ListenAddr))

	quote, err := os.ReadFile(serveQuoteFile)
	if err != nil {
		return fmt.Errorf("failed to read quote: %w", err)
	}
	var runtimeData []byte
	if serveRuntimeFile != "" {
		if runtimeData, err = os.ReadFile(serveRuntimeFile); err != nil {
			return fmt.Errorf("failed to read runtime data: %w", err)
		}
	}

	announce := func() (handshake.Announcement, error) {
		return handshake.Announcement{
			Quote:       quote,
			RuntimeData: runtimeData,
		}, nil
	}

	srv := server.New(server.Config{
		Announce:          announce,
		HTTPHandler:       echoHandler,
		WSHandlers:        wsmux.Handlers{OnConnection: onWSConnection, OnMessage: onWSMessage, OnClose: onWSClose},
		HeartbeatInterval: cfg.Tunnel.HeartbeatInterval,
		HeartbeatTimeout:  cfg.Tunnel.HeartbeatTimeout,
		Logger:            log,
	})
	srv.Run()
	defer srv.Stop()

	mux := http.NewServeMux()
	mux.Handle(server.ReservedPath, srv.Handler())

	if cfg.Metrics.Enabled {
		metricsAddr := serveMetricsAddr
		if metricsAddr == "" {
			metricsAddr = fmt.Sprintf(":%d", cfg.Metrics.Port)
		}
		metricsServer := &http.Server{Addr: metricsAddr, Handler: metrics.NewMux(cfg.Metrics.Path)}
		go func() {
			log.Info("serving metrics", logger.String("addr", metricsAddr), logger.String("path", cfg.Metrics.Path))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", logger.Error(err))
			}
		}()
		defer metricsServer.Close()
	}

	httpServer := &http.Server{Addr: cfg.Tunnel.ListenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("addr", cfg.Tunnel.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-sigCh:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Tunnel.RequestTimeout)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
}

// echoHandler is the default HTTP handler wired for "serve": it echoes
// the tunneled request back as a diagnostic, useful for smoke-testing a
// fresh deployment before a real backend handler is wired in.
func echoHandler(req httpmux.Request) httpmux.Response {
	body := fmt.Sprintf("attestgate tunnel: %s %s", req.Method, req.URL)
	return httpmux.Response{
		Status:     http.StatusOK,
		StatusText: "OK",
		Headers:    map[string][]string{"Content-Type": {"text/plain"}},
		Body:       []byte(body),
	}
}

func onWSConnection(sock *wsmux.Socket) {
	sock.SendText("attestgate tunnel: connected")
}

func onWSMessage(sock *wsmux.Socket, data []byte, isText bool) {
	if isText {
		sock.SendText(string(data))
		return
	}
	sock.SendBinary(data)
}

func onWSClose(sock *wsmux.Socket, code int, reason string) {}
