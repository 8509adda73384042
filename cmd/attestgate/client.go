package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/attestgate/attestgate/config"
	"github.com/attestgate/attestgate/internal/logger"
	"github.com/attestgate/attestgate/qvl/roots"
	"github.com/attestgate/attestgate/qvl/tdx"
	"github.com/attestgate/attestgate/tunnel/client"
	"github.com/attestgate/attestgate/tunnel/handshake"
	"github.com/attestgate/attestgate/tunnel/httpmux"
)

var (
	clientURL       string
	clientConfigDir string
	clientEnv       string
	clientSGXRoot   string
	clientMethod    string
	clientPath      string
	clientMrMeasure string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Dial an attestgate tunnel server and issue a request",
	Long: `client dials the tunnel server's control channel, verifies the
announced quote against the configured measurement policy, and issues a
single tunneled HTTP request, printing the response.`,
	Example: `  attestgate client --url wss://server.example.com/__ra__ --sgx-root intel-sgx-root.pem`,
	RunE:    runClient,
}

func init() {
	rootCmd.AddCommand(clientCmd)

	clientCmd.Flags().StringVar(&clientURL, "url", "", "Tunnel server control WebSocket URL (required)")
	clientCmd.Flags().StringVar(&clientConfigDir, "config-dir", "config", "Configuration directory")
	clientCmd.Flags().StringVar(&clientEnv, "environment", "", "Environment name (overrides ATTESTGATE_ENV detection)")
	clientCmd.Flags().StringVar(&clientSGXRoot, "sgx-root", "", "Pinned Intel SGX root CA PEM file (required)")
	clientCmd.Flags().StringVar(&clientMrMeasure, "mr-measurement", "", "Expect this MRTD/MRENCLAVE hex value")
	clientCmd.Flags().StringVar(&clientMethod, "method", "GET", "HTTP method for the demo request")
	clientCmd.Flags().StringVar(&clientPath, "path", "/", "URL path for the demo request")

	clientCmd.MarkFlagRequired("url")
	clientCmd.MarkFlagRequired("sgx-root")
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: clientConfigDir, Environment: clientEnv})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rootSet, err := roots.LoadFromPEM(clientSGXRoot)
	if err != nil {
		return fmt.Errorf("failed to load sgx root: %w", err)
	}

	var measurements tdx.MeasurementConfig
	if clientMrMeasure != "" {
		val := clientMrMeasure
		measurements = tdx.Single(tdx.MeasurementRecord{MrTdOrEnclave: &val})
	}

	log := logger.NewLogger(os.Stdout, logger.InfoLevel)

	c := client.New(client.Config{
		URL: clientURL,
		Handshake: handshake.ClientConfig{
			Measurements: measurements,
			TdxVerifyConfig: tdx.Config{
				PinnedRoots:        rootSet,
				VerifyMeasurements: measurements,
			},
		},
		RequestTimeout: cfg.Tunnel.RequestTimeout,
		ReconnectDelay: cfg.Tunnel.ReconnectDelay,
		Logger:         log,
		OnDisconnect: func() {
			log.Warn("tunnel disconnected")
		},
	})

	ctx := context.Background()
	if err := c.Dial(ctx); err != nil {
		return fmt.Errorf("failed to dial tunnel server: %w", err)
	}
	defer c.Close()

	resp, err := c.HTTP.Fetch(ctx, httpmux.Request{
		Method: clientMethod,
		URL:    clientPath,
	})
	if err != nil {
		return fmt.Errorf("tunneled request failed: %w", err)
	}

	fmt.Printf("Status: %d %s\n", resp.Status, resp.StatusText)
	fmt.Printf("Body: %s\n", resp.Body)
	return nil
}
