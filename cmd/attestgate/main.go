// Package main implements the attestgate CLI: quote/report verification,
// the tunnel server, and a tunnel client for exercising it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "attestgate",
	Short: "attestgate - TDX/SGX/SEV-SNP quote verification and tunnel",
	Long: `attestgate verifies Intel TDX and SGX quotes and AMD SEV-SNP
attestation reports against pinned root certificates, and runs the
encrypted tunnel that binds a remote HTTP/WebSocket channel to a
presented quote.

This tool supports:
- Quote/report verification (tdx, sgx, sevsnp)
- Running a tunnel server behind an attestation handshake
- Driving a tunnel client for testing and demos`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Commands are registered in their respective files:
	// - verify.go: verifyCmd (tdx, sgx, sevsnp subcommands)
	// - serve.go: serveCmd
	// - client.go: clientCmd
}
