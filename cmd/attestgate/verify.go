package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/attestgate/attestgate/internal/logger"
	"github.com/attestgate/attestgate/qvl/roots"
	"github.com/attestgate/attestgate/qvl/sevsnp"
	"github.com/attestgate/attestgate/qvl/tdx"
)

var (
	verifyQuoteFile  string
	verifySGXRoot    string
	verifyAMDRoots   []string
	verifyDateStr    string
	verifyMrTdOrEnc  string
	verifyAllowDebug bool

	verifyVcekFile string
	verifyAskFile  string
	verifyArkFile  string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a TDX/SGX quote or a SEV-SNP attestation report",
	Long: `Verify checks a quote or report against pinned root certificates,
the embedded PCK/VCEK certificate chain, and an optional measurement
policy.`,
}

var verifyTdxCmd = &cobra.Command{
	Use:     "tdx",
	Short:   "Verify an Intel TDX quote",
	Example: `  attestgate verify tdx --quote quote.bin --sgx-root intel-sgx-root.pem`,
	RunE:    runVerifyTdx,
}

var verifySgxCmd = &cobra.Command{
	Use:     "sgx",
	Short:   "Verify an Intel SGX quote",
	Example: `  attestgate verify sgx --quote quote.bin --sgx-root intel-sgx-root.pem`,
	RunE:    runVerifySgx,
}

var verifySevSnpCmd = &cobra.Command{
	Use:     "sevsnp",
	Short:   "Verify an AMD SEV-SNP attestation report",
	Example: `  attestgate verify sevsnp --quote report.bin --vcek vcek.pem --ask ask.pem --ark ark.pem --amd-root amd-ark-milan.pem`,
	RunE:    runVerifySevSnp,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.AddCommand(verifyTdxCmd)
	verifyCmd.AddCommand(verifySgxCmd)
	verifyCmd.AddCommand(verifySevSnpCmd)

	for _, c := range []*cobra.Command{verifyTdxCmd, verifySgxCmd, verifySevSnpCmd} {
		c.Flags().StringVar(&verifyQuoteFile, "quote", "", "Path to the raw quote or report (required)")
		c.Flags().StringVar(&verifyDateStr, "date", "", "Verification time, RFC3339 (default: now)")
		c.Flags().StringVar(&verifyMrTdOrEnc, "mr-measurement", "", "Expect this MRTD/MRENCLAVE hex value")
		c.MarkFlagRequired("quote")
	}

	verifyTdxCmd.Flags().StringVar(&verifySGXRoot, "sgx-root", "", "Pinned Intel SGX root CA PEM file (required)")
	verifyTdxCmd.MarkFlagRequired("sgx-root")

	verifySgxCmd.Flags().StringVar(&verifySGXRoot, "sgx-root", "", "Pinned Intel SGX root CA PEM file (required)")
	verifySgxCmd.MarkFlagRequired("sgx-root")

	verifySevSnpCmd.Flags().StringVar(&verifyVcekFile, "vcek", "", "VCEK leaf certificate (PEM or DER, required)")
	verifySevSnpCmd.Flags().StringVar(&verifyAskFile, "ask", "", "ASK intermediate certificate")
	verifySevSnpCmd.Flags().StringVar(&verifyArkFile, "ark", "", "AMD ARK root certificate presented as part of the chain (pinning uses --amd-root)")
	verifySevSnpCmd.Flags().StringSliceVar(&verifyAMDRoots, "amd-root", nil, "Pinned AMD ARK root PEM files (required)")
	verifySevSnpCmd.Flags().BoolVar(&verifyAllowDebug, "allow-debug", false, "Accept reports with DEBUG_ALLOWED policy set")
	verifySevSnpCmd.MarkFlagRequired("vcek")
}

func parseVerifyDate() (*time.Time, error) {
	if verifyDateStr == "" {
		now := time.Now()
		return &now, nil
	}
	t, err := time.Parse(time.RFC3339, verifyDateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --date: %w", err)
	}
	return &t, nil
}

func measurementConfig() tdx.MeasurementConfig {
	if verifyMrTdOrEnc == "" {
		return tdx.MeasurementConfig{}
	}
	val := verifyMrTdOrEnc
	return tdx.Single(tdx.MeasurementRecord{MrTdOrEnclave: &val})
}

func runVerifyTdx(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(verifyQuoteFile)
	if err != nil {
		return fmt.Errorf("failed to read quote: %w", err)
	}
	rootSet, err := roots.LoadFromPEM(verifySGXRoot)
	if err != nil {
		return fmt.Errorf("failed to load sgx root: %w", err)
	}
	date, err := parseVerifyDate()
	if err != nil {
		return err
	}

	cfg := tdx.Config{
		PinnedRoots:        rootSet,
		Date:               date,
		VerifyMeasurements: measurementConfig(),
	}
	if err := tdx.VerifyTdx(raw, cfg); err != nil {
		fmt.Println("Quote verification FAILED")
		return fmt.Errorf("tdx verification failed: %w", err)
	}
	fmt.Println("Quote verification PASSED")
	return nil
}

func runVerifySgx(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(verifyQuoteFile)
	if err != nil {
		return fmt.Errorf("failed to read quote: %w", err)
	}
	rootSet, err := roots.LoadFromPEM(verifySGXRoot)
	if err != nil {
		return fmt.Errorf("failed to load sgx root: %w", err)
	}
	date, err := parseVerifyDate()
	if err != nil {
		return err
	}

	cfg := tdx.Config{
		PinnedRoots:        rootSet,
		Date:               date,
		VerifyMeasurements: measurementConfig(),
	}
	if err := tdx.VerifySgx(raw, cfg); err != nil {
		fmt.Println("Quote verification FAILED")
		return fmt.Errorf("sgx verification failed: %w", err)
	}
	fmt.Println("Quote verification PASSED")
	return nil
}

func runVerifySevSnp(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(verifyQuoteFile)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	vcek, err := os.ReadFile(verifyVcekFile)
	if err != nil {
		return fmt.Errorf("failed to read vcek: %w", err)
	}
	var ask, ark []byte
	if verifyAskFile != "" {
		if ask, err = os.ReadFile(verifyAskFile); err != nil {
			return fmt.Errorf("failed to read ask: %w", err)
		}
	}
	if verifyArkFile != "" {
		if ark, err = os.ReadFile(verifyArkFile); err != nil {
			return fmt.Errorf("failed to read ark: %w", err)
		}
	}

	if len(verifyAMDRoots) == 0 {
		return logger.NewGateError(logger.ErrCodeInvalidInput,
			"--amd-root is required: VerifySevSnp refuses to trust an arbitrary AMD ARK and needs at least one pinned root PEM file", nil)
	}
	rootSet, err := roots.LoadFromPEM(verifyAMDRoots...)
	if err != nil {
		return fmt.Errorf("failed to load amd roots: %w", err)
	}
	pinned := rootSet.Fingerprints()

	date, err := parseVerifyDate()
	if err != nil {
		return err
	}

	var sevMeasurements sevsnp.MeasurementConfig
	if verifyMrTdOrEnc != "" {
		val := verifyMrTdOrEnc
		sevMeasurements = sevsnp.Single(sevsnp.MeasurementRecord{Measurement: &val})
	}

	cfg := sevsnp.Config{
		VcekCert:           vcek,
		AskCert:            ask,
		ArkCert:            ark,
		PinnedARK:          pinned,
		Date:               date,
		AllowDebug:         verifyAllowDebug,
		VerifyMeasurements: sevMeasurements,
	}
	if err := sevsnp.VerifySevSnp(raw, cfg); err != nil {
		fmt.Println("Report verification FAILED")
		return fmt.Errorf("sevsnp verification failed: %w", err)
	}
	fmt.Println("Report verification PASSED")
	return nil
}
