package azure

import (
	"errors"
	"time"

	"github.com/attestgate/attestgate/internal/metrics"
	"github.com/attestgate/attestgate/qvl/codec"
	"github.com/attestgate/attestgate/qvl/errs"
)

// Result is the outcome of VerifyAzureChainOfTrust: the parsed HCL
// report, the vTPM attestation key, and the user-data it carries.
type Result struct {
	HCLReport *HCLReport
	AkPubDER  []byte
	UserData  []byte
}

// VerifyAzureChainOfTrust parses an HCL report and checks its binding to
// a TDX quote's report_data: SHA-256(variable_data) must equal
// report_data[0:32], and report_data[32:64] must be all zero.
func VerifyAzureChainOfTrust(quote *codec.TdxQuote, hclReportBytes []byte) (result *Result, err error) {
	start := time.Now()
	defer func() {
		metrics.QuoteVerifyDuration.WithLabelValues("azure_vtpm").Observe(time.Since(start).Seconds())
		metrics.QuotesVerified.WithLabelValues("azure_vtpm", resultLabel(err)).Inc()
	}()

	hcl, err := ParseHCLReport(hclReportBytes)
	if err != nil {
		return nil, err
	}

	if !IsBound(quote.Body.ReportData, hcl.VariableData) {
		err = errs.New(errs.HclBindingFailed, "hcl variable_data does not bind to quote report_data")
		return nil, err
	}

	return &Result{
		HCLReport: hcl,
		AkPubDER:  hcl.AkPubDER,
		UserData:  hcl.UserData,
	}, nil
}

// resultLabel maps a verification error to its metrics result label: "ok"
// on success, otherwise the error's Kind string (or "error" for anything
// that isn't a *errs.VerifyError).
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var verr *errs.VerifyError
	if errors.As(err, &verr) {
		return string(verr.Kind)
	}
	return "error"
}
