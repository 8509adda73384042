package sevsnp

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"math/big"
	"time"

	"github.com/attestgate/attestgate/internal/metrics"
	"github.com/attestgate/attestgate/qvl/chain"
	"github.com/attestgate/attestgate/qvl/codec"
	"github.com/attestgate/attestgate/qvl/errs"
	"github.com/attestgate/attestgate/qvl/x509util"
)

// VerifySevSnp runs the full SEV-SNP verification algorithm against a raw
// 1184-byte attestation report: parse and version/algorithm checks
// (already enforced by codec.ParseSevSnpReport), policy and platform
// gates, the VCEK chain and report signature, measurement matching, and
// an optional TCB callback.
func VerifySevSnp(raw []byte, cfg Config) (err error) {
	start := time.Now()
	defer func() {
		metrics.QuoteVerifyDuration.WithLabelValues("sevsnp").Observe(time.Since(start).Seconds())
		metrics.QuotesVerified.WithLabelValues("sevsnp", resultLabel(err)).Inc()
	}()

	report, err := codec.ParseSevSnpReport(raw)
	if err != nil {
		return err
	}

	if report.Policy&policyBitDebug != 0 && !cfg.AllowDebug {
		err = errs.New(errs.DebugEnabled, "guest policy permits debugging but allow_debug is not set")
		return err
	}

	if cfg.MaxVMPL != 0 && report.VMPL > cfg.MaxVMPL {
		err = errs.New(errs.VmplTooLow, "report VMPL exceeds configured maximum")
		return err
	}

	if cfg.enforceSMT() {
		smtAllowed := report.Policy&policyBitSMT != 0
		smtEnabled := report.PlatformInfo&platformBitSMT != 0
		if !smtAllowed && smtEnabled {
			err = errs.New(errs.SmtPolicyViolation, "platform has SMT enabled but guest policy disallows it")
			return err
		}
	}

	if len(cfg.VcekCert) > 0 {
		if err = verifySignature(report, cfg); err != nil {
			return err
		}
	}

	if !cfg.VerifyMeasurements.IsZero() {
		actual := map[string]string{
			"measurement": hex.EncodeToString(report.Measurement[:]),
			"report_data": hex.EncodeToString(report.ReportData[:]),
			"host_data":   hex.EncodeToString(report.HostData[:]),
			"family_id":   hex.EncodeToString(report.FamilyID[:]),
			"image_id":    hex.EncodeToString(report.ImageID[:]),
		}
		if !cfg.VerifyMeasurements.evaluate(actual) {
			err = errs.New(errs.MeasurementMismatch, "no configured measurement record matched")
			return err
		}
	}

	if cfg.VerifyTCB != nil && !cfg.VerifyTCB(report.ReportTCB) {
		err = errs.New(errs.TcbRejected, "TCB callback rejected report")
		return err
	}

	return nil
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

// verifySignature builds the VCEK->ASK->(ARK?) chain, validates it,
// checks the ARK fingerprint against the pinned set, and verifies the
// report's ECDSA-P384/SHA-384 signature over the first 672 bytes.
func verifySignature(report *codec.SevSnpReport, cfg Config) error {
	certs := make([]*x509.Certificate, 0, 3)
	vcek, err := x509util.ParseCertificate(cfg.VcekCert)
	if err != nil {
		return err
	}
	certs = append(certs, vcek)

	if len(cfg.AskCert) > 0 {
		ask, err := x509util.ParseCertificate(cfg.AskCert)
		if err != nil {
			return err
		}
		certs = append(certs, ask)
	}
	if len(cfg.ArkCert) > 0 {
		ark, err := x509util.ParseCertificate(cfg.ArkCert)
		if err != nil {
			return err
		}
		certs = append(certs, ark)
	}

	var verifyTime *time.Time
	if cfg.Date != nil {
		verifyTime = cfg.Date
	} else {
		now := time.Now()
		verifyTime = &now
	}
	revoked, err := x509util.RevokedSerials(cfg.CRLs)
	if err != nil {
		return err
	}

	result, err := chain.ValidateVcek(certs, cfg.PinnedARK, chain.Options{Time: verifyTime, Revoked: revoked})
	if err != nil {
		return err
	}
	switch result.Status {
	case chain.StatusExpired:
		return errs.New(errs.ChainExpired, "VCEK chain expired")
	case chain.StatusRevoked:
		return errs.New(errs.ChainRevoked, "VCEK chain contains a revoked certificate")
	case chain.StatusInvalid:
		return errs.New(errs.ChainInvalid, "VCEK chain signature linkage is invalid")
	}

	vcekPub, ok := vcek.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return errs.New(errs.UnsupportedCurve, "VCEK public key is not ECDSA")
	}

	digest := sha512.Sum384(report.SignedRegion())
	sig := report.RawSignature()
	r := new(big.Int).SetBytes(sig[:48])
	s := new(big.Int).SetBytes(sig[48:])
	if !ecdsa.Verify(vcekPub, digest[:], r, s) {
		return errs.New(errs.BadSevSnpSignature, "ECDSA-P384/SHA-384 verification against VCEK failed")
	}

	return nil
}
