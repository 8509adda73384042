package handshake

import (
	"crypto/rand"

	"github.com/attestgate/attestgate/qvl/sevsnp"
	"github.com/attestgate/attestgate/qvl/tdx"
	tcrypto "github.com/attestgate/attestgate/tunnel/crypto"
	"github.com/attestgate/attestgate/tunnel/envelope"
	"github.com/attestgate/attestgate/tunnel/errs"
)

// Negotiate runs the client side of the handshake against a received
// ServerKX frame: it verifies the announced quote, checks that its
// report_data binds to the announced public key, generates a fresh
// session key, and seals it for the server. The caller is responsible
// for sending the returned ClientKX frame and, on success, switching the
// connection to StateEncrypted.
func Negotiate(msg envelope.ServerKX, cfg ClientConfig) ([tcrypto.KeySize]byte, envelope.ClientKX, error) {
	var sessionKey [tcrypto.KeySize]byte

	if !cfg.validationConfigured() {
		return sessionKey, envelope.ClientKX{}, errs.New(errs.NoValidationStrategy, "neither a measurement policy nor custom_verify_quote is configured")
	}

	var serverPub [32]byte
	if len(msg.X25519PublicKey) != 32 {
		return sessionKey, envelope.ClientKX{}, errs.New(errs.MalformedEnvelope, "server_kx x25519PublicKey must be 32 bytes")
	}
	copy(serverPub[:], msg.X25519PublicKey)

	if err := verifyQuote(msg, cfg); err != nil {
		return sessionKey, envelope.ClientKX{}, wrapAttestationFailure(err)
	}

	if err := checkBinding(msg, cfg, serverPub); err != nil {
		return sessionKey, envelope.ClientKX{}, wrapAttestationFailure(err)
	}

	if cfg.CustomVerifyQuote != nil {
		if err := cfg.CustomVerifyQuote(msg.Quote); err != nil {
			return sessionKey, envelope.ClientKX{}, wrapAttestationFailure(err)
		}
	}

	if _, err := rand.Read(sessionKey[:]); err != nil {
		return sessionKey, envelope.ClientKX{}, errs.Wrap(errs.MalformedEnvelope, "failed to generate session key", err)
	}

	sealed, err := tcrypto.Seal(sessionKey[:], serverPub)
	if err != nil {
		return sessionKey, envelope.ClientKX{}, err
	}

	return sessionKey, envelope.ClientKX{Type: envelope.TypeClientKX, SealedSymmetricKey: sealed}, nil
}

func verifyQuote(msg envelope.ServerKX, cfg ClientConfig) error {
	switch {
	case cfg.SevSNP:
		sevCfg := cfg.SevSnpVerifyConfig
		if msg.SevSnpData != nil {
			sevCfg.VcekCert = msg.SevSnpData.VcekCert
			sevCfg.AskCert = msg.SevSnpData.AskCert
			sevCfg.ArkCert = msg.SevSnpData.ArkCert
		}
		return sevsnp.VerifySevSnp(msg.Quote, sevCfg)
	case cfg.SGX:
		// SGX quotes rely entirely on custom_verify_quote; the QVL
		// measurement model here targets TDX/SEV-SNP field names.
		return nil
	default:
		tdxCfg := cfg.TdxVerifyConfig
		if tdxCfg.VerifyMeasurements.IsZero() {
			tdxCfg.VerifyMeasurements = cfg.Measurements
		}
		return tdx.VerifyTdx(msg.Quote, tdxCfg)
	}
}

func checkBinding(msg envelope.ServerKX, cfg ClientConfig, serverPub [32]byte) error {
	if cfg.X25519Binding != nil {
		return cfg.X25519Binding(msg.Quote, serverPub)
	}
	if cfg.SevSNP {
		return defaultSevSnpBinding(msg.Quote, cfg.Nonce, serverPub)
	}
	if cfg.SGX {
		return nil
	}
	return defaultTdxBinding(msg.Quote, cfg.Nonce, serverPub)
}

func wrapAttestationFailure(err error) error {
	if err == nil {
		return nil
	}
	return errs.Wrap(errs.AttestationFailed, "attestation verification failed", err)
}
