package codec

import "github.com/attestgate/attestgate/qvl/errs"

const (
	sevSnpReportSize  = 1184
	sevSnpSignedBytes = 672
	sevSnpSigBytes    = 512
	sevSnpSigCompLen  = 48 // each of r, s stored little-endian, zero-padded to 72 bytes on the wire
	sevSnpSigCompPad  = 72
)

// SevSnpReport mirrors AMD's ATTESTATION_REPORT (SEV-SNP ABI spec, Table
// 21): a fixed 1184-byte structure whose first 672 bytes are signed and
// whose trailing 512 bytes hold the ECDSA signature.
type SevSnpReport struct {
	Version         uint32
	GuestSVN        uint32
	Policy          uint64
	FamilyID        [16]byte
	ImageID         [16]byte
	VMPL            uint32
	SignatureAlgo   uint32
	PlatformVersion uint64
	PlatformInfo    uint64
	AuthorKeyEn     uint32
	ReportData      [64]byte
	Measurement     [48]byte
	HostData        [32]byte
	IDKeyDigest     [48]byte
	AuthorKeyDigest [48]byte
	ReportID        [32]byte
	ReportIDMA      [32]byte
	ReportTCB       uint64
	ChipID          [64]byte
	CommittedSVN    [8]byte
	CommittedVer    [8]byte
	LaunchSVN       [8]byte

	sigR [sevSnpSigCompLen]byte
	sigS [sevSnpSigCompLen]byte

	raw []byte
}

// ParseSevSnpReport parses a raw 1184-byte SEV-SNP attestation report.
func ParseSevSnpReport(buf []byte) (*SevSnpReport, error) {
	if len(buf) < sevSnpReportSize {
		return nil, errs.New(errs.TruncatedInput, "buffer shorter than sev-snp report")
	}
	r := newReader(buf)

	rep := &SevSnpReport{raw: buf}
	var err error
	if rep.Version, err = r.u32(); err != nil {
		return nil, err
	}
	if rep.GuestSVN, err = r.u32(); err != nil {
		return nil, err
	}
	if rep.Policy, err = readU64(r); err != nil {
		return nil, err
	}
	if err = readFull(r, rep.FamilyID[:]); err != nil {
		return nil, err
	}
	if err = readFull(r, rep.ImageID[:]); err != nil {
		return nil, err
	}
	if rep.VMPL, err = r.u32(); err != nil {
		return nil, err
	}
	if rep.SignatureAlgo, err = r.u32(); err != nil {
		return nil, err
	}
	if rep.PlatformVersion, err = readU64(r); err != nil {
		return nil, err
	}
	if rep.PlatformInfo, err = readU64(r); err != nil {
		return nil, err
	}
	if rep.AuthorKeyEn, err = r.u32(); err != nil {
		return nil, err
	}
	if _, err = r.bytes(4); err != nil { // reserved1
		return nil, err
	}
	if err = readFull(r, rep.ReportData[:]); err != nil {
		return nil, err
	}
	if err = readFull(r, rep.Measurement[:]); err != nil {
		return nil, err
	}
	if err = readFull(r, rep.HostData[:]); err != nil {
		return nil, err
	}
	if err = readFull(r, rep.IDKeyDigest[:]); err != nil {
		return nil, err
	}
	if err = readFull(r, rep.AuthorKeyDigest[:]); err != nil {
		return nil, err
	}
	if err = readFull(r, rep.ReportID[:]); err != nil {
		return nil, err
	}
	if err = readFull(r, rep.ReportIDMA[:]); err != nil {
		return nil, err
	}
	if rep.ReportTCB, err = readU64(r); err != nil {
		return nil, err
	}
	if _, err = r.bytes(24); err != nil { // reserved2
		return nil, err
	}
	if err = readFull(r, rep.ChipID[:]); err != nil {
		return nil, err
	}
	if err = readFull(r, rep.CommittedSVN[:]); err != nil {
		return nil, err
	}
	if err = readFull(r, rep.CommittedVer[:]); err != nil {
		return nil, err
	}
	if err = readFull(r, rep.LaunchSVN[:]); err != nil {
		return nil, err
	}
	if _, err = r.bytes(168); err != nil { // reserved3
		return nil, err
	}

	if r.pos != sevSnpSignedBytes {
		return nil, errs.New(errs.MalformedField, "sev-snp signed body did not consume exactly 672 bytes")
	}

	sigStart := r.pos
	rBytes, err := r.bytes(sevSnpSigCompPad)
	if err != nil {
		return nil, err
	}
	copy(rep.sigR[:], rBytes[:sevSnpSigCompLen])

	sBytes, err := r.bytes(sevSnpSigCompPad)
	if err != nil {
		return nil, err
	}
	copy(rep.sigS[:], sBytes[:sevSnpSigCompLen])

	if _, err = r.bytes(sevSnpReportSize - sigStart - 2*sevSnpSigCompPad); err != nil {
		return nil, err
	}

	if rep.Version < 2 {
		return nil, errs.New(errs.UnsupportedVersion, "sev-snp report version must be >= 2")
	}
	if rep.SignatureAlgo != 0 && rep.SignatureAlgo != 1 {
		return nil, errs.New(errs.UnsupportedAlgorithm, "sev-snp signature_algo must be 0 or 1 (ECDSA-P384/SHA-384)")
	}

	return rep, nil
}

func readU64(r *reader) (uint64, error) {
	lo, err := r.u32()
	if err != nil {
		return 0, err
	}
	hi, err := r.u32()
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// SignedRegion returns the first 672 bytes of the report, the body over
// which the ECDSA signature is computed.
func (r *SevSnpReport) SignedRegion() []byte { return r.raw[:sevSnpSignedBytes] }

// RawSignature returns the 96-byte big-endian r||s signature, converted
// from the report's little-endian, zero-padded wire representation so it
// can be handed directly to a crypto/ecdsa verifier.
func (r *SevSnpReport) RawSignature() [2 * sevSnpSigCompLen]byte {
	var out [2 * sevSnpSigCompLen]byte
	copy(out[:sevSnpSigCompLen], reverse(r.sigR[:]))
	copy(out[sevSnpSigCompLen:], reverse(r.sigS[:]))
	return out
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
