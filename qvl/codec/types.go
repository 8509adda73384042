// Package codec implements pure, allocation-light binary parsers for
// Intel TDX/SGX quotes (version 3) and AMD SEV-SNP reports. Parsing never
// performs I/O and never panics on malformed input; every entry point
// returns a *errs.VerifyError on failure.
package codec

const (
	headerSize    = 48
	sgxBodySize   = 384
	tdxBodySize   = 584
	qeReportSize  = 384
	ecdsaP256RawLen = 64 // raw r||s or raw x||y, P-256
	ecdsaP384RawLen = 96 // raw r||s, P-384

	// TeeType values from the quote header.
	TeeTypeSGX uint32 = 0x00000000
	TeeTypeTDX uint32 = 0x00000081

	// AttKeyType value expected by this codec: ECDSA-P256.
	AttKeyTypeECDSAP256 uint16 = 2

	// CertDataType values carried in the QE certification data block.
	CertDataTypePPID         uint16 = 1
	CertDataTypePCKCertChain uint16 = 5
)

// Header is the common fixed 48-byte quote header shared by SGX and TDX
// version-3 quotes.
type Header struct {
	Version    uint16
	AttKeyType uint16
	TeeType    uint32
	QESVN      uint16
	PCESVN     uint16
	QEVendorID [16]byte
	UserData   [20]byte
}

// SgxBody is the 384-byte SGX REPORT_BODY structure.
type SgxBody struct {
	CPUSVN      [16]byte
	MiscSelect  uint32
	Attributes  [16]byte
	MrEnclave   [32]byte
	MrSigner    [32]byte
	IsvProdID   uint16
	IsvSVN      uint16
	ReportData  [64]byte
}

// TdxBody is the 584-byte TDX quote body structure.
type TdxBody struct {
	TeeTcbSVN     [16]byte
	MrSeam        [48]byte
	MrSignerSeam  [48]byte
	SeamAttribs   [8]byte
	TdAttributes  [8]byte
	Xfam          [8]byte
	MrTd          [48]byte
	MrConfigID    [48]byte
	MrOwner       [48]byte
	MrOwnerConfig [48]byte
	Rtmr0         [48]byte
	Rtmr1         [48]byte
	Rtmr2         [48]byte
	Rtmr3         [48]byte
	ReportData    [64]byte
}

// QEReport is the parsed QE (quoting enclave) SGX report body embedded in
// the quote's signature section, used for QE-report-signature and
// QE-binding checks.
type QEReport struct {
	Raw  [qeReportSize]byte
	Body SgxBody
}

// SignatureSection holds the variable-length tail of a version-3 quote:
// the ECDSA signature over the signed region, the raw attestation public
// key, the QE report and its signature, the QE auth data, and the
// certification data (PEM chain or a key identifier).
type SignatureSection struct {
	QuoteSignature     [ecdsaP256RawLen]byte // r||s over signed region
	AttestationPubKey  [ecdsaP256RawLen]byte // raw x||y
	QEReport           QEReport
	QEReportSignature  [ecdsaP256RawLen]byte // r||s, signed by PCK leaf
	QEAuthData         []byte
	CertDataType       uint16
	CertData           []byte // PEM chain when CertDataType == 5, key id otherwise
}

// SgxQuote is a fully parsed SGX version-3 quote.
type SgxQuote struct {
	Header    Header
	Body      SgxBody
	Signature SignatureSection
	raw       []byte
	signedLen int
}

// TdxQuote is a fully parsed TDX version-3 quote.
type TdxQuote struct {
	Header    Header
	Body      TdxBody
	Signature SignatureSection
	raw       []byte
	signedLen int
}

// SignedRegion returns the header||body bytes that the attestation
// signature in the signature section is computed over.
func (q *SgxQuote) SignedRegion() []byte { return q.raw[:q.signedLen] }

// SignedRegion returns the header||body bytes that the attestation
// signature in the signature section is computed over.
func (q *TdxQuote) SignedRegion() []byte { return q.raw[:q.signedLen] }

// Raw returns the full original quote bytes.
func (q *SgxQuote) Raw() []byte { return q.raw }

// Raw returns the full original quote bytes.
func (q *TdxQuote) Raw() []byte { return q.raw }
