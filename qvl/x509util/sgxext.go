package x509util

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"

	"github.com/attestgate/attestgate/qvl/errs"
)

// Intel SGX PCK certificate extension OIDs (Intel SGX PCK Certificate and
// Certificate Revocation List Profile Specification).
var (
	oidSGXExtension = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1}
	oidSGXTCB       = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 2}
	oidSGXPCESVN    = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 2, 17}
	oidSGXFMSPC     = asn1.ObjectIdentifier{1, 2, 840, 113741, 1, 13, 1, 4}
)

// SGXTcbInfo carries the per-component TCB SVN vector, the PCESVN, and
// the FMSPC extracted from a PCK leaf certificate's SGX extension.
type SGXTcbInfo struct {
	FMSPC     [6]byte
	PCESVN    uint16
	CompSVN   [16]byte
}

type sgxExtensionValue struct {
	OID   asn1.ObjectIdentifier
	Value asn1.RawValue
}

// ExtractSGXTcbInfo parses the Intel SGX extension (OID
// 1.2.840.113741.1.13.1) from a PCK leaf certificate and returns the
// FMSPC, PCESVN, and the 16 TCB component SVNs.
func ExtractSGXTcbInfo(cert *x509.Certificate) (*SGXTcbInfo, error) {
	var sgxExt *pkix.Extension
	for i := range cert.Extensions {
		if cert.Extensions[i].Id.Equal(oidSGXExtension) {
			sgxExt = &cert.Extensions[i]
			break
		}
	}
	if sgxExt == nil {
		return nil, errs.New(errs.MalformedExtension, "certificate has no Intel SGX extension")
	}

	var values []sgxExtensionValue
	if _, err := asn1.Unmarshal(sgxExt.Value, &values); err != nil {
		return nil, errs.Wrap(errs.MalformedExtension, "failed to parse SGX extension sequence", err)
	}

	info := &SGXTcbInfo{}
	var foundFMSPC, foundTCB bool
	for _, v := range values {
		switch {
		case v.OID.Equal(oidSGXFMSPC):
			var raw []byte
			if _, err := asn1.Unmarshal(v.Value.FullBytes, &raw); err != nil {
				return nil, errs.Wrap(errs.MalformedExtension, "failed to parse FMSPC", err)
			}
			if len(raw) != 6 {
				return nil, errs.New(errs.MalformedExtension, "FMSPC must be 6 bytes")
			}
			copy(info.FMSPC[:], raw)
			foundFMSPC = true
		case v.OID.Equal(oidSGXTCB):
			var tcbValues []sgxExtensionValue
			if _, err := asn1.Unmarshal(v.Value.FullBytes, &tcbValues); err != nil {
				return nil, errs.Wrap(errs.MalformedExtension, "failed to parse TCB sequence", err)
			}
			for _, tv := range tcbValues {
				if tv.OID.Equal(oidSGXPCESVN) {
					var pcesvn int
					if _, err := asn1.Unmarshal(tv.Value.FullBytes, &pcesvn); err != nil {
						return nil, errs.Wrap(errs.MalformedExtension, "failed to parse PCESVN", err)
					}
					info.PCESVN = uint16(pcesvn)
					continue
				}
				for comp := 1; comp <= 16; comp++ {
					compOID := append(append(asn1.ObjectIdentifier{}, oidSGXTCB...), comp)
					if tv.OID.Equal(compOID) {
						var svn int
						if _, err := asn1.Unmarshal(tv.Value.FullBytes, &svn); err != nil {
							return nil, errs.Wrap(errs.MalformedExtension, "failed to parse TCB component SVN", err)
						}
						info.CompSVN[comp-1] = byte(svn)
					}
				}
			}
			foundTCB = true
		}
	}
	if !foundFMSPC || !foundTCB {
		return nil, errs.New(errs.MalformedExtension, "SGX extension missing FMSPC or TCB component")
	}
	return info, nil
}
