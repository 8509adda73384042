// Package azure verifies the Azure vTPM-wrapped TDX attestation flow: the
// Hardware Compatibility Layer (HCL) report embedded in a TD quote's
// runtime data, its binding to the quote's report_data, and the vTPM
// attestation key it carries.
package azure

import (
	"encoding/binary"

	"github.com/attestgate/attestgate/qvl/errs"
)

// hclMagic identifies an HCL runtime-data envelope: a fixed header
// followed by three length-prefixed (uint32 little-endian) blocks —
// variable_data, the vTPM AK public key (DER-encoded RSA), and the
// caller-supplied user-data blob.
const hclMagic uint32 = 0x48434c52 // "HCLR"

// HCLReport is the parsed runtime-data envelope Azure's attestation agent
// places alongside a TD quote.
type HCLReport struct {
	VariableData []byte
	AkPubDER     []byte
	UserData     []byte
	raw          []byte
}

// ParseHCLReport parses the HCL runtime-data envelope.
func ParseHCLReport(buf []byte) (*HCLReport, error) {
	if len(buf) < 4 {
		return nil, errs.New(errs.TruncatedInput, "hcl report shorter than magic")
	}
	if binary.LittleEndian.Uint32(buf) != hclMagic {
		return nil, errs.New(errs.MalformedField, "hcl report magic mismatch")
	}
	pos := 4

	readBlock := func() ([]byte, error) {
		if pos+4 > len(buf) {
			return nil, errs.New(errs.TruncatedInput, "hcl report truncated reading block length")
		}
		n := int(binary.LittleEndian.Uint32(buf[pos:]))
		pos += 4
		if n < 0 || pos+n > len(buf) {
			return nil, errs.New(errs.TruncatedInput, "hcl report truncated reading block body")
		}
		block := buf[pos : pos+n]
		pos += n
		return block, nil
	}

	variableData, err := readBlock()
	if err != nil {
		return nil, err
	}
	akPub, err := readBlock()
	if err != nil {
		return nil, err
	}
	userData, err := readBlock()
	if err != nil {
		return nil, err
	}

	return &HCLReport{
		VariableData: variableData,
		AkPubDER:     akPub,
		UserData:     userData,
		raw:          buf,
	}, nil
}
