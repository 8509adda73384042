package codec

import "github.com/attestgate/attestgate/qvl/errs"

func parseHeader(r *reader) (Header, error) {
	var h Header
	var err error
	if h.Version, err = r.u16(); err != nil {
		return h, err
	}
	if h.AttKeyType, err = r.u16(); err != nil {
		return h, err
	}
	if h.TeeType, err = r.u32(); err != nil {
		return h, err
	}
	if h.QESVN, err = r.u16(); err != nil {
		return h, err
	}
	if h.PCESVN, err = r.u16(); err != nil {
		return h, err
	}
	if err = r.array16(h.QEVendorID[:]); err != nil {
		return h, err
	}
	if err = r.array16(h.UserData[:]); err != nil {
		return h, err
	}
	if h.Version != 3 {
		return h, errs.New(errs.UnsupportedVersion, "quote header version must be 3")
	}
	if h.TeeType != TeeTypeSGX && h.TeeType != TeeTypeTDX {
		return h, errs.New(errs.MalformedField, "unrecognized tee_type")
	}
	// att_key_type's expected-value check (ECDSA-P256) and TeeType's
	// match-against-caller-expected-TEE check both run after PCK chain
	// validation, not here; see verifyCommon's step 4.
	return h, nil
}

func parseSgxBody(r *reader) (SgxBody, error) {
	var b SgxBody
	var err error
	if err = r.array16(b.CPUSVN[:]); err != nil {
		return b, err
	}
	if b.MiscSelect, err = r.u32(); err != nil {
		return b, err
	}
	if _, err = r.bytes(28); err != nil { // reserved1
		return b, err
	}
	if err = r.array16(b.Attributes[:]); err != nil {
		return b, err
	}
	if err = readFull(r, b.MrEnclave[:]); err != nil {
		return b, err
	}
	if _, err = r.bytes(32); err != nil { // reserved2
		return b, err
	}
	if err = readFull(r, b.MrSigner[:]); err != nil {
		return b, err
	}
	if _, err = r.bytes(96); err != nil { // reserved3
		return b, err
	}
	if b.IsvProdID, err = r.u16(); err != nil {
		return b, err
	}
	if b.IsvSVN, err = r.u16(); err != nil {
		return b, err
	}
	if _, err = r.bytes(60); err != nil { // reserved4
		return b, err
	}
	if err = readFull(r, b.ReportData[:]); err != nil {
		return b, err
	}
	return b, nil
}

func parseTdxBody(r *reader) (TdxBody, error) {
	var b TdxBody
	fields := []struct {
		dst []byte
	}{
		{b.TeeTcbSVN[:]}, {b.MrSeam[:]}, {b.MrSignerSeam[:]}, {b.SeamAttribs[:]},
		{b.TdAttributes[:]}, {b.Xfam[:]}, {b.MrTd[:]}, {b.MrConfigID[:]}, {b.MrOwner[:]},
		{b.MrOwnerConfig[:]}, {b.Rtmr0[:]}, {b.Rtmr1[:]}, {b.Rtmr2[:]}, {b.Rtmr3[:]}, {b.ReportData[:]},
	}
	for _, f := range fields {
		if err := readFull(r, f.dst); err != nil {
			return b, err
		}
	}
	return b, nil
}

func readFull(r *reader, dst []byte) error {
	b, err := r.bytes(len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}
