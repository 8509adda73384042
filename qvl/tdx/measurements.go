package tdx

import "strings"

// MeasurementRecord is a subset of {mr_td/mr_enclave, mr_signer,
// rtmr0..3, isv_prod_id, isv_svn, report_data, xfam}. Every field the
// caller sets must match (AND within a record); hex comparisons are
// lowercase. A nil field is unconstrained.
type MeasurementRecord struct {
	MrTdOrEnclave *string
	MrSigner      *string
	Rtmr0         *string
	Rtmr1         *string
	Rtmr2         *string
	Rtmr3         *string
	IsvProdID     *string
	IsvSVN        *string
	ReportData    *string
	Xfam          *string
}

func (r MeasurementRecord) matches(actual map[string]string) bool {
	check := func(field *string, key string) bool {
		if field == nil {
			return true
		}
		got, ok := actual[key]
		if !ok {
			return false
		}
		return strings.EqualFold(*field, got)
	}
	return check(r.MrTdOrEnclave, "mr_td_or_enclave") &&
		check(r.MrSigner, "mr_signer") &&
		check(r.Rtmr0, "rtmr0") &&
		check(r.Rtmr1, "rtmr1") &&
		check(r.Rtmr2, "rtmr2") &&
		check(r.Rtmr3, "rtmr3") &&
		check(r.IsvProdID, "isv_prod_id") &&
		check(r.IsvSVN, "isv_svn") &&
		check(r.ReportData, "report_data") &&
		check(r.Xfam, "xfam")
}

// MeasurementPredicate is a caller-supplied function that inspects the
// raw measurement map directly, for checks that can't be expressed as a
// simple record.
type MeasurementPredicate func(actual map[string]string) bool

// MeasurementConfig is one of: a single record, a list of records (OR
// semantics across the list), a predicate function, or a mixed list of
// records and predicates (still OR'd together).
type MeasurementConfig struct {
	Records    []MeasurementRecord
	Predicates []MeasurementPredicate
}

// Single builds a MeasurementConfig containing exactly one record.
func Single(r MeasurementRecord) MeasurementConfig {
	return MeasurementConfig{Records: []MeasurementRecord{r}}
}

// AnyOf builds a MeasurementConfig satisfied if any of the given records
// matches (OR semantics).
func AnyOf(records ...MeasurementRecord) MeasurementConfig {
	return MeasurementConfig{Records: records}
}

// evaluate reports whether actual satisfies cfg: true if any record or
// predicate in cfg matches (empty cfg is never satisfied — callers that
// want to skip measurement checking should leave VerifyMeasurements unset).
func (cfg MeasurementConfig) evaluate(actual map[string]string) bool {
	for _, r := range cfg.Records {
		if r.matches(actual) {
			return true
		}
	}
	for _, p := range cfg.Predicates {
		if p(actual) {
			return true
		}
	}
	return false
}

// IsZero reports whether no records or predicates were configured.
func (cfg MeasurementConfig) IsZero() bool {
	return len(cfg.Records) == 0 && len(cfg.Predicates) == 0
}
