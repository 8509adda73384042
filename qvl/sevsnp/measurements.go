package sevsnp

import "strings"

// MeasurementRecord is a subset of {measurement, report_data, host_data,
// family_id, image_id}. Every field the caller sets must match (AND
// within a record); hex comparisons are lowercase. A nil field is
// unconstrained.
type MeasurementRecord struct {
	Measurement *string
	ReportData  *string
	HostData    *string
	FamilyID    *string
	ImageID     *string
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
	return check(r.Measurement, "measurement") &&
		check(r.ReportData, "report_data") &&
		check(r.HostData, "host_data") &&
		check(r.FamilyID, "family_id") &&
		check(r.ImageID, "image_id")
}

// MeasurementPredicate is a caller-supplied function that inspects the
// raw measurement map directly.
type MeasurementPredicate func(actual map[string]string) bool

// MeasurementConfig is one of: a single record, a list of records (OR
// semantics across the list), a predicate function, or a mix of both.
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
