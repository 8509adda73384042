package tdx

import "testing"

func strp(s string) *string { return &s }

func actualMap() map[string]string {
	return map[string]string{
		"mr_td_or_enclave": "AABB",
		"mr_signer":        "CCDD",
		"rtmr0":            "00",
		"rtmr1":            "01",
		"rtmr2":            "02",
		"rtmr3":            "03",
		"isv_prod_id":      "1",
		"isv_svn":          "2",
		"report_data":      "EEFF",
		"xfam":             "07",
	}
}

func TestMeasurementRecordMatchesCaseInsensitive(t *testing.T) {
	r := MeasurementRecord{MrTdOrEnclave: strp("aabb")}
	if !r.matches(actualMap()) {
		t.Fatal("expected case-insensitive hex match")
	}
}

func TestMeasurementRecordRejectsMismatch(t *testing.T) {
	r := MeasurementRecord{MrTdOrEnclave: strp("ffff")}
	if r.matches(actualMap()) {
		t.Fatal("expected mismatch to fail")
	}
}

func TestMeasurementRecordNilFieldsUnconstrained(t *testing.T) {
	r := MeasurementRecord{}
	if !r.matches(actualMap()) {
		t.Fatal("expected empty record to match anything")
	}
}

func TestMeasurementRecordAllFieldsMustMatch(t *testing.T) {
	r := MeasurementRecord{MrTdOrEnclave: strp("aabb"), MrSigner: strp("wrong")}
	if r.matches(actualMap()) {
		t.Fatal("expected AND semantics across fields to fail on one mismatch")
	}
}

func TestMeasurementRecordMissingKeyFails(t *testing.T) {
	r := MeasurementRecord{Xfam: strp("07")}
	actual := actualMap()
	delete(actual, "xfam")
	if r.matches(actual) {
		t.Fatal("expected missing key to fail a constrained field")
	}
}

func TestSingleBuildsOneRecordConfig(t *testing.T) {
	cfg := Single(MeasurementRecord{MrTdOrEnclave: strp("aabb")})
	if len(cfg.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(cfg.Records))
	}
	if !cfg.evaluate(actualMap()) {
		t.Fatal("expected config to match")
	}
}

func TestAnyOfORSemantics(t *testing.T) {
	cfg := AnyOf(
		MeasurementRecord{MrTdOrEnclave: strp("ffff")},
		MeasurementRecord{MrTdOrEnclave: strp("aabb")},
	)
	if !cfg.evaluate(actualMap()) {
		t.Fatal("expected OR semantics: second record should match")
	}
}

func TestEvaluateEmptyConfigNeverMatches(t *testing.T) {
	var cfg MeasurementConfig
	if cfg.evaluate(actualMap()) {
		t.Fatal("expected empty config to never match")
	}
}

func TestIsZero(t *testing.T) {
	var cfg MeasurementConfig
	if !cfg.IsZero() {
		t.Fatal("expected zero-value config to report IsZero")
	}
	cfg = Single(MeasurementRecord{})
	if cfg.IsZero() {
		t.Fatal("expected config with a record to not be zero")
	}
}

func TestEvaluatePredicate(t *testing.T) {
	cfg := MeasurementConfig{
		Predicates: []MeasurementPredicate{
			func(actual map[string]string) bool { return actual["isv_prod_id"] == "1" },
		},
	}
	if !cfg.evaluate(actualMap()) {
		t.Fatal("expected predicate to match")
	}
}
