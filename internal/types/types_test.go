package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUtteranceIsImmutableValue(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	u := NewUtteranceAt("set well PROD-01 rate to 500", "en", at)
	if u.Text() != "set well PROD-01 rate to 500" {
		t.Fatalf("unexpected text %q", u.Text())
	}
	if u.Locale() != "en" {
		t.Fatalf("unexpected locale %q", u.Locale())
	}
	if !u.ReceivedAt().Equal(at) || u.ReceivedAt().Location() != time.UTC {
		t.Fatalf("expected arrival time normalized to UTC, got %v", u.ReceivedAt())
	}
	if u.IsBlank() {
		t.Fatalf("expected non-blank utterance")
	}
	if !NewUtterance(" \t\n", "").IsBlank() {
		t.Fatalf("expected whitespace-only utterance to be blank")
	}
}

func TestSpan(t *testing.T) {
	a := Span{Start: 4, End: 10}
	b := Span{Start: 9, End: 12}
	c := Span{Start: 10, End: 12}

	if a.Len() != 6 {
		t.Fatalf("expected length 6, got %d", a.Len())
	}
	if !a.Overlaps(b) || a.Overlaps(c) {
		t.Fatalf("half-open overlap wrong: a~b=%v a~c=%v", a.Overlaps(b), a.Overlaps(c))
	}
	if !a.Contains(Span{Start: 5, End: 10}) || a.Contains(b) {
		t.Fatalf("containment wrong")
	}
	if a.String() != "[4,10)" {
		t.Fatalf("unexpected span string %q", a.String())
	}
}

func TestEntityLookups(t *testing.T) {
	entities := []ExtractedEntity{
		{Name: EntityWellName, Value: "PROD-01"},
		{Name: EntityRateValue, Value: "500"},
		{Name: EntityWellName, Value: "PROD-02"},
	}
	wells := EntitiesOf(entities, EntityWellName)
	if len(wells) != 2 || wells[0].Value != "PROD-01" || wells[1].Value != "PROD-02" {
		t.Fatalf("expected wells in order, got %v", wells)
	}
	if _, ok := FirstOf(entities, EntityGroupName); ok {
		t.Fatalf("expected no group entity")
	}
	if e, ok := FirstOf(entities, EntityRateValue); !ok || e.Value != "500" {
		t.Fatalf("expected rate 500, got %v", e)
	}
	if !EntityGroupName.IsIdentifier() || EntityRateValue.IsIdentifier() {
		t.Fatalf("identifier classification wrong")
	}
}

func TestIntentUnknown(t *testing.T) {
	if !(Intent{}).IsUnknown() {
		t.Fatalf("expected zero intent to be unknown")
	}
	if (Intent{Kind: IntentSetRate, Confidence: 0.9}).IsUnknown() {
		t.Fatalf("expected SET_RATE to be known")
	}
}

func TestVerdicts(t *testing.T) {
	if !Proceed().IsProceed() {
		t.Fatalf("expected proceed")
	}

	items := []string{"group_name"}
	v := Clarify("which group", items...)
	items[0] = "mutated"
	if !v.IsClarify() || v.Items[0] != "group_name" {
		t.Fatalf("expected clarify to own its items, got %v", v)
	}
	if v.String() != "clarify(which group: group_name)" {
		t.Fatalf("unexpected string %q", v.String())
	}

	r := Rollback("deck_validation", "bad arity")
	if !r.IsRollback() || r.FailedStage != "deck_validation" {
		t.Fatalf("unexpected rollback %v", r)
	}
	if r.String() != "rollback(deck_validation: bad arity)" {
		t.Fatalf("unexpected string %q", r.String())
	}
}

func TestGovernanceMayExecute(t *testing.T) {
	cases := map[GovernanceOutcome]bool{
		GovernanceAutoApproved:     true,
		GovernanceApproved:         true,
		GovernanceRequiresApproval: false,
		GovernanceDenied:           false,
	}
	for outcome, want := range cases {
		if got := outcome.MayExecute(); got != want {
			t.Fatalf("%s: expected MayExecute=%v, got %v", outcome, want, got)
		}
	}
}

func TestAssetHelpers(t *testing.T) {
	a := ValidatedAsset{
		RequestedName: "NRTH",
		Status:        AssetAmbiguous,
		Candidates:    []Candidate{{Identifier: "NORTH", Score: 0.75}, {Identifier: "NE-SAT", Score: 0.7}},
	}
	if a.Resolved() {
		t.Fatalf("ambiguous asset must not count as resolved")
	}
	names := a.CandidateNames()
	if len(names) != 2 || names[0] != "NORTH" || names[1] != "NE-SAT" {
		t.Fatalf("unexpected candidates %v", names)
	}

	ok := ValidatedAsset{Status: AssetResolved, ResolvedID: "NORTH"}
	if !ok.Resolved() {
		t.Fatalf("expected resolved asset")
	}
}

func TestSimulationResultWireShape(t *testing.T) {
	data, err := json.Marshal(SimulationResult{}.Normalize())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"converged":false,"errors":[],"summary_metrics":{},"wall_time":0}`
	if string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}

	f := Failed(1.5, "simulator binary not found")
	if f.Converged || len(f.Errors) != 1 || f.SummaryMetrics == nil || f.WallTime != 1.5 {
		t.Fatalf("unexpected failed result %+v", f)
	}
}
