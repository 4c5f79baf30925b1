package types

// AssetStatus classifies how a requested identifier resolved against the field model.
type AssetStatus string

const (
	AssetResolved    AssetStatus = "resolved"
	AssetAmbiguous   AssetStatus = "ambiguous"
	AssetUnknown     AssetStatus = "unknown"
	AssetOutOfBounds AssetStatus = "out_of_bounds"
	// AssetConflict marks a new identifier that already exists in the field model.
	AssetConflict AssetStatus = "conflict"
)

// Candidate is one field-model entry that may satisfy a lookup.
type Candidate struct {
	Identifier string            `json:"identifier"`
	Kind       EntityType        `json:"kind"`
	Score      float64           `json:"score"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ValidatedAsset is a reference resolved (or not) against a field-model snapshot.
//
// When ResolvedID is empty the confidence is below the acceptance threshold and
// Candidates is non-empty, otherwise Status is AssetUnknown.
type ValidatedAsset struct {
	Entity               ExtractedEntity   `json:"entity"`
	RequestedName        string            `json:"requested_name"`
	ResolvedID           string            `json:"resolved_identifier,omitempty"`
	ResolutionConfidence float64           `json:"resolution_confidence"`
	Candidates           []Candidate       `json:"candidates,omitempty"`
	Status               AssetStatus       `json:"status"`
	Attributes           map[string]string `json:"attributes,omitempty"`
	SnapshotVersion      uint64            `json:"snapshot_version"`
	Note                 string            `json:"note,omitempty"`
}

// Resolved reports whether the asset maps to a concrete field-model identifier.
func (a ValidatedAsset) Resolved() bool {
	return a.Status == AssetResolved && a.ResolvedID != ""
}

// CandidateNames lists candidate identifiers in score order.
func (a ValidatedAsset) CandidateNames() []string {
	names := make([]string, 0, len(a.Candidates))
	for _, c := range a.Candidates {
		names = append(names, c.Identifier)
	}
	return names
}
