package world

import (
	"fmt"
	"strconv"
	"strings"

	"deckpilot/internal/logging"
	"deckpilot/internal/types"
)

// Default resolution parameters.
const (
	DefaultMatchThreshold  = 0.8
	DefaultAmbiguityMargin = 0.05
	DefaultSuggestionFloor = 0.5
)

// AssetValidator resolves identifier entities against a field model.
//
// A candidate scoring at least MatchThreshold resolves the reference, unless
// the runner-up also clears the threshold within AmbiguityMargin of it, in
// which case the reference is ambiguous. Exact matches are never ambiguous.
// Below the threshold, candidates scoring at least SuggestionFloor are
// returned as suggestions.
type AssetValidator struct {
	MatchThreshold  float64
	AmbiguityMargin float64
	SuggestionFloor float64
}

// NewAssetValidator creates a validator with the given parameters.
func NewAssetValidator(threshold, margin, floor float64) *AssetValidator {
	return &AssetValidator{MatchThreshold: threshold, AmbiguityMargin: margin, SuggestionFloor: floor}
}

// Validate checks every identifier and grid-location entity. Other entity
// types are not field-model references and are skipped. It never fails;
// unknown references are reported, not raised.
func (v *AssetValidator) Validate(entities []types.ExtractedEntity, model FieldModel) []types.ValidatedAsset {
	var out []types.ValidatedAsset
	for _, e := range entities {
		switch {
		case e.Name.IsIdentifier():
			out = append(out, v.Resolve(e, model))
		case e.Name == types.EntityGridLocation:
			out = append(out, v.checkLocation(e, model))
		}
	}
	return out
}

// Resolve resolves one identifier entity.
func (v *AssetValidator) Resolve(e types.ExtractedEntity, model FieldModel) types.ValidatedAsset {
	log := logging.Get(logging.CategoryAssets)
	asset := types.ValidatedAsset{
		Entity:          e,
		RequestedName:   e.Value,
		SnapshotVersion: model.Version(),
		Status:          types.AssetUnknown,
	}

	var suggestions []types.Candidate
	cands := model.Lookup(e.Name, e.Value)
	for _, c := range cands {
		if c.Score >= v.SuggestionFloor {
			suggestions = append(suggestions, c)
		}
	}
	if len(cands) == 0 {
		asset.Note = fmt.Sprintf("no %s matches %q", kindLabel(e.Name), e.Value)
		log.Debugf("%s: unknown", e.Value)
		return asset
	}

	top := cands[0]
	if top.Score < v.MatchThreshold {
		asset.ResolutionConfidence = top.Score
		asset.Candidates = suggestions
		asset.Note = fmt.Sprintf("no %s matches %q closely enough", kindLabel(e.Name), e.Value)
		log.Debugf("%s: best %s at %.3f below %.3f", e.Value, top.Identifier, top.Score, v.MatchThreshold)
		return asset
	}

	if top.Score < 1 && len(cands) > 1 {
		second := cands[1]
		if second.Score >= v.MatchThreshold && top.Score-second.Score <= v.AmbiguityMargin {
			asset.Status = types.AssetAmbiguous
			asset.Candidates = suggestions
			asset.Note = fmt.Sprintf("%q could be %s", e.Value, strings.Join(asset.CandidateNames(), " or "))
			log.Debugf("%s: ambiguous between %s and %s", e.Value, top.Identifier, second.Identifier)
			return asset
		}
	}

	asset.Status = types.AssetResolved
	asset.ResolvedID = top.Identifier
	asset.ResolutionConfidence = top.Score
	asset.Attributes = top.Attributes
	asset.Candidates = suggestions
	log.Debugf("%s: resolved to %s (%.3f)", e.Value, top.Identifier, top.Score)
	return asset
}

// Declare checks an identifier the request introduces (a new well or group).
// It resolves to its own upper-cased name unless that name already exists.
func (v *AssetValidator) Declare(e types.ExtractedEntity, model FieldModel) types.ValidatedAsset {
	name := strings.ToUpper(strings.TrimSpace(e.Value))
	asset := types.ValidatedAsset{
		Entity:          e,
		RequestedName:   e.Value,
		SnapshotVersion: model.Version(),
	}
	for _, c := range model.Lookup(e.Name, e.Value) {
		if c.Score == 1 {
			asset.Status = types.AssetConflict
			asset.Candidates = []types.Candidate{c}
			asset.Note = fmt.Sprintf("%s %s already exists", kindLabel(e.Name), c.Identifier)
			return asset
		}
	}
	asset.Status = types.AssetResolved
	asset.ResolvedID = name
	asset.ResolutionConfidence = 1
	asset.Note = "new " + kindLabel(e.Name)
	return asset
}

func (v *AssetValidator) checkLocation(e types.ExtractedEntity, model FieldModel) types.ValidatedAsset {
	asset := types.ValidatedAsset{
		Entity:          e,
		RequestedName:   e.Value,
		SnapshotVersion: model.Version(),
	}
	loc, err := ParseLocation(e.Value)
	bounds := model.Bounds()
	if err != nil || !bounds.Contains(loc) {
		asset.Status = types.AssetOutOfBounds
		asset.Note = fmt.Sprintf("location %s is outside grid %s", e.Value, bounds)
		return asset
	}
	asset.Status = types.AssetResolved
	asset.ResolvedID = e.Value
	asset.ResolutionConfidence = 1
	return asset
}

// ParseLocation parses "i,j" or "i,j,k".
func ParseLocation(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("location %q must be i,j or i,j,k", s)
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("location %q: %w", s, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func kindLabel(t types.EntityType) string {
	switch t {
	case types.EntityWellName:
		return "well"
	case types.EntityGroupName:
		return "group"
	default:
		return string(t)
	}
}
