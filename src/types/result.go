package types

import (
	"encoding/json"
	"fmt"
)

// Classification is the verdict assigned to a claim.
type Classification string

const (
	ClassificationTrue          Classification = "TRUE"
	ClassificationFalse         Classification = "FALSE"
	ClassificationPartiallyTrue Classification = "PARTIALLY_TRUE"
	ClassificationNotVerifiable Classification = "NOT_VERIFIABLE"
)

// Classifications lists every verdict in display order.
var Classifications = []Classification{
	ClassificationTrue,
	ClassificationFalse,
	ClassificationPartiallyTrue,
	ClassificationNotVerifiable,
}

func unknownClassification(c Classification) error {
	return fmt.Errorf("types: unknown classification %q", c)
}

func (c Classification) Valid() bool {
	switch c {
	case ClassificationTrue, ClassificationFalse, ClassificationPartiallyTrue, ClassificationNotVerifiable:
		return true
	}
	return false
}

// ConfidenceLevel is the coarse bucket derived from a confidence percentage.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// DeriveConfidenceLevel maps a percentage to its level: 80 and above is HIGH,
// 60 to 79 is MEDIUM, anything lower is LOW.
func DeriveConfidenceLevel(percentage int) ConfidenceLevel {
	switch {
	case percentage >= 80:
		return ConfidenceHigh
	case percentage >= 60:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SourceInfo describes one source consulted for a verdict.
type SourceInfo struct {
	Name             string `json:"name"`
	URL              string `json:"url,omitempty"`
	Year             *int   `json:"year,omitempty"`
	Description      string `json:"description"`
	ReliabilityScore *int   `json:"reliability_score,omitempty"`
	PoliticalBias    string `json:"political_bias,omitempty"`
}

// VerificationResult is the normalized verdict. The confidence level is never stored;
// it is always computed from the percentage.
type VerificationResult struct {
	Classification  Classification
	Explanation     string
	TemporalContext string
	DetectedBias    string
	Observations    string
	Sources         []SourceInfo

	confidencePercentage int
}

// NewResult builds a result with a validated confidence percentage.
func NewResult(classification Classification, confidencePercentage int) (*VerificationResult, error) {
	if !classification.Valid() {
		return nil, unknownClassification(classification)
	}
	r := &VerificationResult{Classification: classification, Sources: []SourceInfo{}}
	if err := r.SetConfidencePercentage(confidencePercentage); err != nil {
		return nil, err
	}
	return r, nil
}

// SetConfidencePercentage replaces the percentage; values outside 0..100 are rejected.
func (r *VerificationResult) SetConfidencePercentage(p int) error {
	if p < 0 || p > 100 {
		return fmt.Errorf("types: confidence percentage %d out of range 0..100", p)
	}
	r.confidencePercentage = p
	return nil
}

func (r *VerificationResult) ConfidencePercentage() int { return r.confidencePercentage }

func (r *VerificationResult) ConfidenceLevel() ConfidenceLevel {
	return DeriveConfidenceLevel(r.confidencePercentage)
}

type resultJSON struct {
	Classification       Classification  `json:"classification"`
	ConfidencePercentage int             `json:"confidence_percentage"`
	ConfidenceLevel      ConfidenceLevel `json:"confidence_level"`
	Explanation          string          `json:"explanation"`
	TemporalContext      string          `json:"temporal_context"`
	DetectedBias         string          `json:"detected_bias"`
	Sources              []SourceInfo    `json:"sources"`
	Observations         string          `json:"observations"`
}

// MarshalJSON rejects a classification outside the closed set.
func (r VerificationResult) MarshalJSON() ([]byte, error) {
	if !r.Classification.Valid() {
		return nil, unknownClassification(r.Classification)
	}
	sources := r.Sources
	if sources == nil {
		sources = []SourceInfo{}
	}
	return json.Marshal(resultJSON{
		Classification:       r.Classification,
		ConfidencePercentage: r.confidencePercentage,
		ConfidenceLevel:      DeriveConfidenceLevel(r.confidencePercentage),
		Explanation:          r.Explanation,
		TemporalContext:      r.TemporalContext,
		DetectedBias:         r.DetectedBias,
		Sources:              sources,
		Observations:         r.Observations,
	})
}

// UnmarshalJSON validates the payload; an incoming confidence_level is ignored.
func (r *VerificationResult) UnmarshalJSON(b []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if !raw.Classification.Valid() {
		return unknownClassification(raw.Classification)
	}
	out := VerificationResult{
		Classification:  raw.Classification,
		Explanation:     raw.Explanation,
		TemporalContext: raw.TemporalContext,
		DetectedBias:    raw.DetectedBias,
		Observations:    raw.Observations,
		Sources:         raw.Sources,
	}
	if out.Sources == nil {
		out.Sources = []SourceInfo{}
	}
	if err := out.SetConfidencePercentage(raw.ConfidencePercentage); err != nil {
		return err
	}
	*r = out
	return nil
}
