// Package model defines the core data types for the medscan service.
// In Go, we use structs instead of classes. Struct tags (the `json:"..."` and
// `db:"..."` annotations) tell serialization libraries how to map fields.
package model

import "time"

// Medication is a single drug-label match from the medication lookup.
// All three fields are required — records missing any of them are dropped
// before they reach this type.
type Medication struct {
	Name    string `json:"name"`
	Dosage  string `json:"dosage"`
	Purpose string `json:"purpose"`
}

// RecommendationBundle is the enrichment half of the analysis response.
// Invariant: all four fields are always present and non-nil, even when the
// upstream calls produced nothing. Callers can index any key without
// checking for its existence.
type RecommendationBundle struct {
	Medications []Medication `json:"medications"`
	Treatments  []string     `json:"treatments"`
	Precautions []string     `json:"precautions"`
	FollowUp    []string     `json:"follow_up"`
}

// EmptyBundle returns a bundle with all four keys set to empty lists.
// Empty slices (not nil) so JSON encodes them as [] instead of null.
func EmptyBundle() RecommendationBundle {
	return RecommendationBundle{
		Medications: []Medication{},
		Treatments:  []string{},
		Precautions: []string{},
		FollowUp:    []string{},
	}
}

// Normalize replaces nil fields with empty slices so the bundle invariant
// holds no matter how it was constructed.
func (b *RecommendationBundle) Normalize() {
	if b.Medications == nil {
		b.Medications = []Medication{}
	}
	if b.Treatments == nil {
		b.Treatments = []string{}
	}
	if b.Precautions == nil {
		b.Precautions = []string{}
	}
	if b.FollowUp == nil {
		b.FollowUp = []string{}
	}
}

// AnalysisStatus represents the outcome of one analysis request.
type AnalysisStatus string

const (
	// StatusOK means the vision call and both enrichment calls succeeded.
	StatusOK AnalysisStatus = "ok"
	// StatusDegraded means the analysis succeeded but at least one
	// best-effort enrichment call failed and fell back to empty results.
	StatusDegraded AnalysisStatus = "degraded"
	// StatusFailed means the vision call itself failed.
	StatusFailed AnalysisStatus = "failed"
)

// Analysis is the persisted history record for one request. Each field has
// two tags:
//   - `db:"column_name"` — used by sqlx to scan database rows
//   - `json:"field_name"` — used for JSON serialization (admin/CLI output)
type Analysis struct {
	ID           int64          `db:"id" json:"id"`
	Query        string         `db:"query" json:"query"`
	ContentType  string         `db:"content_type" json:"content_type"`
	AnalysisText string         `db:"analysis" json:"analysis"`
	Provider     string         `db:"provider" json:"provider"`
	Status       AnalysisStatus `db:"status" json:"status"`
	ErrorMessage *string        `db:"error_message" json:"error_message,omitempty"`
	DurationMs   *int64         `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// APICallKind distinguishes the three outbound call types we track.
type APICallKind string

const (
	CallVision    APICallKind = "vision"
	CallRecommend APICallKind = "recommend"
	CallDrugLabel APICallKind = "drug_label"
)

// APICall tracks each call to an upstream service for cost monitoring.
type APICall struct {
	ID         int64       `db:"id" json:"id"`
	Provider   string      `db:"provider" json:"provider"`
	Kind       APICallKind `db:"kind" json:"kind"`
	Model      string      `db:"model" json:"model"`
	Success    bool        `db:"success" json:"success"`
	DurationMs *int64      `db:"duration_ms" json:"duration_ms,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
