// Package logstore persists a record of every successful analysis,
// best effort, to a document store.
package logstore

import (
	"time"

	"github.com/google/uuid"

	"github.com/hed1ad/flowselect/pkg/selection"
)

// Summary is the short form of a result kept next to the full payload.
type Summary struct {
	F1Validation  float64  `json:"f1_validation" bson:"f1_validation"`
	Top10Features []string `json:"top_10_features" bson:"top_10_features"`
}

// Record is one analysis log document.
type Record struct {
	ID              string           `json:"id" bson:"_id"`
	Timestamp       time.Time        `json:"timestamp" bson:"timestamp"`
	TrainPercentage float64          `json:"train_percentage" bson:"train_percentage"`
	Summary         Summary          `json:"results_summary" bson:"results_summary"`
	Results         selection.Result `json:"full_results" bson:"full_results"`
}

// NewRecord stamps a result with a fresh id and the current UTC time.
func NewRecord(trainPercentage float64, res selection.Result) Record {
	return Record{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		TrainPercentage: trainPercentage,
		Summary: Summary{
			F1Validation:  res.F1Validation,
			Top10Features: res.TopFeaturesDesc,
		},
		Results: res,
	}
}
