package inference

import (
	"github.com/kartoza/price-gateway/internal/features"
)

// Status is the terminal state a request reached
type Status string

const (
	StatusPredicted        Status = "predicted"
	StatusAssemblyFailed   Status = "assembly_failed"
	StatusModelUnavailable Status = "model_unavailable"
	StatusPredictionFailed Status = "prediction_failed"
)

// ErrorKind classifies a failed outcome for display
type ErrorKind string

const (
	// KindValidation is a user-correctable input problem.
	KindValidation ErrorKind = "validation"
	// KindModelUnavailable means the service is degraded until restart.
	KindModelUnavailable ErrorKind = "model_unavailable"
	// KindInference covers any other failure.
	KindInference ErrorKind = "inference"
)

// Failure describes why a request did not produce a price
type Failure struct {
	Kind    ErrorKind
	Message string
}

func (f *Failure) Error() string { return f.Message }

// Outcome is the result of one inference request. Exactly one of Price
// (when Status is StatusPredicted) or Failure is meaningful.
type Outcome struct {
	Status Status
	// Input echoes the descriptor as submitted.
	Input features.Descriptor
	// Features is set once assembly succeeded.
	Features features.Vector
	// Price is rounded to two decimal places.
	Price   float64
	Failure *Failure
}

// Predicted reports whether the request produced a price
func (o Outcome) Predicted() bool {
	return o.Status == StatusPredicted
}

// Assembled reports whether Features holds a valid vector
func (o Outcome) Assembled() bool {
	return o.Status != "" && o.Status != StatusAssemblyFailed
}
