package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kartoza/price-gateway/internal/features"
	"github.com/kartoza/price-gateway/internal/inference"
)

// Record is one stored inference outcome
type Record struct {
	ID            string          `db:"id"`
	CreatedAt     time.Time       `db:"created_at"`
	Bedrooms      string          `db:"bedrooms"`
	Builder       string          `db:"builder"`
	Locality      string          `db:"locality"`
	PrimeLocation string          `db:"prime_location"`
	PropertyType  string          `db:"property_type"`
	Status        string          `db:"status"`
	Features      string          `db:"features"` // JSON array, empty if assembly failed
	Price         sql.NullFloat64 `db:"price"`
	ErrorKind     string          `db:"error_kind"`
	ErrorMessage  string          `db:"error_message"`
}

// RecordFromOutcome converts an outcome into a record ready to Save
func RecordFromOutcome(out inference.Outcome) (*Record, error) {
	rec := &Record{
		Bedrooms:      out.Input.Bedrooms,
		Builder:       out.Input.Builder,
		Locality:      out.Input.Locality,
		PrimeLocation: out.Input.PrimeLocation,
		PropertyType:  out.Input.PropertyType,
		Status:        string(out.Status),
	}

	if out.Assembled() {
		data, err := json.Marshal(out.Features.Slice())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal features: %w", err)
		}
		rec.Features = string(data)
	}
	if out.Predicted() {
		rec.Price = sql.NullFloat64{Float64: out.Price, Valid: true}
	}
	if out.Failure != nil {
		rec.ErrorKind = string(out.Failure.Kind)
		rec.ErrorMessage = out.Failure.Message
	}

	return rec, nil
}

// Outcome rebuilds the inference outcome the record was made from
func (r *Record) Outcome() (inference.Outcome, error) {
	out := inference.Outcome{
		Status: inference.Status(r.Status),
		Input: features.Descriptor{
			Bedrooms:      r.Bedrooms,
			Builder:       r.Builder,
			Locality:      r.Locality,
			PrimeLocation: r.PrimeLocation,
			PropertyType:  r.PropertyType,
		},
	}

	if r.Features != "" {
		var values []float64
		if err := json.Unmarshal([]byte(r.Features), &values); err != nil {
			return out, fmt.Errorf("failed to parse stored features: %w", err)
		}
		if len(values) != features.Length {
			return out, fmt.Errorf("stored features have %d values, expected %d", len(values), features.Length)
		}
		copy(out.Features[:], values)
	}
	if r.Price.Valid {
		out.Price = r.Price.Float64
	}
	if r.ErrorKind != "" || r.ErrorMessage != "" {
		out.Failure = &inference.Failure{
			Kind:    inference.ErrorKind(r.ErrorKind),
			Message: r.ErrorMessage,
		}
	}

	return out, nil
}
