package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kartoza/price-gateway/internal/features"
	"github.com/kartoza/price-gateway/internal/inference"
)

// FlexString accepts a JSON string, number, bool or null and keeps it as
// text, so JSON clients may send {"bedrooms": 3}. Bools keep their literal
// text; the assembler still decides whether the text is valid.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*f = FlexString(data)
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string, number or bool, got %s", data)
		}
		*f = FlexString(n.String())
	}
	return nil
}

// FlagString is a FlexString for 0/1 fields: JSON true and false become
// "1" and "0".
type FlagString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlagString) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*f = "1"
		return nil
	case "false":
		*f = "0"
		return nil
	}
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = FlagString(s)
	return nil
}

// PredictRequest is the JSON body of a prediction request
type PredictRequest struct {
	Bedrooms      FlexString `json:"bedrooms"`
	Builder       FlexString `json:"builder"`
	Locality      FlexString `json:"locality"`
	PrimeLocation FlagString `json:"prime_location"`
	PropertyType  FlexString `json:"property_type"`
}

// Descriptor converts the request into a feature descriptor
func (r PredictRequest) Descriptor() features.Descriptor {
	return features.Descriptor{
		Bedrooms:      string(r.Bedrooms),
		Builder:       string(r.Builder),
		Locality:      string(r.Locality),
		PrimeLocation: string(r.PrimeLocation),
		PropertyType:  string(r.PropertyType),
	}
}

// FeatureCodes is the assembled vector keyed by feature name
type FeatureCodes struct {
	Bedrooms      int `json:"bedrooms"`
	Builder       int `json:"builder"`
	Locality      int `json:"locality"`
	PrimeLocation int `json:"prime_location"`
	PropertyType  int `json:"property_type"`
}

// ErrorBody describes a failed outcome
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// PredictResponse is the JSON form of an inference outcome
type PredictResponse struct {
	ID        string              `json:"id,omitempty"`
	CreatedAt *time.Time          `json:"created_at,omitempty"`
	Status    string              `json:"status"`
	Input     features.Descriptor `json:"input"`
	Features  *FeatureCodes       `json:"features,omitempty"`
	Price     *float64            `json:"price,omitempty"`
	Error     *ErrorBody          `json:"error,omitempty"`
}

// NewPredictResponse renders out. id may be empty when the outcome was not recorded.
func NewPredictResponse(id string, out inference.Outcome) PredictResponse {
	resp := PredictResponse{
		ID:     id,
		Status: string(out.Status),
		Input:  out.Input,
	}

	if out.Assembled() {
		v := out.Features
		resp.Features = &FeatureCodes{
			Bedrooms:      v.Bedrooms(),
			Builder:       v.BuilderCode(),
			Locality:      v.LocalityCode(),
			PrimeLocation: v.PrimeLocation(),
			PropertyType:  v.PropertyTypeCode(),
		}
	}
	if out.Predicted() {
		price := out.Price
		resp.Price = &price
	}
	if out.Failure != nil {
		resp.Error = &ErrorBody{
			Kind:    string(out.Failure.Kind),
			Message: out.Failure.Message,
		}
	}

	return resp
}

// EncodingsResponse lists the categorical vocabularies
type EncodingsResponse struct {
	DefaultCode  int                       `json:"default_code"`
	Vocabularies map[string]map[string]int `json:"vocabularies"`
}
