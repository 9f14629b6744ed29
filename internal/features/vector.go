package features

// Length is the number of features the price model consumes.
const Length = 5

// Positions within a Vector. The order is the order the model was trained
// with and must never change without retraining.
const (
	IndexBedrooms = iota
	IndexBuilder
	IndexLocality
	IndexPrimeLocation
	IndexPropertyType
)

// Names lists the feature names in vector order
var Names = [Length]string{
	IndexBedrooms:      "bedrooms",
	IndexBuilder:       "builder",
	IndexLocality:      "locality",
	IndexPrimeLocation: "prime_location",
	IndexPropertyType:  "property_type",
}

// Vector is the fixed-order numeric input to the model:
// [bedrooms, builder_code, locality_code, prime_location, property_type_code].
type Vector [Length]float64

// Slice returns the vector as a freshly allocated slice
func (v Vector) Slice() []float64 {
	out := make([]float64, Length)
	copy(out, v[:])
	return out
}

func (v Vector) Bedrooms() int         { return int(v[IndexBedrooms]) }
func (v Vector) BuilderCode() int      { return int(v[IndexBuilder]) }
func (v Vector) LocalityCode() int     { return int(v[IndexLocality]) }
func (v Vector) PrimeLocation() int    { return int(v[IndexPrimeLocation]) }
func (v Vector) PropertyTypeCode() int { return int(v[IndexPropertyType]) }
