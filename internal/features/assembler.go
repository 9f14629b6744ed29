// Package features turns a submitted property description into the numeric
// vector the price model expects.
package features

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kartoza/price-gateway/internal/encoding"
)

// Descriptor holds the raw attributes of a property as submitted. Numeric
// fields are kept as text so the assembler owns their parsing.
type Descriptor struct {
	Bedrooms      string `form:"bedrooms" json:"bedrooms" validate:"required"`
	Builder       string `form:"builder" json:"builder"`
	Locality      string `form:"locality" json:"locality"`
	PrimeLocation string `form:"prime_location" json:"prime_location" validate:"required"`
	PropertyType  string `form:"property_type" json:"property_type"`
}

// Assembler validates descriptors and resolves their categorical fields.
// It is safe for concurrent use.
type Assembler struct {
	registry *encoding.Registry
	validate *validator.Validate
}

// NewAssembler creates an Assembler that encodes through registry
func NewAssembler(registry *encoding.Registry) *Assembler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &Assembler{
		registry: registry,
		validate: v,
	}
}

// Assemble builds the feature vector for d. It fails with *ValidationError
// when a numeric field is missing, not an integer, or prime_location is not 0 or 1.
// Categorical fields never fail; unknown values take the baseline code.
func (a *Assembler) Assemble(d Descriptor) (Vector, error) {
	var v Vector

	if err := a.validate.Struct(d); err != nil {
		return v, toValidationError(err)
	}

	bedrooms, err := parseInt("bedrooms", d.Bedrooms)
	if err != nil {
		return v, err
	}

	prime, err := parseInt("prime_location", d.PrimeLocation)
	if err != nil {
		return v, err
	}
	if prime != 0 && prime != 1 {
		return v, &ValidationError{
			Field:  "prime_location",
			Value:  d.PrimeLocation,
			Reason: "must be 0 or 1",
		}
	}

	v[IndexBedrooms] = float64(bedrooms)
	v[IndexBuilder] = float64(a.registry.Encode(encoding.DimensionBuilder, d.Builder))
	v[IndexLocality] = float64(a.registry.Encode(encoding.DimensionLocality, d.Locality))
	v[IndexPrimeLocation] = float64(prime)
	v[IndexPropertyType] = float64(a.registry.Encode(encoding.DimensionPropertyType, d.PropertyType))

	return v, nil
}

// parseInt parses an integer field strictly; surrounding whitespace is allowed,
// fractions and other text are not.
func parseInt(field, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ValidationError{
			Field:  field,
			Value:  raw,
			Reason: "must be an integer",
			Err:    err,
		}
	}
	return n, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "descriptor", Reason: err.Error(), Err: err}
	}

	fe := verrs[0]
	reason := fmt.Sprintf("failed %q check", fe.Tag())
	if fe.Tag() == "required" {
		reason = "is required"
	}
	return &ValidationError{
		Field:  fe.Field(),
		Reason: reason,
		Err:    err,
	}
}
