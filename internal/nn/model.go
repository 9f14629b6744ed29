package nn

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/kartoza/price-gateway/internal/features"
)

// ArtifactFormat tags gob files written by LinearModel.Save
const ArtifactFormat = "linear-regression"

// ArtifactVersion is bumped whenever the on-disk layout changes
const ArtifactVersion = 1

// LinearModel is a trained linear regression over the property feature vector.
// It is immutable once constructed.
type LinearModel struct {
	intercept    float64
	coefficients []float64
	featureNames []string
}

// LinearModelConfig holds model parameters
type LinearModelConfig struct {
	Intercept    float64
	Coefficients []float64
	FeatureNames []string
}

// artifact is the persisted form of a LinearModel
type artifact struct {
	Format       string
	Version      int
	Intercept    float64
	Coefficients []float64
	FeatureNames []string
}

// NewLinearModel creates a model from cfg. Coefficients must be given in
// feature vector order.
func NewLinearModel(cfg LinearModelConfig) (*LinearModel, error) {
	m := &LinearModel{
		intercept:    cfg.Intercept,
		coefficients: append([]float64(nil), cfg.Coefficients...),
		featureNames: append([]string(nil), cfg.FeatureNames...),
	}
	if len(m.featureNames) == 0 {
		m.featureNames = features.Names[:]
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// validate checks that the model fits the feature vector contract
func (m *LinearModel) validate() error {
	if len(m.coefficients) != features.Length {
		return fmt.Errorf("model has %d coefficients, feature vector has %d", len(m.coefficients), features.Length)
	}
	if len(m.featureNames) != features.Length {
		return fmt.Errorf("model has %d feature names, feature vector has %d", len(m.featureNames), features.Length)
	}
	for i, name := range m.featureNames {
		if name != features.Names[i] {
			return fmt.Errorf("feature %d is %q, expected %q", i, name, features.Names[i])
		}
	}
	if math.IsNaN(m.intercept) || math.IsInf(m.intercept, 0) {
		return errors.New("intercept is not finite")
	}
	for i, c := range m.coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	return nil
}

// Predict runs inference on the model
func (m *LinearModel) Predict(input []float64) (float64, error) {
	if len(input) != len(m.coefficients) {
		return 0, fmt.Errorf("input has %d values, model expects %d", len(input), len(m.coefficients))
	}

	y := m.intercept
	for i, x := range input {
		y += m.coefficients[i] * x
	}
	return y, nil
}

// GetConfig returns the model configuration
func (m *LinearModel) GetConfig() map[string]interface{} {
	return map[string]interface{}{
		"format":        ArtifactFormat,
		"version":       ArtifactVersion,
		"intercept":     m.intercept,
		"coefficients":  append([]float64(nil), m.coefficients...),
		"feature_names": append([]string(nil), m.featureNames...),
	}
}

// Save saves the model to disk
func (m *LinearModel) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := artifact{
		Format:       ArtifactFormat,
		Version:      ArtifactVersion,
		Intercept:    m.intercept,
		Coefficients: m.coefficients,
		FeatureNames: m.featureNames,
	}

	if err := gob.NewEncoder(f).Encode(data); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return f.Close()
}

// LoadLinearModel loads a model from disk and checks it against the feature
// vector contract.
func LoadLinearModel(path string) (*LinearModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var data artifact
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}

	if data.Format != ArtifactFormat {
		return nil, fmt.Errorf("unsupported model format %q", data.Format)
	}
	if data.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported model version %d", data.Version)
	}

	return NewLinearModel(LinearModelConfig{
		Intercept:    data.Intercept,
		Coefficients: data.Coefficients,
		FeatureNames: data.FeatureNames,
	})
}
