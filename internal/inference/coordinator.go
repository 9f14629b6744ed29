// Package inference runs a property descriptor through feature assembly and
// the price model, and turns every failure into a typed outcome.
package inference

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kartoza/price-gateway/internal/features"
	"github.com/kartoza/price-gateway/internal/nn"
)

// PricePlaces is the number of decimal places prices are rounded to
const PricePlaces = 2

// Assembler builds a feature vector from a descriptor
type Assembler interface {
	Assemble(d features.Descriptor) (features.Vector, error)
}

// Model is the prediction side of the pipeline
type Model interface {
	Available() bool
	Predict(v features.Vector) (float64, error)
}

// Recorder receives the terminal status of every request
type Recorder interface {
	ObserveOutcome(status string)
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithRecorder attaches r to the coordinator
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// Coordinator orchestrates assembly and prediction. Its collaborators are
// read-only after construction, so Infer may be called concurrently.
type Coordinator struct {
	assembler Assembler
	model     Model
	recorder  Recorder
	logger    *zap.Logger
}

// NewCoordinator creates a Coordinator
func NewCoordinator(assembler Assembler, model Model, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		assembler: assembler,
		model:     model,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Infer processes d exactly once and always returns an Outcome; no error or
// panic from the assembler or model escapes.
func (c *Coordinator) Infer(d features.Descriptor) (out Outcome) {
	out.Input = d
	status := StatusAssemblyFailed

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered from inference panic",
				zap.Any("panic", r),
				zap.String("stage", string(status)),
				zap.Stack("stack"),
			)
			out.Status = status
			out.Price = 0
			out.Failure = &Failure{
				Kind:    KindInference,
				Message: fmt.Sprintf("error in prediction: %v", r),
			}
		}
		if c.recorder != nil {
			c.recorder.ObserveOutcome(string(out.Status))
		}
	}()

	vec, err := c.assembler.Assemble(d)
	if err != nil {
		out.Status = StatusAssemblyFailed
		var verr *features.ValidationError
		if errors.As(err, &verr) {
			out.Failure = &Failure{Kind: KindValidation, Message: verr.Error()}
		} else {
			c.logger.Warn("Feature assembly failed", zap.Error(err))
			out.Failure = &Failure{Kind: KindInference, Message: "error in prediction: " + err.Error()}
		}
		return out
	}
	out.Features = vec
	status = StatusPredictionFailed

	if c.model == nil || !c.model.Available() {
		out.Status = StatusModelUnavailable
		out.Failure = unavailableFailure()
		return out
	}

	raw, err := c.model.Predict(vec)
	if err != nil {
		if errors.Is(err, nn.ErrModelUnavailable) {
			out.Status = StatusModelUnavailable
			out.Failure = unavailableFailure()
			return out
		}
		c.logger.Warn("Prediction failed", zap.Error(err))
		out.Status = StatusPredictionFailed
		out.Failure = &Failure{Kind: KindInference, Message: "error in prediction: " + err.Error()}
		return out
	}

	price, err := roundPrice(raw)
	if err != nil {
		c.logger.Warn("Prediction failed", zap.Error(err))
		out.Status = StatusPredictionFailed
		out.Failure = &Failure{Kind: KindInference, Message: "error in prediction: " + err.Error()}
		return out
	}

	out.Status = StatusPredicted
	out.Price = price
	return out
}

// roundPrice rounds a model output to PricePlaces, half away from zero.
func roundPrice(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("model returned non-finite value %v", v)
	}
	return decimal.NewFromFloat(v).Round(PricePlaces).InexactFloat64(), nil
}

func unavailableFailure() *Failure {
	return &Failure{
		Kind:    KindModelUnavailable,
		Message: "model is not available right now",
	}
}
