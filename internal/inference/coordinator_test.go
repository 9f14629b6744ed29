package inference_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kartoza/price-gateway/internal/encoding"
	"github.com/kartoza/price-gateway/internal/features"
	"github.com/kartoza/price-gateway/internal/inference"
	"github.com/kartoza/price-gateway/internal/nn"
)

type stubModel struct {
	available bool
	value     float64
	err       error
	panicWith interface{}

	mu    sync.Mutex
	calls int
}

func (m *stubModel) Available() bool { return m.available }

func (m *stubModel) Predict(_ features.Vector) (float64, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.panicWith != nil {
		panic(m.panicWith)
	}
	return m.value, m.err
}

type failingAssembler struct {
	err       error
	panicWith interface{}
}

func (a failingAssembler) Assemble(_ features.Descriptor) (features.Vector, error) {
	if a.panicWith != nil {
		panic(a.panicWith)
	}
	return features.Vector{}, a.err
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) ObserveOutcome(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[status]++
}

func newCoordinator(model inference.Model, opts ...inference.Option) *inference.Coordinator {
	assembler := features.NewAssembler(encoding.NewDefaultRegistry())
	return inference.NewCoordinator(assembler, model, zap.NewNop(), opts...)
}

func villa() features.Descriptor {
	return features.Descriptor{
		Bedrooms:      "3",
		Builder:       "Builder_A",
		Locality:      "Locality_2",
		PrimeLocation: "1",
		PropertyType:  "Villa",
	}
}

func TestInferPredictedAndRounded(t *testing.T) {
	model := &stubModel{available: true, value: 250000.456}
	c := newCoordinator(model)

	out := c.Infer(villa())

	require.Equal(t, inference.StatusPredicted, out.Status)
	require.Nil(t, out.Failure)
	assert.True(t, out.Predicted())
	assert.Equal(t, 250000.46, out.Price)

	assert.Equal(t, 3, out.Features.Bedrooms())
	assert.Equal(t, 0, out.Features.BuilderCode())
	assert.Equal(t, 1, out.Features.LocalityCode())
	assert.Equal(t, 1, out.Features.PrimeLocation())
	assert.Equal(t, 1, out.Features.PropertyTypeCode())

	assert.Equal(t, villa(), out.Input)
}

func TestInferRoundingHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		raw      float64
		expected float64
	}{
		{100.125, 100.13},
		{99.994, 99.99},
		{-10.005, -10.01},
		{310000, 310000},
	}

	for _, tt := range tests {
		c := newCoordinator(&stubModel{available: true, value: tt.raw})
		out := c.Infer(villa())
		require.True(t, out.Predicted())
		assert.Equal(t, tt.expected, out.Price, "raw %v", tt.raw)
	}
}

func TestInferValidationFailureSkipsModel(t *testing.T) {
	model := &stubModel{available: true, value: 1}
	c := newCoordinator(model)

	d := villa()
	d.Bedrooms = "abc"
	out := c.Infer(d)

	assert.Equal(t, inference.StatusAssemblyFailed, out.Status)
	require.NotNil(t, out.Failure)
	assert.Equal(t, inference.KindValidation, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "bedrooms")
	assert.False(t, out.Assembled())
	assert.Equal(t, 0, model.calls)
}

func TestInferModelUnavailable(t *testing.T) {
	descriptors := []features.Descriptor{
		villa(),
		{Bedrooms: "1", PrimeLocation: "0"},
		{Bedrooms: "5", Builder: "builder_b", Locality: "locality_1", PrimeLocation: "0", PropertyType: "apartment"},
	}

	model := &stubModel{available: false}
	c := newCoordinator(model)

	for _, d := range descriptors {
		out := c.Infer(d)
		assert.Equal(t, inference.StatusModelUnavailable, out.Status)
		require.NotNil(t, out.Failure)
		assert.Equal(t, inference.KindModelUnavailable, out.Failure.Kind)
		assert.True(t, out.Assembled())
	}
	assert.Equal(t, 0, model.calls, "prediction must not be attempted")
}

func TestInferWithUnloadedAdapter(t *testing.T) {
	c := newCoordinator(nn.Unavailable("model.gob", errors.New("missing")))

	out := c.Infer(villa())
	assert.Equal(t, inference.StatusModelUnavailable, out.Status)
}

func TestInferNilModel(t *testing.T) {
	c := newCoordinator(nil)

	out := c.Infer(villa())
	assert.Equal(t, inference.StatusModelUnavailable, out.Status)
}

func TestInferPredictionError(t *testing.T) {
	model := &stubModel{available: true, err: errors.New("shape mismatch")}
	c := newCoordinator(model)

	out := c.Infer(villa())

	assert.Equal(t, inference.StatusPredictionFailed, out.Status)
	require.NotNil(t, out.Failure)
	assert.Equal(t, inference.KindInference, out.Failure.Kind)
	assert.Equal(t, "error in prediction: shape mismatch", out.Failure.Message)
}

func TestInferPredictReportsUnavailable(t *testing.T) {
	model := &stubModel{available: true, err: nn.ErrModelUnavailable}
	c := newCoordinator(model)

	out := c.Infer(villa())
	assert.Equal(t, inference.StatusModelUnavailable, out.Status)
}

func TestInferNonFinitePrediction(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		c := newCoordinator(&stubModel{available: true, value: v})
		out := c.Infer(villa())
		assert.Equal(t, inference.StatusPredictionFailed, out.Status)
		require.NotNil(t, out.Failure)
		assert.Contains(t, out.Failure.Message, "non-finite")
	}
}

func TestInferRecoversModelPanic(t *testing.T) {
	model := &stubModel{available: true, panicWith: "index out of range"}
	c := newCoordinator(model)

	var out inference.Outcome
	require.NotPanics(t, func() { out = c.Infer(villa()) })

	assert.Equal(t, inference.StatusPredictionFailed, out.Status)
	require.NotNil(t, out.Failure)
	assert.Equal(t, inference.KindInference, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "index out of range")
}

type panickingAvailability struct{}

func (panickingAvailability) Available() bool { panic("adapter state corrupted") }

func (panickingAvailability) Predict(_ features.Vector) (float64, error) { return 0, nil }

func TestInferRecoversAvailabilityPanic(t *testing.T) {
	c := newCoordinator(panickingAvailability{})

	var out inference.Outcome
	require.NotPanics(t, func() { out = c.Infer(villa()) })

	assert.Equal(t, inference.StatusPredictionFailed, out.Status)
	assert.True(t, out.Assembled())
	assert.Equal(t, 1, out.Features.LocalityCode())
	require.NotNil(t, out.Failure)
	assert.Equal(t, inference.KindInference, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "adapter state corrupted")
}

func TestInferAssemblerFailures(t *testing.T) {
	t.Run("unexpected error", func(t *testing.T) {
		c := inference.NewCoordinator(failingAssembler{err: errors.New("registry offline")}, &stubModel{available: true}, nil)

		out := c.Infer(villa())
		assert.Equal(t, inference.StatusAssemblyFailed, out.Status)
		require.NotNil(t, out.Failure)
		assert.Equal(t, inference.KindInference, out.Failure.Kind)
		assert.Contains(t, out.Failure.Message, "registry offline")
	})

	t.Run("panic", func(t *testing.T) {
		c := inference.NewCoordinator(failingAssembler{panicWith: errors.New("boom")}, &stubModel{available: true}, nil)

		var out inference.Outcome
		require.NotPanics(t, func() { out = c.Infer(villa()) })
		assert.Equal(t, inference.StatusAssemblyFailed, out.Status)
		require.NotNil(t, out.Failure)
		assert.Contains(t, out.Failure.Message, "boom")
	})
}

func TestInferIdempotent(t *testing.T) {
	model, err := nn.NewLinearModel(nn.LinearModelConfig{
		Intercept:    120000.333,
		Coefficients: []float64{25000.1, 10000, 40000, 30000, 50000},
	})
	require.NoError(t, err)
	c := newCoordinator(nn.NewAdapter(model))

	first := c.Infer(villa())
	second := c.Infer(villa())

	require.True(t, first.Predicted())
	assert.Equal(t, first, second)
}

func TestInferConcurrent(t *testing.T) {
	model := &stubModel{available: true, value: 199999.999}
	c := newCoordinator(model)

	var wg sync.WaitGroup
	results := make([]inference.Outcome, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Infer(villa())
		}(i)
	}
	wg.Wait()

	for _, out := range results {
		assert.Equal(t, results[0], out)
	}
	assert.Equal(t, 200000.0, results[0].Price)
}

func TestInferRecordsOutcome(t *testing.T) {
	rec := &countingRecorder{}
	c := newCoordinator(&stubModel{available: true, value: 10}, inference.WithRecorder(rec))

	c.Infer(villa())
	bad := villa()
	bad.PrimeLocation = "maybe"
	c.Infer(bad)

	assert.Equal(t, 1, rec.counts[string(inference.StatusPredicted)])
	assert.Equal(t, 1, rec.counts[string(inference.StatusAssemblyFailed)])
}
