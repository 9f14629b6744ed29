package nn

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kartoza/price-gateway/internal/features"
)

func savedModelPath(t *testing.T) string {
	t.Helper()

	model, err := NewLinearModel(testConfig())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, model.Save(path))
	return path
}

func TestLoadAvailable(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	a := Load(savedModelPath(t), zap.New(core))

	require.True(t, a.Available())
	assert.NoError(t, a.Err())
	assert.Equal(t, 1, logs.FilterMessage("Model loaded").Len())

	y, err := a.Predict(features.Vector{3, 0, 1, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 295000.0, y, 1e-9)

	status := a.Status()
	assert.True(t, status.Available)
	assert.Empty(t, status.Error)
	assert.Equal(t, ArtifactFormat, status.Config["format"])
}

func TestLoadMissingFileIsUnavailable(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	path := filepath.Join(t.TempDir(), "model.gob")

	a := Load(path, zap.New(core))

	assert.False(t, a.Available())
	assert.ErrorIs(t, a.Err(), ErrModelUnavailable)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel)
	assert.Equal(t, 1, warnings.Len(), "load failure should be logged exactly once")

	// repeated use does not log again
	for i := 0; i < 3; i++ {
		_, err := a.Predict(features.Vector{})
		assert.ErrorIs(t, err, ErrModelUnavailable)
	}
	assert.Equal(t, 1, logs.Len())

	status := a.Status()
	assert.False(t, status.Available)
	assert.Equal(t, path, status.Path)
	assert.Contains(t, status.Error, "model unavailable")
}

func TestLoadEmptyPath(t *testing.T) {
	a := Load("", nil)
	assert.False(t, a.Available())
	assert.ErrorIs(t, a.Err(), ErrModelUnavailable)
}

func TestUnavailableErrorUnwrap(t *testing.T) {
	cause := errors.New("bad magic")
	a := Unavailable("/models/price.gob", cause)

	err := a.Err()
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "model unavailable (/models/price.gob): bad magic", err.Error())
}

type fixedPredictor struct {
	value float64
	got   []float64
}

func (p *fixedPredictor) Predict(input []float64) (float64, error) {
	p.got = input
	return p.value, nil
}

func TestNewAdapterPassesVectorInOrder(t *testing.T) {
	p := &fixedPredictor{value: 42}
	a := NewAdapter(p)

	y, err := a.Predict(features.Vector{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 42.0, y)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, p.got)
}

func TestNilAdapter(t *testing.T) {
	var a *Adapter
	assert.False(t, a.Available())
	assert.ErrorIs(t, a.Err(), ErrModelUnavailable)
	assert.False(t, a.Status().Available)
	assert.False(t, NewAdapter(nil).Available())
}
